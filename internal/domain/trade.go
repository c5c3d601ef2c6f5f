package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TradeStatus represents the lifecycle position of a trade.
type TradeStatus string

const (
	TradeStatusAwaitingReceiver TradeStatus = "awaiting_receiver"
	TradeStatusAwaitingConfirm  TradeStatus = "awaiting_confirm"
	TradeStatusAccepted         TradeStatus = "accepted"
	TradeStatusCanceled         TradeStatus = "canceled"
)

// IsAwaiting reports whether the trade is still open.
func (s TradeStatus) IsAwaiting() bool {
	return s == TradeStatusAwaitingReceiver || s == TradeStatusAwaitingConfirm
}

// IsTerminal reports whether no further transition is possible.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusAccepted || s == TradeStatusCanceled
}

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	return s.IsAwaiting() || s.IsTerminal()
}

// CanTransitionTo reports whether moving from s to next is legal.
// awaiting_confirm -> awaiting_confirm is a renegotiation.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	switch s {
	case TradeStatusAwaitingReceiver:
		return next == TradeStatusAwaitingConfirm || next == TradeStatusCanceled
	case TradeStatusAwaitingConfirm:
		return next == TradeStatusAwaitingConfirm || next == TradeStatusAccepted || next == TradeStatusCanceled
	default:
		return false
	}
}

// Side names a participant role.
type Side string

const (
	SideProposer Side = "proposer"
	SideReceiver Side = "receiver"
)

// Trade is the durable record of a two-party exchange.
type Trade struct {
	ID                  int64         `json:"id"`
	ProposerID          snowflake.ID  `json:"proposer_id"`
	ReceiverID          snowflake.ID  `json:"receiver_id"`
	Status              TradeStatus   `json:"status"`
	Give                Bundle        `json:"give"`
	Get                 Bundle        `json:"get"`
	ConfirmProposer     bool          `json:"confirm_proposer"`
	ConfirmReceiver     bool          `json:"confirm_receiver"`
	SettlementClaimedAt *time.Time    `json:"settlement_claimed_at,omitempty"`
	Note                string        `json:"note,omitempty"`
	ChannelID           *snowflake.ID `json:"channel_id,omitempty"`
	MessageID           *snowflake.ID `json:"message_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewTrade validates a proposal and returns a trade awaiting the receiver.
// The id is assigned by the store.
func NewTrade(proposer, receiver snowflake.ID, give Bundle, note string, now time.Time) (*Trade, error) {
	if proposer == 0 || receiver == 0 {
		return nil, ErrInvalidAccountID
	}

	if proposer == receiver {
		return nil, ErrSelfTrade
	}

	if err := ValidateNote(note); err != nil {
		return nil, err
	}

	normalized, err := give.Normalize()
	if err != nil {
		return nil, err
	}

	return &Trade{
		ProposerID: proposer,
		ReceiverID: receiver,
		Status:     TradeStatusAwaitingReceiver,
		Give:       normalized,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// SideOf returns the role account plays in the trade.
func (t *Trade) SideOf(account snowflake.ID) (Side, error) {
	switch account {
	case t.ProposerID:
		return SideProposer, nil
	case t.ReceiverID:
		return SideReceiver, nil
	default:
		return "", ErrWrongParticipant
	}
}

// IsParticipant reports whether account is proposer or receiver.
func (t *Trade) IsParticipant(account snowflake.ID) bool {
	_, err := t.SideOf(account)
	return err == nil
}

// AccountOf returns the account playing side.
func (t *Trade) AccountOf(side Side) snowflake.ID {
	if side == SideProposer {
		return t.ProposerID
	}

	return t.ReceiverID
}

// Participants returns both accounts in lock order.
func (t *Trade) Participants() []snowflake.ID {
	return SortedAccounts(t.ProposerID, t.ReceiverID)
}

// SetReceiverOffer stores the receiver's bundle and clears both confirmations.
// renegotiate allows replacing an offer already in awaiting_confirm.
func (t *Trade) SetReceiverOffer(account snowflake.ID, get Bundle, renegotiate bool, now time.Time) error {
	side, err := t.SideOf(account)
	if err != nil {
		return err
	}

	if side != SideReceiver {
		return fmt.Errorf("%w: only the receiver can respond", ErrWrongParticipant)
	}

	switch {
	case t.Status == TradeStatusAwaitingReceiver:
	case t.Status == TradeStatusAwaitingConfirm && renegotiate:
	default:
		return fmt.Errorf("%w: cannot respond to a trade in %s", ErrInvalidState, t.Status)
	}

	normalized, err := get.Normalize()
	if err != nil {
		return err
	}

	t.Get = normalized
	t.Status = TradeStatusAwaitingConfirm
	t.ConfirmProposer = false
	t.ConfirmReceiver = false
	t.SettlementClaimedAt = nil
	t.UpdatedAt = now

	return nil
}

// Confirm sets the caller's flag and reports whether both are now set.
// Confirming twice is a no-op.
func (t *Trade) Confirm(account snowflake.ID, now time.Time) (bool, error) {
	side, err := t.SideOf(account)
	if err != nil {
		return false, err
	}

	if t.Status != TradeStatusAwaitingConfirm {
		return false, fmt.Errorf("%w: cannot confirm a trade in %s", ErrInvalidState, t.Status)
	}

	if !t.Give.HasCard() && !t.Get.HasCard() {
		return false, fmt.Errorf("%w: at least one side must offer a card", ErrInvalidBundle)
	}

	switch side {
	case SideProposer:
		if !t.ConfirmProposer {
			t.ConfirmProposer = true
			t.UpdatedAt = now
		}
	case SideReceiver:
		if !t.ConfirmReceiver {
			t.ConfirmReceiver = true
			t.UpdatedAt = now
		}
	}

	return t.BothConfirmed(), nil
}

// BothConfirmed reports whether both flags are set.
func (t *Trade) BothConfirmed() bool {
	return t.ConfirmProposer && t.ConfirmReceiver
}

// Cancel moves an open trade to canceled.
func (t *Trade) Cancel(now time.Time) error {
	if !t.Status.CanTransitionTo(TradeStatusCanceled) {
		return fmt.Errorf("%w: trade is already %s", ErrInvalidState, t.Status)
	}

	t.Status = TradeStatusCanceled
	t.SettlementClaimedAt = nil
	t.UpdatedAt = now

	return nil
}

// ClaimActive reports whether a settlement claim younger than ttl exists.
func (t *Trade) ClaimActive(now time.Time, ttl time.Duration) bool {
	if t.SettlementClaimedAt == nil {
		return false
	}

	return now.Sub(*t.SettlementClaimedAt) < ttl
}

// ClaimSettlement marks the trade as being settled. It succeeds for exactly
// one caller while the trade is fully confirmed; a claim older than ttl is
// considered abandoned and can be taken over.
func (t *Trade) ClaimSettlement(now time.Time, ttl time.Duration) bool {
	if t.Status != TradeStatusAwaitingConfirm || !t.BothConfirmed() {
		return false
	}

	if t.ClaimActive(now, ttl) {
		return false
	}

	claimed := now
	t.SettlementClaimedAt = &claimed

	return true
}

// ReleaseClaim drops the settlement claim after a failed attempt.
func (t *Trade) ReleaseClaim(now time.Time) {
	t.SettlementClaimedAt = nil
	t.UpdatedAt = now
}

// ValidateForSettlement checks everything that must hold before balances move.
func (t *Trade) ValidateForSettlement() error {
	if t.Status != TradeStatusAwaitingConfirm {
		return fmt.Errorf("%w: cannot settle a trade in %s", ErrInvalidState, t.Status)
	}

	if !t.BothConfirmed() {
		return fmt.Errorf("%w: both participants must confirm", ErrInvalidState)
	}

	if err := t.Give.Validate(); err != nil {
		return err
	}

	if err := t.Get.Validate(); err != nil {
		return err
	}

	if !t.Give.HasCard() && !t.Get.HasCard() {
		return fmt.Errorf("%w: at least one side must offer a card", ErrInvalidBundle)
	}

	return nil
}

// MarkAccepted records a completed settlement.
func (t *Trade) MarkAccepted(now time.Time) error {
	if !t.Status.CanTransitionTo(TradeStatusAccepted) {
		return fmt.Errorf("%w: trade is %s", ErrInvalidState, t.Status)
	}

	t.Status = TradeStatusAccepted
	t.SettlementClaimedAt = nil
	t.UpdatedAt = now

	return nil
}

// AttachMessage stores where the public confirmation message lives.
func (t *Trade) AttachMessage(channelID, messageID snowflake.ID, now time.Time) {
	t.ChannelID = &channelID
	t.MessageID = &messageID
	t.UpdatedAt = now
}

// Clone returns a copy that shares no mutable state with t.
func (t *Trade) Clone() *Trade {
	c := *t
	c.Give = slices.Clone(t.Give)
	c.Get = slices.Clone(t.Get)

	if t.SettlementClaimedAt != nil {
		v := *t.SettlementClaimedAt
		c.SettlementClaimedAt = &v
	}

	if t.ChannelID != nil {
		v := *t.ChannelID
		c.ChannelID = &v
	}

	if t.MessageID != nil {
		v := *t.MessageID
		c.MessageID = &v
	}

	return &c
}

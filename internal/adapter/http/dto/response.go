package dto

import (
	"strconv"
	"time"

	"github.com/iho/cardtrade/internal/domain"
)

// TradeResponse represents a trade in API responses.
type TradeResponse struct {
	ID              int64         `json:"id"`
	ProposerID      string        `json:"proposer_id"`
	ReceiverID      string        `json:"receiver_id"`
	Status          string        `json:"status"`
	Give            domain.Bundle `json:"give"`
	Get             domain.Bundle `json:"get"`
	GiveSummary     string        `json:"give_summary"`
	GetSummary      string        `json:"get_summary"`
	ConfirmProposer bool          `json:"confirm_proposer"`
	ConfirmReceiver bool          `json:"confirm_receiver"`
	Note            string        `json:"note,omitempty"`
	ChannelID       string        `json:"channel_id,omitempty"`
	MessageID       string        `json:"message_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TradeFromDomain converts domain trade to response.
func TradeFromDomain(t *domain.Trade) *TradeResponse {
	resp := &TradeResponse{
		ID:              t.ID,
		ProposerID:      t.ProposerID.String(),
		ReceiverID:      t.ReceiverID.String(),
		Status:          string(t.Status),
		Give:            t.Give,
		Get:             t.Get,
		GiveSummary:     t.Give.String(),
		GetSummary:      t.Get.String(),
		ConfirmProposer: t.ConfirmProposer,
		ConfirmReceiver: t.ConfirmReceiver,
		Note:            t.Note,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}

	if resp.Give == nil {
		resp.Give = domain.Bundle{}
	}
	if resp.Get == nil {
		resp.Get = domain.Bundle{}
	}

	if t.ChannelID != nil {
		resp.ChannelID = t.ChannelID.String()
	}
	if t.MessageID != nil {
		resp.MessageID = t.MessageID.String()
	}

	return resp
}

// TradesFromDomain converts domain trades to responses.
func TradesFromDomain(trades []*domain.Trade) []*TradeResponse {
	result := make([]*TradeResponse, len(trades))
	for i, t := range trades {
		result[i] = TradeFromDomain(t)
	}
	return result
}

// TradeEventResponse is one entry of a trade's history.
type TradeEventResponse struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Published bool           `json:"published"`
}

// TradeEventsFromDomain converts outbox events to history entries.
func TradeEventsFromDomain(events []*domain.OutboxEvent) []*TradeEventResponse {
	result := make([]*TradeEventResponse, len(events))
	for i, ev := range events {
		result[i] = &TradeEventResponse{
			ID:        ev.ID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
			Published: ev.Published,
		}
	}
	return result
}

// ConfirmResponse reports the outcome of a confirmation.
type ConfirmResponse struct {
	Trade         *TradeResponse `json:"trade"`
	BothConfirmed bool           `json:"both_confirmed"`
	Settled       bool           `json:"settled"`
}

// InventoryLineResponse is one card stack.
type InventoryLineResponse struct {
	Name      string    `json:"name"`
	Rarity    string    `json:"rarity"`
	Set       string    `json:"set"`
	Code      *string   `json:"code"`
	CardID    *string   `json:"card_id"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InventoryResponse lists the cards an account holds.
type InventoryResponse struct {
	AccountID string                   `json:"account_id"`
	Lines     []*InventoryLineResponse `json:"lines"`
}

// InventoryFromDomain converts inventory lines to a response.
func InventoryFromDomain(account string, lines []domain.InventoryLine) *InventoryResponse {
	resp := &InventoryResponse{AccountID: account, Lines: make([]*InventoryLineResponse, len(lines))}
	for i, l := range lines {
		resp.Lines[i] = &InventoryLineResponse{
			Name:      l.Name,
			Rarity:    l.Rarity,
			Set:       l.Set,
			Code:      l.Code,
			CardID:    l.CardID,
			Quantity:  l.Quantity,
			UpdatedAt: l.UpdatedAt,
		}
	}
	return resp
}

// WalletResponse shows token and shard balances. Shard keys are set ids.
type WalletResponse struct {
	AccountID string           `json:"account_id"`
	Tokens    int64            `json:"tokens"`
	Shards    map[string]int64 `json:"shards"`
}

// WalletFromDomain converts a wallet to a response.
func WalletFromDomain(w domain.Wallet) *WalletResponse {
	resp := &WalletResponse{
		AccountID: w.AccountID.String(),
		Tokens:    w.Tokens,
		Shards:    make(map[string]int64, len(w.Shards)),
	}
	for set, amount := range w.Shards {
		resp.Shards[strconv.FormatInt(int64(set), 10)] = amount
	}
	return resp
}

// ShortfallResponse details an insufficient-funds failure.
type ShortfallResponse struct {
	Side    string `json:"side,omitempty"`
	Account string `json:"account_id"`
	Item    string `json:"item"`
	Need    int64  `json:"need"`
	Have    int64  `json:"have"`
}

// ShortfallFromDomain converts the error details to a response.
func ShortfallFromDomain(e *domain.InsufficientFundsError) *ShortfallResponse {
	resp := &ShortfallResponse{
		Side:    string(e.Side),
		Account: e.Account.String(),
		Need:    e.Need,
		Have:    e.Have,
	}
	if e.Item != nil {
		resp.Item = e.Item.String()
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Message   string             `json:"message,omitempty"`
	Shortfall *ShortfallResponse `json:"shortfall,omitempty"`
}

// PrintingResponse is a resolved card identity.
type PrintingResponse struct {
	Name   string  `json:"name"`
	Rarity string  `json:"rarity"`
	Set    string  `json:"set"`
	Code   *string `json:"code"`
	CardID *string `json:"card_id"`
}

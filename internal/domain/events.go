package domain

import "time"

// Event types
const (
	EventTypeTradeProposed  = "trade.proposed"
	EventTypeTradeResponded = "trade.responded"
	EventTypeTradeSettled   = "trade.settled"
	EventTypeTradeCanceled  = "trade.canceled"
	EventTypeTradeExpired   = "trade.expired"
)

// Aggregate types
const (
	AggregateTypeTrade = "trade"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TradeEvent is the payload of every trade.* event.
type TradeEvent struct {
	TradeID    int64  `json:"trade_id"`
	ProposerID string `json:"proposer_id"`
	ReceiverID string `json:"receiver_id"`
	Status     string `json:"status"`
	Give       string `json:"give,omitempty"`
	Get        string `json:"get,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	EventAt    string `json:"event_at"`
}

// NewTradeEvent snapshots a trade for the outbox.
func NewTradeEvent(t *Trade, at time.Time) TradeEvent {
	ev := TradeEvent{
		TradeID:    t.ID,
		ProposerID: t.ProposerID.String(),
		ReceiverID: t.ReceiverID.String(),
		Status:     string(t.Status),
		EventAt:    at.UTC().Format(time.RFC3339),
	}

	if len(t.Give) > 0 {
		ev.Give = t.Give.String()
	}

	if len(t.Get) > 0 {
		ev.Get = t.Get.String()
	}

	if t.ChannelID != nil {
		ev.ChannelID = t.ChannelID.String()
	}

	return ev
}

// Payload converts the event into the outbox map form.
func (e TradeEvent) Payload() map[string]any {
	p := map[string]any{
		"trade_id":    e.TradeID,
		"proposer_id": e.ProposerID,
		"receiver_id": e.ReceiverID,
		"status":      e.Status,
		"event_at":    e.EventAt,
	}

	if e.Give != "" {
		p["give"] = e.Give
	}

	if e.Get != "" {
		p["get"] = e.Get
	}

	if e.ChannelID != "" {
		p["channel_id"] = e.ChannelID
	}

	return p
}

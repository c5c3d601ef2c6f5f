package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"

	"github.com/iho/cardtrade/internal/domain"
)

// webhookClient is the part of webhook.Client the publisher needs.
type webhookClient interface {
	CreateContent(content string, opts ...rest.RequestOpt) (*discord.Message, error)
	Close(ctx context.Context)
}

// DiscordPublisher announces finished trades in a channel through a webhook.
// Events other than settle, cancel and expiry are acknowledged silently.
type DiscordPublisher struct {
	client webhookClient
	label  string
}

// NewDiscordPublisher creates a publisher for the webhook at url.
func NewDiscordPublisher(url, label string) (*DiscordPublisher, error) {
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, fmt.Errorf("create discord webhook: %w", err)
	}

	return newDiscordPublisher(client, label), nil
}

func newDiscordPublisher(client webhookClient, label string) *DiscordPublisher {
	return &DiscordPublisher{client: client, label: label}
}

// Publish posts the announcement for event, if it has one.
func (p *DiscordPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	content, ok, err := p.render(event)
	if err != nil || !ok {
		return err
	}

	if _, err := p.client.CreateContent(content, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("post trade announcement: %w", err)
	}

	return nil
}

// Close releases the webhook client.
func (p *DiscordPublisher) Close(ctx context.Context) {
	p.client.Close(ctx)
}

func (p *DiscordPublisher) render(event *domain.OutboxEvent) (string, bool, error) {
	if event.AggregateType != domain.AggregateTypeTrade {
		return "", false, nil
	}

	ev, err := decodeTradeEvent(event.Payload)
	if err != nil {
		return "", false, err
	}

	var msg string

	switch event.EventType {
	case domain.EventTypeTradeSettled:
		msg = fmt.Sprintf("Trade #%d completed: <@%s> ⇄ <@%s>", ev.TradeID, ev.ProposerID, ev.ReceiverID)
		if ev.Give != "" && ev.Get != "" {
			msg += fmt.Sprintf("\n<@%s> gave %s\n<@%s> gave %s", ev.ProposerID, ev.Give, ev.ReceiverID, ev.Get)
		}
	case domain.EventTypeTradeCanceled:
		msg = fmt.Sprintf("Trade #%d between <@%s> and <@%s> was cancelled.", ev.TradeID, ev.ProposerID, ev.ReceiverID)
	case domain.EventTypeTradeExpired:
		msg = fmt.Sprintf("Trade #%d between <@%s> and <@%s> was cancelled after going idle.", ev.TradeID, ev.ProposerID, ev.ReceiverID)
	default:
		return "", false, nil
	}

	if p.label != "" {
		msg = fmt.Sprintf("**%s** · %s", p.label, msg)
	}

	return msg, true, nil
}

// decodeTradeEvent reads a payload that may have been round-tripped through
// JSON storage, where numbers come back as float64.
func decodeTradeEvent(payload map[string]any) (domain.TradeEvent, error) {
	var ev domain.TradeEvent

	raw, err := json.Marshal(payload)
	if err != nil {
		return ev, fmt.Errorf("encode trade event: %w", err)
	}

	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("decode trade event: %w", err)
	}

	return ev, nil
}

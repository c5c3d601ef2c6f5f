package memory

import (
	"context"
	"time"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// Create stages the event; it becomes visible on commit.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}

	ev := *event

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}

	t.outbox = append(t.outbox, &ev)

	return nil
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.OutboxEvent
	for _, ev := range r.store.outbox {
		if ev.Published {
			continue
		}

		c := *ev
		out = append(out, &c)

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

// MarkPublished flags an event as relayed.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, ev := range r.store.outbox {
		if ev.ID == id {
			at := publishedAt
			ev.Published = true
			ev.PublishedAt = &at

			return nil
		}
	}

	return nil
}

// GetByAggregate pages through the committed events of one aggregate in
// commit order.
func (r *OutboxRepository) GetByAggregate(_ context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []*domain.OutboxEvent{}
	skipped := 0
	for _, ev := range r.store.outbox {
		if ev.AggregateType != aggregateType || ev.AggregateID != aggregateID {
			continue
		}

		if skipped < offset {
			skipped++
			continue
		}

		c := *ev
		out = append(out, &c)

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

// DeletePublished drops events published before the cutoff.
func (r *OutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outbox[:0]
	for _, ev := range r.store.outbox {
		if ev.Published && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			continue
		}

		kept = append(kept, ev)
	}

	r.store.outbox = kept

	return nil
}

// All returns every committed event, for inspection.
func (r *OutboxRepository) All() []domain.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.OutboxEvent, len(r.store.outbox))
	for i, ev := range r.store.outbox {
		out[i] = *ev
	}

	return out
}

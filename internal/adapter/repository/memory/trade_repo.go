package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

// TradeRepository implements usecase.TradeRepository.
type TradeRepository struct {
	store *Store
}

// Create assigns the next id and stages the trade.
func (r *TradeRepository) Create(ctx context.Context, tx usecase.Transaction, trade *domain.Trade) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}

	id := r.store.nextTradeID.Add(1)

	if err := t.lockTrade(ctx, id); err != nil {
		return err
	}

	trade.ID = id

	t.mu.Lock()
	t.tradeRows[id] = trade.Clone()
	t.mu.Unlock()

	return nil
}

// GetByID returns the committed trade.
func (r *TradeRepository) GetByID(_ context.Context, id int64) (*domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	trade, ok := r.store.trades[id]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}

	return trade.Clone(), nil
}

// GetByIDForUpdate locks the trade row until tx ends.
func (r *TradeRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Trade, error) {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return nil, err
	}

	if err := t.lockTrade(ctx, id); err != nil {
		return nil, err
	}

	t.mu.Lock()
	staged, ok := t.tradeRows[id]
	t.mu.Unlock()

	if ok {
		return staged.Clone(), nil
	}

	return r.GetByID(ctx, id)
}

// Update stages the new trade state.
func (r *TradeRepository) Update(ctx context.Context, tx usecase.Transaction, trade *domain.Trade) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}

	if err := t.lockTrade(ctx, trade.ID); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, staged := t.tradeRows[trade.ID]; !staged {
		r.store.mu.RLock()
		_, exists := r.store.trades[trade.ID]
		r.store.mu.RUnlock()

		if !exists {
			return domain.ErrTradeNotFound
		}
	}

	t.tradeRows[trade.ID] = trade.Clone()

	return nil
}

// GetLatestActiveForAccount returns the newest open trade of account.
func (r *TradeRepository) GetLatestActiveForAccount(_ context.Context, account snowflake.ID) (*domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *domain.Trade
	for _, trade := range r.store.trades {
		if !trade.Status.IsAwaiting() || !trade.IsParticipant(account) {
			continue
		}

		if latest == nil || trade.ID > latest.ID {
			latest = trade
		}
	}

	if latest == nil {
		return nil, domain.ErrTradeNotFound
	}

	return latest.Clone(), nil
}

// ListIdle returns open trades last updated before the cutoff, oldest first.
func (r *TradeRepository) ListIdle(_ context.Context, before time.Time, limit int) ([]*domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Trade
	for _, trade := range r.store.trades {
		if trade.Status.IsAwaiting() && trade.UpdatedAt.Before(before) {
			out = append(out, trade.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *domain.Trade) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), cmp.Compare(a.ID, b.ID))
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// ListByAccount pages through the account's trades, newest first.
func (r *TradeRepository) ListByAccount(_ context.Context, account snowflake.ID, limit, offset int) ([]*domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Trade
	for _, trade := range r.store.trades {
		if trade.IsParticipant(account) {
			out = append(out, trade.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *domain.Trade) int {
		return cmp.Compare(b.ID, a.ID)
	})

	if offset >= len(out) {
		return []*domain.Trade{}, nil
	}

	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cardtrade/internal/adapter/repository/memory"
	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

func TestTradeUseCase_HappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))
	h.grant(t, bob, domain.Shards(1, 50))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(2)}, domain.Bundle{domain.Shards(1, 50)})
	assert.Equal(t, domain.TradeStatusAwaitingConfirm, trade.Status)

	res, err := h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)
	assert.False(t, res.BothConfirmed)
	assert.False(t, res.Settled)

	res, err = h.trades.Confirm(ctx, trade.ID, bob)
	require.NoError(t, err)
	assert.True(t, res.BothConfirmed)
	assert.True(t, res.Settled)
	assert.Equal(t, domain.TradeStatusAccepted, res.Trade.Status)

	assert.Equal(t, int64(0), h.quantity(t, alice, phoenix(1)))
	assert.Equal(t, int64(2), h.quantity(t, bob, phoenix(1)))
	assert.Equal(t, int64(50), h.quantity(t, alice, domain.Shards(1, 1)))
	assert.Equal(t, int64(0), h.quantity(t, bob, domain.Shards(1, 1)))

	var types []string
	for _, ev := range h.store.Outbox().All() {
		types = append(types, ev.EventType)
	}

	want := []string{domain.EventTypeTradeProposed, domain.EventTypeTradeResponded, domain.EventTypeTradeSettled}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("outbox events mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TradesSettled))
}

func TestTradeUseCase_InsufficientFundsAtConfirm(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))
	h.grant(t, bob, domain.Shards(1, 50))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(2)}, domain.Bundle{domain.Shards(1, 50)})

	// bob spends part of the shards after offering them
	require.NoError(t, h.balances.Debit(ctx, bob, domain.Shards(1, 30)))

	before := h.store.Snapshot()

	_, err := h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)

	_, err = h.trades.Confirm(ctx, trade.ID, bob)

	var ife *domain.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, domain.SideReceiver, ife.Side)
	assert.Equal(t, bob, ife.Account)
	assert.Equal(t, int64(50), ife.Need)
	assert.Equal(t, int64(20), ife.Have)

	if diff := cmp.Diff(before, h.store.Snapshot()); diff != "" {
		t.Fatalf("balances changed on failed settlement (-before +after):\n%s", diff)
	}

	got, err := h.trades.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusAwaitingConfirm, got.Status)
	assert.Nil(t, got.SettlementClaimedAt, "claim must be released")

	// topping up and confirming again retries the settlement
	h.grant(t, bob, domain.Shards(1, 30))

	res, err := h.trades.Confirm(ctx, trade.ID, bob)
	require.NoError(t, err)
	assert.True(t, res.Settled)
}

func TestTradeUseCase_ProposerCheckedFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))
	h.grant(t, bob, domain.Shards(1, 50))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(2)}, domain.Bundle{domain.Shards(1, 50)})

	require.NoError(t, h.balances.Debit(ctx, alice, phoenix(1)))
	require.NoError(t, h.balances.Debit(ctx, bob, domain.Shards(1, 50)))

	_, _ = h.trades.Confirm(ctx, trade.ID, bob)
	_, err := h.trades.Confirm(ctx, trade.ID, alice)

	var ife *domain.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, domain.SideProposer, ife.Side)
}

func TestTradeUseCase_CancelThenRespond(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(10))

	trade, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)

	_, err = h.trades.Cancel(ctx, trade.ID, carol)
	assert.ErrorIs(t, err, domain.ErrWrongParticipant)

	canceled, err := h.trades.Cancel(ctx, trade.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCanceled, canceled.Status)

	_, err = h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: bob, Get: domain.Bundle{domain.Tokens(10)}})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.trades.Cancel(ctx, trade.ID, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTradeUseCase_IdempotentConfirm(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(10))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	for range 3 {
		res, err := h.trades.Confirm(ctx, trade.ID, alice)
		require.NoError(t, err)
		assert.False(t, res.BothConfirmed)
		assert.True(t, res.Trade.ConfirmProposer)
		assert.False(t, res.Trade.ConfirmReceiver)
	}
}

func TestTradeUseCase_ReofferResetsConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(20))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	_, err := h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)

	trade, err = h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: bob, Get: domain.Bundle{domain.Tokens(5)}})
	require.NoError(t, err)
	assert.False(t, trade.ConfirmProposer)
	assert.False(t, trade.ConfirmReceiver)

	res, err := h.trades.Confirm(ctx, trade.ID, bob)
	require.NoError(t, err)
	assert.False(t, res.BothConfirmed, "proposer must confirm the new offer")

	res, err = h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, int64(5), h.quantity(t, alice, domain.Tokens(1)))
}

func TestTradeUseCase_RenegotiationDisabled(t *testing.T) {
	ctx := context.Background()
	opts := usecase.DefaultTradeOptions()
	opts.AllowRenegotiation = false
	h := newHarness(t, withOptions(opts))

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(20))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	_, err := h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: bob, Get: domain.Bundle{domain.Tokens(5)}})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTradeUseCase_OfferTimeOwnership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))

	_, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(2)}})

	var ife *domain.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, domain.SideProposer, ife.Side)

	trade, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)

	_, err = h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: bob, Get: domain.Bundle{domain.Tokens(1)}})
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, domain.SideReceiver, ife.Side)

	got, err := h.trades.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusAwaitingReceiver, got.Status, "failed respond must not persist")
}

func TestTradeUseCase_NoCardOnEitherSide(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, domain.Tokens(10))
	h.grant(t, bob, domain.Shards(1, 10))

	trade := h.negotiated(t, alice, bob, domain.Bundle{domain.Tokens(10)}, domain.Bundle{domain.Shards(1, 10)})

	_, err := h.trades.Confirm(ctx, trade.ID, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidBundle)
}

func TestTradeUseCase_NoDoubleSpend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(10))
	h.grant(t, carol, domain.Tokens(10))

	t1 := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})
	t2 := h.negotiated(t, alice, carol, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	_, err := h.trades.Confirm(ctx, t1.ID, bob)
	require.NoError(t, err)
	_, err = h.trades.Confirm(ctx, t2.ID, carol)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		settled atomic.Int32
		short   atomic.Int32
	)

	for _, id := range []int64{t1.ID, t2.ID} {
		wg.Add(1)

		go func(id int64) {
			defer wg.Done()

			res, err := h.trades.Confirm(ctx, id, alice)
			switch {
			case err == nil && res.Settled:
				settled.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				short.Add(1)
			default:
				t.Errorf("unexpected result: %+v, %v", res, err)
			}
		}(id)
	}

	wg.Wait()

	assert.Equal(t, int32(1), settled.Load())
	assert.Equal(t, int32(1), short.Load())
	assert.Equal(t, int64(0), h.quantity(t, alice, phoenix(1)))
	assert.Equal(t, int64(1), h.quantity(t, bob, phoenix(1))+h.quantity(t, carol, phoenix(1)))
	assert.Equal(t, int64(10), h.quantity(t, alice, domain.Tokens(1)))
}

func TestTradeUseCase_ConcurrentConfirmSettlesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))
	h.grant(t, bob, domain.Shards(1, 50))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(2)}, domain.Bundle{domain.Shards(1, 50)})

	var (
		wg      sync.WaitGroup
		settled atomic.Int32
	)

	for i := range 20 {
		wg.Add(1)

		account := alice
		if i%2 == 1 {
			account = bob
		}

		go func() {
			defer wg.Done()

			res, err := h.trades.Confirm(ctx, trade.ID, account)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInvalidState)
				return
			}

			if res.Settled {
				settled.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), settled.Load())
	assert.Equal(t, int64(2), h.quantity(t, bob, phoenix(1)))
	assert.Equal(t, int64(50), h.quantity(t, alice, domain.Shards(1, 1)))
}

func TestTradeUseCase_CancelRacesConfirm(t *testing.T) {
	ctx := context.Background()

	for range 20 {
		h := newHarness(t)

		h.grant(t, alice, phoenix(1))
		h.grant(t, bob, domain.Tokens(10))

		trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

		_, err := h.trades.Confirm(ctx, trade.ID, alice)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			_, _ = h.trades.Confirm(ctx, trade.ID, bob)
		}()

		go func() {
			defer wg.Done()
			_, _ = h.trades.Cancel(ctx, trade.ID, alice)
		}()

		wg.Wait()

		final, err := h.trades.Get(ctx, trade.ID)
		require.NoError(t, err)
		require.True(t, final.Status.IsTerminal(), "expected terminal status, got %s", final.Status)

		moved := h.quantity(t, bob, phoenix(1)) == 1
		assert.Equal(t, final.Status == domain.TradeStatusAccepted, moved)
	}
}

func TestTradeUseCase_StatusMonotonic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(10))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	_, _ = h.trades.Confirm(ctx, trade.ID, alice)
	res, err := h.trades.Confirm(ctx, trade.ID, bob)
	require.NoError(t, err)
	require.True(t, res.Settled)

	_, err = h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: bob, Get: domain.Bundle{domain.Tokens(1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.trades.Cancel(ctx, trade.ID, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.trades.Confirm(ctx, trade.ID, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.settler.Settle(ctx, trade.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Equal(t, int64(1), h.quantity(t, bob, phoenix(1)), "settling twice must not move items again")
}

func TestTradeUseCase_StaleClaimRecovered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))
	h.grant(t, bob, domain.Tokens(10))

	trade := h.negotiated(t, alice, bob, domain.Bundle{phoenix(1)}, domain.Bundle{domain.Tokens(10)})

	// simulate a crash after the claim was committed
	tx, err := h.store.TxManager().Begin(ctx)
	require.NoError(t, err)

	locked, err := h.store.Trades().GetByIDForUpdate(ctx, tx, trade.ID)
	require.NoError(t, err)

	_, _ = locked.Confirm(alice, h.clock.Now())
	_, _ = locked.Confirm(bob, h.clock.Now())
	require.True(t, locked.ClaimSettlement(h.clock.Now(), usecase.DefaultSettlementClaimTTL))
	require.NoError(t, h.store.Trades().Update(ctx, tx, locked))
	require.NoError(t, tx.Commit(ctx))

	res, err := h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)
	assert.False(t, res.Settled, "live claim must block a second settlement")

	h.clock.Advance(usecase.DefaultSettlementClaimTTL)

	res, err = h.trades.Confirm(ctx, trade.ID, alice)
	require.NoError(t, err)
	assert.True(t, res.Settled)
}

func TestTradeUseCase_ExpireIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))

	stale, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)

	fresh, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: carol, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)

	n, err := h.trades.ExpireIdle(ctx, 15*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.trades.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCanceled, got.Status)

	got, err = h.trades.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusAwaitingReceiver, got.Status)

	events := h.store.Outbox().All()
	assert.Equal(t, domain.EventTypeTradeExpired, events[len(events)-1].EventType)
}

func TestTradeUseCase_CancelLatestAndAttachMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(2))

	first, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)
	second, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: carol, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)

	attached, err := h.trades.AttachMessage(ctx, first.ID, 77, 88)
	require.NoError(t, err)
	require.NotNil(t, attached.ChannelID)
	assert.Equal(t, "77", attached.ChannelID.String())

	_, err = h.trades.AttachMessage(ctx, first.ID, 0, 88)
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	active, err := h.trades.GetActive(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	canceled, err := h.trades.CancelLatest(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, second.ID, canceled.ID)

	canceled, err = h.trades.CancelLatest(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, first.ID, canceled.ID)

	_, err = h.trades.CancelLatest(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)

	list, err := h.trades.ListForAccount(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTradeUseCase_SelfTradeAndNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: alice, Give: domain.Bundle{phoenix(1)}})
	assert.ErrorIs(t, err, domain.ErrSelfTrade)

	_, err = h.trades.Get(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)

	_, err = h.trades.Confirm(ctx, 42, alice)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestTradeUseCase_History(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.grant(t, alice, phoenix(1))

	trade, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: alice, ReceiverID: bob, Give: domain.Bundle{phoenix(1)}})
	require.NoError(t, err)
	_, err = h.trades.Cancel(ctx, trade.ID, bob)
	require.NoError(t, err)

	events, err := h.trades.History(ctx, trade.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeTradeProposed, events[0].EventType)
	assert.Equal(t, domain.EventTypeTradeCanceled, events[1].EventType)

	events, err = h.trades.History(ctx, trade.ID, 10, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTradeCanceled, events[0].EventType)

	events, err = h.trades.History(ctx, trade.ID+1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTradeUseCase_HistoryWithoutOutbox(t *testing.T) {
	store := memory.NewStore()
	trades := usecase.NewTradeUseCase(
		store.TxManager(), store.Trades(), store.Inventory(), store.Currency(),
		nil, nil, nil, nil, nil, zerolog.Nop(), usecase.DefaultTradeOptions(),
	)

	events, err := trades.History(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/domain"
)

type balanceServiceStub struct {
	granted map[snowflake.ID]domain.Bundle
	grantFn func(ctx context.Context, account snowflake.ID, bundle domain.Bundle) error
}

func (s *balanceServiceStub) Grant(ctx context.Context, account snowflake.ID, bundle domain.Bundle) error {
	if s.grantFn != nil {
		return s.grantFn(ctx, account, bundle)
	}
	if s.granted == nil {
		s.granted = map[snowflake.ID]domain.Bundle{}
	}
	s.granted[account] = append(s.granted[account], bundle...)
	return nil
}

func (s *balanceServiceStub) GetInventory(ctx context.Context, account snowflake.ID) ([]domain.InventoryLine, error) {
	var lines []domain.InventoryLine
	for _, it := range s.granted[account] {
		if c, ok := it.(domain.CardItem); ok {
			lines = append(lines, domain.InventoryLine{AccountID: account, Printing: c.Printing, Quantity: c.Qty})
		}
	}
	return lines, nil
}

func (s *balanceServiceStub) GetWallet(ctx context.Context, account snowflake.ID) (domain.Wallet, error) {
	return domain.Wallet{AccountID: account, Tokens: 40, Shards: map[int32]int64{2: 7}}, nil
}

func TestBalanceHandler_WalletForMe(t *testing.T) {
	h := NewBalanceHandler(&balanceServiceStub{}, nil)

	rr := serve(t, http.MethodGet, "/accounts/{account}/wallet", h.Wallet, httptest.NewRequest(http.MethodGet, "/accounts/me/wallet", nil), 1001)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.WalletResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "1001", resp.AccountID)
	assert.Equal(t, int64(40), resp.Tokens)
	assert.Equal(t, int64(7), resp.Shards["2"])
}

func TestBalanceHandler_InvalidAccount(t *testing.T) {
	h := NewBalanceHandler(&balanceServiceStub{}, nil)

	rr := serve(t, http.MethodGet, "/accounts/{account}/inventory", h.Inventory, httptest.NewRequest(http.MethodGet, "/accounts/bob/inventory", nil), 1001)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBalanceHandler_GrantThenInventory(t *testing.T) {
	svc := &balanceServiceStub{}
	h := NewBalanceHandler(svc, nil)

	body := jsonBody(t, dto.GrantRequest{Items: []dto.ItemRequest{
		{Type: "card", Name: "Phoenix", Rarity: "rare", Set: "SetA", Quantity: 2},
	}})

	rr := serve(t, http.MethodPost, "/accounts/{account}/grant", h.Grant, httptest.NewRequest(http.MethodPost, "/accounts/2002/grant", body), 1001)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.InventoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2002", resp.AccountID)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "Phoenix", resp.Lines[0].Name)
	assert.Equal(t, int64(2), resp.Lines[0].Quantity)
}

func TestBalanceHandler_GrantRejectsInvalidItems(t *testing.T) {
	h := NewBalanceHandler(&balanceServiceStub{
		grantFn: func(ctx context.Context, account snowflake.ID, bundle domain.Bundle) error {
			_, err := bundle.Normalize()
			return err
		},
	}, nil)

	body := jsonBody(t, dto.GrantRequest{Items: []dto.ItemRequest{{Type: "card", Quantity: 1}}})

	rr := serve(t, http.MethodPost, "/accounts/{account}/grant", h.Grant, httptest.NewRequest(http.MethodPost, "/accounts/2002/grant", body), 1001)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

package handler

import (
	"context"
	"net/http"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/domain"
)

// BalanceService exposes holdings views and grants.
type BalanceService interface {
	Grant(ctx context.Context, account snowflake.ID, bundle domain.Bundle) error
	GetInventory(ctx context.Context, account snowflake.ID) ([]domain.InventoryLine, error)
	GetWallet(ctx context.Context, account snowflake.ID) (domain.Wallet, error)
}

// BalanceHandler handles inventory and wallet requests.
type BalanceHandler struct {
	balances BalanceService
	resolver dto.PrintingResolver
}

// NewBalanceHandler creates a new BalanceHandler. resolver may be nil.
func NewBalanceHandler(balances BalanceService, resolver dto.PrintingResolver) *BalanceHandler {
	return &BalanceHandler{balances: balances, resolver: resolver}
}

// Inventory lists the cards an account holds.
func (h *BalanceHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		writeDomainError(w, r, "invalid account id", err)
		return
	}

	lines, err := h.balances.GetInventory(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, "failed to get inventory", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InventoryFromDomain(account.String(), lines))
}

// Wallet shows an account's currency balances.
func (h *BalanceHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		writeDomainError(w, r, "invalid account id", err)
		return
	}

	wallet, err := h.balances.GetWallet(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, "failed to get wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WalletFromDomain(wallet))
}

// Grant credits items to an account.
func (h *BalanceHandler) Grant(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		writeDomainError(w, r, "invalid account id", err)
		return
	}

	var req dto.GrantRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	bundle, err := dto.ToBundle(req.Items, h.resolver)
	if err != nil {
		writeDomainError(w, r, "invalid items", err)
		return
	}

	if err := h.balances.Grant(r.Context(), account, bundle); err != nil {
		writeDomainError(w, r, "failed to grant items", err)
		return
	}

	lines, err := h.balances.GetInventory(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, "failed to get inventory", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InventoryFromDomain(account.String(), lines))
}

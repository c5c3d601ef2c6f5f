package handler

import (
	"net/http"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/catalog"
)

// Catalog looks up printings.
type Catalog interface {
	Resolve(value string) (domain.Printing, error)
	Suggest(query string, limit int) []catalog.Suggestion
}

// CatalogHandler serves printing autocomplete and resolution.
type CatalogHandler struct {
	catalog Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// Suggest returns printings matching ?q=.
func (h *CatalogHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := parseIntQuery(r, "limit", catalog.MaxSuggestions)

	writeJSON(w, http.StatusOK, h.catalog.Suggest(q, limit))
}

// Resolve returns the canonical printing for ?value=.
func (h *CatalogHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing value", "")
		return
	}

	p, err := h.catalog.Resolve(value)
	if err != nil {
		writeDomainError(w, r, "failed to resolve printing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PrintingResponse{
		Name:   p.Name,
		Rarity: p.Rarity,
		Set:    p.Set,
		Code:   p.Code,
		CardID: p.CardID,
	})
}

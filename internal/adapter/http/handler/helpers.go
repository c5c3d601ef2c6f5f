package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/adapter/http/middleware"
	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes it, attaching the
// shortfall when funds are missing.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)

	resp := dto.ErrorResponse{Error: message, Message: err.Error()}

	if insufficient, ok := usecase.IsInsufficientFunds(err); ok {
		resp.Shortfall = dto.ShortfallFromDomain(insufficient)
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
		if status == http.StatusInternalServerError {
			resp.Message = ""
		}
	}

	writeJSON(w, status, resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWrongParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, dto.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidBundle),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrSelfTrade),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrInvalidReference):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest reads a JSON body into dst and validates it.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", dto.ErrInvalidRequest, err)
	}

	return dto.Validate(dst)
}

// callerAccount returns the authenticated account.
func callerAccount(r *http.Request) (snowflake.ID, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	return id.Account, ok
}

// accountParam reads {account}, accepting "me" for the caller.
func accountParam(r *http.Request) (snowflake.ID, error) {
	raw := chi.URLParam(r, "account")
	if raw == "me" {
		if account, ok := callerAccount(r); ok {
			return account, nil
		}
	}

	return domain.ParseAccountID(raw)
}

// tradeIDParam reads {id} as a trade number.
func tradeIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: trade id must be a positive integer", dto.ErrInvalidRequest)
	}

	return id, nil
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

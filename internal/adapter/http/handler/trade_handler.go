package handler

import (
	"context"
	"net/http"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

// TradeService is the trade workflow the handler drives.
type TradeService interface {
	Propose(ctx context.Context, input usecase.ProposeInput) (*domain.Trade, error)
	Respond(ctx context.Context, input usecase.RespondInput) (*domain.Trade, error)
	Confirm(ctx context.Context, tradeID int64, account snowflake.ID) (*usecase.ConfirmResult, error)
	Cancel(ctx context.Context, tradeID int64, account snowflake.ID) (*domain.Trade, error)
	CancelLatest(ctx context.Context, account snowflake.ID) (*domain.Trade, error)
	AttachMessage(ctx context.Context, tradeID int64, channelID, messageID snowflake.ID) (*domain.Trade, error)
	Get(ctx context.Context, tradeID int64) (*domain.Trade, error)
	GetActive(ctx context.Context, account snowflake.ID) (*domain.Trade, error)
	ListForAccount(ctx context.Context, account snowflake.ID, limit, offset int) ([]*domain.Trade, error)
	History(ctx context.Context, tradeID int64, limit, offset int) ([]*domain.OutboxEvent, error)
}

// TradeHandler handles trade-related HTTP requests.
type TradeHandler struct {
	trades   TradeService
	resolver dto.PrintingResolver
}

// NewTradeHandler creates a new TradeHandler. resolver may be nil.
func NewTradeHandler(trades TradeService, resolver dto.PrintingResolver) *TradeHandler {
	return &TradeHandler{trades: trades, resolver: resolver}
}

// Propose opens a trade from the caller to the receiver.
func (h *TradeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.ProposeTradeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	receiver, err := domain.ParseAccountID(req.ReceiverID)
	if err != nil {
		writeDomainError(w, r, "invalid receiver", err)
		return
	}

	give, err := dto.ToBundle(req.Give, h.resolver)
	if err != nil {
		writeDomainError(w, r, "invalid offer", err)
		return
	}

	trade, err := h.trades.Propose(r.Context(), usecase.ProposeInput{
		ProposerID: caller,
		ReceiverID: receiver,
		Give:       give,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, r, "failed to propose trade", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TradeFromDomain(trade))
}

// Respond records the caller's side of a trade.
func (h *TradeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok {
		return
	}

	var req dto.RespondTradeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	get, err := dto.ToBundle(req.Get, h.resolver)
	if err != nil {
		writeDomainError(w, r, "invalid offer", err)
		return
	}

	trade, err := h.trades.Respond(r.Context(), usecase.RespondInput{TradeID: id, AccountID: caller, Get: get})
	if err != nil {
		writeDomainError(w, r, "failed to respond to trade", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// Confirm records the caller's confirmation and settles when both agree.
func (h *TradeHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok {
		return
	}

	result, err := h.trades.Confirm(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, r, "failed to confirm trade", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConfirmResponse{
		Trade:         dto.TradeFromDomain(result.Trade),
		BothConfirmed: result.BothConfirmed,
		Settled:       result.Settled,
	})
}

// Cancel cancels a trade the caller participates in.
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok {
		return
	}

	trade, err := h.trades.Cancel(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, r, "failed to cancel trade", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// CancelLatest cancels the caller's most recent open trade.
func (h *TradeHandler) CancelLatest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	trade, err := h.trades.CancelLatest(r.Context(), caller)
	if err != nil {
		writeDomainError(w, r, "failed to cancel trade", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// AttachMessage stores where the trade's public message lives.
func (h *TradeHandler) AttachMessage(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok {
		return
	}

	var req dto.AttachMessageRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	if !h.participates(w, r, id, caller) {
		return
	}

	channelID, err := snowflake.Parse(req.ChannelID)
	if err != nil {
		writeDomainError(w, r, "invalid channel id", domain.ErrInvalidReference)
		return
	}

	messageID, err := snowflake.Parse(req.MessageID)
	if err != nil {
		writeDomainError(w, r, "invalid message id", domain.ErrInvalidReference)
		return
	}

	trade, err := h.trades.AttachMessage(r.Context(), id, channelID, messageID)
	if err != nil {
		writeDomainError(w, r, "failed to attach message", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// Get returns a trade the caller participates in.
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok {
		return
	}

	trade, err := h.trades.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get trade", err)
		return
	}

	if !trade.IsParticipant(caller) {
		writeDomainError(w, r, "failed to get trade", domain.ErrWrongParticipant)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// Active returns the caller's most recent open trade.
func (h *TradeHandler) Active(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	trade, err := h.trades.GetActive(r.Context(), caller)
	if err != nil {
		writeDomainError(w, r, "failed to get active trade", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeFromDomain(trade))
}

// List lists the caller's trades, newest first.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	trades, err := h.trades.ListForAccount(r.Context(), caller, limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list trades", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradesFromDomain(trades))
}

// History lists the lifecycle events of a trade the caller takes part in.
func (h *TradeHandler) History(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndTrade(w, r)
	if !ok || !h.participates(w, r, id, caller) {
		return
	}

	events, err := h.trades.History(r.Context(), id, parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, "failed to get trade history", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TradeEventsFromDomain(events))
}

func (h *TradeHandler) callerAndTrade(w http.ResponseWriter, r *http.Request) (snowflake.ID, int64, bool) {
	caller, ok := callerAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return 0, 0, false
	}

	id, err := tradeIDParam(r)
	if err != nil {
		writeDomainError(w, r, "invalid trade id", err)
		return 0, 0, false
	}

	return caller, id, true
}

func (h *TradeHandler) participates(w http.ResponseWriter, r *http.Request, id int64, caller snowflake.ID) bool {
	trade, err := h.trades.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get trade", err)
		return false
	}

	if !trade.IsParticipant(caller) {
		writeDomainError(w, r, "not a participant", domain.ErrWrongParticipant)
		return false
	}

	return true
}

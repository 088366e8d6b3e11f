package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ntrli-bot/internal/bot"
	"ntrli-bot/internal/middleware"
	"ntrli-bot/internal/outbox"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateRequest represents one inbound chat message forwarded by the gateway
type UpdateRequest struct {
	SenderID       int64  `json:"sender_id" validate:"required,gt=0"`
	Text           string `json:"text" validate:"required,max=4096,nocontrol"`
	ReplyImagePath string `json:"reply_image_path,omitempty" validate:"omitempty,max=512,nocontrol"`
}

// UpdateResponse carries the replies produced so far for the sender
type UpdateResponse struct {
	Handled  bool             `json:"handled"`
	Messages []outbox.Message `json:"messages"`
}

// Dispatcher routes a chat update to its command handler
type Dispatcher interface {
	Dispatch(ctx context.Context, u bot.Update) error
}

// UpdateHandler handles the chat gateway webhook
type UpdateHandler struct {
	bot    Dispatcher
	outbox outbox.Outbox
	logger *zap.Logger
}

// NewUpdateHandler creates a new UpdateHandler
func NewUpdateHandler(dispatcher Dispatcher, box outbox.Outbox, logger *zap.Logger) *UpdateHandler {
	return &UpdateHandler{
		bot:    dispatcher,
		outbox: box,
		logger: logger,
	}
}

// RegisterRoutes registers the webhook routes. updateMiddleware wraps only
// the update intake; outbox drains are never throttled.
func (h *UpdateHandler) RegisterRoutes(r chi.Router, updateMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/api/updates", func(r chi.Router) {
		r.With(updateMiddleware...).Post("/", h.HandleUpdate)
		r.Get("/{senderID}/outbox", h.DrainOutbox)
	})
}

// HandleUpdate dispatches one update and returns the sender's pending replies.
// Replies from queued jobs arrive later through DrainOutbox.
func (h *UpdateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest

	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Update validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, r, validationErrors)
			return
		}

		middleware.RespondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	handled := true
	err := h.bot.Dispatch(r.Context(), bot.Update{
		SenderID:       req.SenderID,
		Text:           req.Text,
		ReplyImagePath: req.ReplyImagePath,
	})
	switch {
	case errors.Is(err, bot.ErrNotACommand):
		handled = false
	case err != nil:
		h.logger.Error("Dispatch failed", zap.Int64("sender_id", req.SenderID), zap.Error(err))
		middleware.RespondWithError(w, r, http.StatusInternalServerError, "failed to handle update")
		return
	}

	messages, err := h.outbox.Drain(r.Context(), req.SenderID)
	if err != nil {
		h.logger.Error("Outbox drain failed", zap.Int64("sender_id", req.SenderID), zap.Error(err))
		middleware.RespondWithError(w, r, http.StatusServiceUnavailable, "replies unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, UpdateResponse{Handled: handled, Messages: messages})
}

// DrainOutbox returns and clears the pending replies of a sender
func (h *UpdateHandler) DrainOutbox(w http.ResponseWriter, r *http.Request) {
	senderID, err := strconv.ParseInt(chi.URLParam(r, "senderID"), 10, 64)
	if err != nil || senderID <= 0 {
		middleware.RespondWithError(w, r, http.StatusBadRequest, "invalid sender id")
		return
	}

	messages, err := h.outbox.Drain(r.Context(), senderID)
	if err != nil {
		h.logger.Error("Outbox drain failed", zap.Int64("sender_id", senderID), zap.Error(err))
		middleware.RespondWithError(w, r, http.StatusServiceUnavailable, "replies unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, UpdateResponse{Handled: true, Messages: messages})
}

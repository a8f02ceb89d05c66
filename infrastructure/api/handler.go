package api

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"chat-presence/services"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"
)

// UserHeader names the participant acting on /messages and /status.
const UserHeader = "User"

const maxBodyBytes = 1 << 20

type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	monitoring *observability.MonitoringManager
}

func NewHandler(log *slog.Logger, service services.IChatService, monitoring *observability.MonitoringManager) *Handler {
	return &Handler{log: log, service: service, monitoring: monitoring}
}

func (h *Handler) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	participant, err := h.service.RegisterParticipant(r.Context(), body.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantResponse(participant))
}

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.ListParticipants(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(participants, func(p domain.Participant, _ int) participantResponse {
		return toParticipantResponse(p)
	}))
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body postMessageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.service.PostMessage(r.Context(), domain.PostMessageCommand{
		From: r.Header.Get(UserHeader),
		To:   body.To,
		Text: body.Text,
		Type: domain.MessageType(body.Type),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: string(id)})
}

// GetMessages reads ?limit when present. Anything but a positive integer is
// rejected.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	cmd := domain.GetMessagesCommand{User: r.Header.Get(UserHeader)}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %q", errors.ErrInvalidLimit, raw))
			return
		}
		cmd.Limit = &limit
	}
	messages, err := h.service.GetMessages(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Heartbeat(r.Context(), r.Header.Get(UserHeader)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitoring.GetLatest())
}

// writeError maps the error taxonomy onto status codes. Unknown errors are
// logged and reported as 500 without their detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		return
	}
	h.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrSenderNotRegistered), stderrors.Is(err, errors.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrValidationFailed, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

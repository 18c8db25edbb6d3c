package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/mesh-service/internal/chat"
	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/topic"
	"github.com/cwrk-planet/mesh-service/internal/wire"
)

type Handler struct {
	session *mesh.Session
	namer   *topic.Namer
}

func NewHandler(session *mesh.Session, namer *topic.Namer) *Handler {
	return &Handler{session: session, namer: namer}
}

type SendRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type MessageResponse struct {
	Key       string `json:"key"`
	Timestamp uint64 `json:"ts_ms"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
}

type MessagesResponse struct {
	Topic    string            `json:"topic"`
	Messages []MessageResponse `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /spaces/{id}/messages
func (h *Handler) GetSpaceMessages(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "id")
	h.backfill(w, r, h.namer.Space(spaceID))
}

// POST /spaces/{id}/messages
func (h *Handler) PostSpaceMessage(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "id")
	h.send(w, r, h.namer.Space(spaceID), "")
}

// GET /dm/{user}/{peer}/messages
func (h *Handler) GetDirectMessages(w http.ResponseWriter, r *http.Request) {
	user, peer := chi.URLParam(r, "user"), chi.URLParam(r, "peer")
	h.backfill(w, r, h.namer.Direct(user, peer))
}

// POST /dm/{user}/{peer}/messages — sender берётся из {user}
func (h *Handler) PostDirectMessage(w http.ResponseWriter, r *http.Request) {
	user, peer := chi.URLParam(r, "user"), chi.URLParam(r, "peer")
	h.send(w, r, h.namer.Direct(user, peer), user)
}

func (h *Handler) backfill(w http.ResponseWriter, r *http.Request, topicName string) {
	msgs, err := chat.Backfill(r.Context(), h.session, topicName)
	if err != nil {
		slog.Error("handler.backfill:", slog.String("topic", topicName), slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "history unavailable"})
		return
	}

	items := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toResponse(m))
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Topic: topicName, Messages: items})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, topicName, sender string) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if sender == "" {
		sender = strings.TrimSpace(req.Sender)
	}
	if sender == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "sender is required"})
		return
	}

	msg, err := chat.SendOnce(r.Context(), h.session, topicName, sender, req.Content)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrNotDelivered):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case err != nil:
		slog.Error("handler.send:", slog.String("topic", topicName), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "send failed"})
	default:
		writeJSON(w, http.StatusCreated, toResponse(msg))
	}
}

func toResponse(m wire.Message) MessageResponse {
	return MessageResponse{
		Key:       m.Key(),
		Timestamp: m.Timestamp,
		Sender:    m.Sender,
		Content:   m.Content,
	}
}

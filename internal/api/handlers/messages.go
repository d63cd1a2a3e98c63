package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

type MessageHandler struct {
	Messages *services.MessageService
	Log      *slog.Logger
}

func NewMessageHandler(messages *services.MessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{Messages: messages, Log: log}
}

type sendReq struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// Send is anonymous; nothing from the request other than the body is kept.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if _, err := h.Messages.Send(r.Context(), req.Username, req.Content); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "Message sent successfully", nil)
}

type listResp struct {
	Messages []models.Message `json:"messages"`
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	msgs, err := h.Messages.List(r.Context(), id.ID)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", listResp{Messages: msgs})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if err := h.Messages.Delete(r.Context(), id.ID, chi.URLParam(r, "messageID")); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Message deleted", nil)
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

// PageHandler serves JSON descriptors for the browser pages. Rendering is
// left to the frontend; these only say which page applies and with what data.
type PageHandler struct {
	Accounts *services.AccountService
	Log      *slog.Logger
}

func NewPageHandler(accounts *services.AccountService, log *slog.Logger) *PageHandler {
	return &PageHandler{Accounts: accounts, Log: log}
}

type page struct {
	Page string `json:"page"`
	Data any    `json:"data,omitempty"`
}

// Static returns a handler for a page that needs no data.
func (h *PageHandler) Static(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, page{Page: name})
	}
}

func (h *PageHandler) Verify(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, page{Page: "verify", Data: map[string]string{"username": chi.URLParam(r, "username")}})
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, page{Page: "dashboard", Data: id})
}

func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	accepting, err := h.Accounts.RecipientStatus(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page{Page: "profile", Data: recipientResp{Username: username, IsAcceptingMessages: accepting}})
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

type AccountHandler struct {
	Accounts *services.AccountService
	Sessions *middleware.Sessions
	Log      *slog.Logger
}

func NewAccountHandler(accounts *services.AccountService, sessions *middleware.Sessions, log *slog.Logger) *AccountHandler {
	return &AccountHandler{Accounts: accounts, Sessions: sessions, Log: log}
}

type acceptResp struct {
	IsAcceptingMessages bool       `json:"isAcceptingMessages"`
	Token               string     `json:"token,omitempty"`
	ExpiresAt           *time.Time `json:"expiresAt,omitempty"`
}

// GetAcceptMessages reads the flag from the store, not from the session.
func (h *AccountHandler) GetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	accepting, err := h.Accounts.AcceptingMessages(r.Context(), id.ID)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", acceptResp{IsAcceptingMessages: accepting})
}

type acceptReq struct {
	AcceptMessages *bool `json:"acceptMessages"`
}

// SetAcceptMessages updates the flag and re-issues the session so it carries
// the new value.
func (h *AccountHandler) SetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	var req acceptReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if req.AcceptMessages == nil {
		writeServiceError(w, r, h.Log, validate.Errs{{Field: "acceptMessages", Msg: "required"}})
		return
	}

	id, _ := middleware.IdentityFrom(r.Context())
	u, err := h.Accounts.SetAcceptingMessages(r.Context(), id.ID, *req.AcceptMessages)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	tok, exp, err := h.Sessions.Issue(w, services.IdentityOf(u))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Message acceptance status updated successfully",
		acceptResp{IsAcceptingMessages: u.IsAcceptingMessages, Token: tok, ExpiresAt: &exp})
}

type usernameResp struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

func (h *AccountHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	available, err := h.Accounts.CheckUsername(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	if !available {
		httpx.WriteError(w, http.StatusConflict, "username_taken", "Username is already taken",
			usernameResp{Username: username, Available: false})
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Username is unique", usernameResp{Username: username, Available: true})
}

type recipientResp struct {
	Username            string `json:"username"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
}

func (h *AccountHandler) RecipientStatus(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	accepting, err := h.Accounts.RecipientStatus(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", recipientResp{Username: username, IsAcceptingMessages: accepting})
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

type AuthHandler struct {
	Accounts *services.AccountService
	Sessions *middleware.Sessions
	Log      *slog.Logger
}

func NewAuthHandler(accounts *services.AccountService, sessions *middleware.Sessions, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Sessions: sessions, Log: log}
}

type sessionResp struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      auth.Identity `json:"user"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if _, err := h.Accounts.Register(r.Context(), req); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "User registered successfully. Please verify your account.", nil)
}

type verifyReq struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if err := h.Accounts.Verify(r.Context(), req.Username, req.Code); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Account verified successfully", nil)
}

type resendReq struct {
	Username string `json:"username"`
}

func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req resendReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if err := h.Accounts.ResendCode(r.Context(), req.Username); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "A new verification code has been sent", nil)
}

type signInReq struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	id, err := h.Accounts.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	tok, exp, err := h.Sessions.Issue(w, id)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Signed in", sessionResp{Token: tok, ExpiresAt: exp, User: id})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	httpx.WriteSuccess(w, http.StatusOK, "Signed out", nil)
}

// Session echoes the identity carried by the caller's session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	httpx.WriteSuccess(w, http.StatusOK, "", id)
}

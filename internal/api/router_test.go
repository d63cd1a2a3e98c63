package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
	"github.com/Nexus-Agni/ShadowSpeak/internal/config"
	"github.com/Nexus-Agni/ShadowSpeak/internal/logger"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository/memory"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendVerification(_ context.Context, _ string, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[username] = code
	return nil
}

func (m *captureMailer) code(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[username]
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	h      http.Handler
	mailer *captureMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()
	cfg := config.Config{AllowedOrigins: []string{"*"}}
	users := memory.NewUsers()
	mailer := &captureMailer{codes: map[string]string{}}

	accounts := services.NewAccountService(users, mailer, nil, services.AccountConfig{
		CodeTTL: 10 * time.Minute, CodeLength: 6, DefaultAccepting: true,
	}, log)
	messages := services.NewMessageService(users, nil, log)
	sm := auth.NewSessionManager(auth.SessionConfig{Secret: "test-secret", Issuer: "shadowspeak", TTL: time.Hour})

	h := NewRouter(RouterDeps{
		Cfg:      cfg,
		Accounts: accounts,
		Messages: messages,
		Sessions: middleware.NewSessions(sm, "shadowspeak_session", false),
		Log:      log,
	})
	return &testServer{t: t, h: h, mailer: mailer}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// signedUp registers and verifies username, returning a session token.
func (s *testServer) signedUp(username string) string {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/api/sign-up", "", map[string]string{
		"username": username, "email": username + "@x.io", "password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/verify-code", "", map[string]string{
		"username": username, "code": s.mailer.code(username),
	})
	require.Equal(s.t, http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodPost, "/api/sign-in", "", map[string]string{
		"identifier": username, "password": "password123",
	})
	require.Equal(s.t, http.StatusOK, rec.Code)
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(s.t, sess.Token)
	return sess.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSignUpVerifySignIn(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/sign-up", "", map[string]string{
		"username": "alice", "email": "alice@x.io", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	rec, env = s.do(http.MethodPost, "/api/sign-up", "", map[string]string{
		"username": "x", "email": "bad", "password": "1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Code)

	rec, env = s.do(http.MethodPost, "/api/sign-in", "", map[string]string{
		"identifier": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_verified", env.Code)

	code := s.mailer.code("alice")
	wrong := "9" + code[1:]
	if wrong == code {
		wrong = "8" + code[1:]
	}
	rec, env = s.do(http.MethodPost, "/api/verify-code", "", map[string]string{"username": "alice", "code": wrong})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_code", env.Code)

	rec, _ = s.do(http.MethodPost, "/api/verify-code", "", map[string]string{"username": "alice", "code": code})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodPost, "/api/resend-code", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already_verified", env.Code)

	rec, env = s.do(http.MethodPost, "/api/sign-in", "", map[string]string{
		"identifier": "alice@x.io", "password": "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "bad_credentials", env.Code)

	rec, env = s.do(http.MethodPost, "/api/sign-in", "", map[string]string{
		"identifier": "ghost", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no_such_user", env.Code)

	rec, env = s.do(http.MethodPost, "/api/sign-in", "", map[string]string{
		"identifier": "alice", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "shadowspeak_session", rec.Result().Cookies()[0].Name)

	var sess struct {
		Token string        `json:"token"`
		User  auth.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, "alice", sess.User.Username)

	rec, env = s.do(http.MethodGet, "/api/auth/session", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.Identity
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, sess.User.ID, me.ID)
}

func TestMessageLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := s.signedUp("bob")

	rec, env := s.do(http.MethodGet, "/api/get-messages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", env.Code)

	rec, env = s.do(http.MethodGet, "/api/get-messages", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/api/send-message", "", map[string]string{"username": "bob", "content": "too short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Code)

	rec, env = s.do(http.MethodPost, "/api/send-message", "", map[string]string{"username": "nobody", "content": "hello there friend"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "recipient_not_found", env.Code)

	rec, _ = s.do(http.MethodPost, "/api/send-message", "", map[string]string{"username": "bob", "content": "you are doing great"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/get-messages", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Messages []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "you are doing great", list.Messages[0].Content)

	id := list.Messages[0].ID
	rec, _ = s.do(http.MethodDelete, "/api/delete-message/"+id, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = s.do(http.MethodDelete, "/api/delete-message/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Code)
}

func TestPublicRoutesAcceptExtraFields(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/sign-up", "", map[string]string{
		"username": "carol", "email": "carol@x.io", "password": "password123", "confirmPassword": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)

	rec, env = s.do(http.MethodPost, "/api/verify-code", "", map[string]string{
		"username": "carol", "code": s.mailer.code("carol"),
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	rec, env = s.do(http.MethodPost, "/api/send-message", "", map[string]any{
		"username": "carol", "content": "extra fields are fine", "suggested": true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, env.Message)
}

func TestAcceptMessagesToggleReissuesSession(t *testing.T) {
	s := newTestServer(t)
	tok := s.signedUp("carol")

	rec, env := s.do(http.MethodPost, "/api/accept-messages", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Code)

	rec, env = s.do(http.MethodPost, "/api/accept-messages", tok, map[string]bool{"acceptMessages": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		IsAcceptingMessages bool   `json:"isAcceptingMessages"`
		Token               string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.IsAcceptingMessages)
	require.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec, env = s.do(http.MethodGet, "/api/auth/session", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.Identity
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.False(t, me.IsAcceptingMessages)

	// old token still works and the flag is read from the store
	rec, env = s.do(http.MethodGet, "/api/accept-messages", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isAcceptingMessages":false}`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/api/send-message", "", map[string]string{"username": "carol", "content": "hello there friend"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_accepting", env.Code)

	rec, env = s.do(http.MethodGet, "/api/check-user-status?username=carol", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"carol","isAcceptingMessages":false}`, string(env.Data))
}

func TestCheckUsernameUnique(t *testing.T) {
	s := newTestServer(t)
	s.signedUp("dave")

	rec, env := s.do(http.MethodGet, "/api/check-username-unique?username=dave", "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username_taken", env.Code)
	assert.JSONEq(t, `{"username":"dave","available":false}`, string(env.Data))

	rec, env = s.do(http.MethodGet, "/api/check-username-unique?username=erin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"erin","available":true}`, string(env.Data))

	rec, env = s.do(http.MethodGet, "/api/check-username-unique?username=bad!name", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Code)
}

func TestPagesAreGated(t *testing.T) {
	s := newTestServer(t)
	tok := s.signedUp("frank")

	rec, _ := s.do(http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/sign-in", rec.Header().Get("Location"))

	rec, _ = s.do(http.MethodGet, "/sign-in", tok, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec, _ = s.do(http.MethodGet, "/dashboard", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page":"dashboard"`)

	rec, _ = s.do(http.MethodGet, "/u/frank", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page":"profile"`)

	rec, _ = s.do(http.MethodGet, "/u/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOutClearsCookie(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(http.MethodPost, "/api/sign-out", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Empty(t, rec.Result().Cookies()[0].Value)
}

// internal/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionType = "session"

var ErrInvalidSession = errors.New("invalid session token")

// Identity is what a session asserts about its holder. All fields are
// always populated by SessionManager.Parse.
type Identity struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	IsVerified          bool   `json:"isVerified"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
}

type SessionConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	return &SessionManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

type Claims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Verified  bool   `json:"verified"`
	Accepting bool   `json:"accepting"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// TTL is the lifetime of newly issued sessions.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// Issue signs a session for id that expires after the configured TTL.
func (sm *SessionManager) Issue(id Identity) (token string, expiresAt time.Time, err error) {
	now := sm.now()
	expiresAt = now.Add(sm.ttl)

	claims := Claims{
		UserID:    id.ID,
		Username:  id.Username,
		Email:     id.Email,
		Verified:  id.IsVerified,
		Accepting: id.IsAcceptingMessages,
		Type:      sessionType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sm.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates signature, issuer, expiry and token type.
func (sm *SessionManager) Parse(tokenStr string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sm.issuer),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidSession, err)
	}
	if claims.Type != sessionType || claims.UserID == "" {
		return Identity{}, ErrInvalidSession
	}
	return Identity{
		ID:                  claims.UserID,
		Username:            claims.Username,
		Email:               claims.Email,
		IsVerified:          claims.Verified,
		IsAcceptingMessages: claims.Accepting,
	}, nil
}

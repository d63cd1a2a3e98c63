package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
	"github.com/Nexus-Agni/ShadowSpeak/internal/events"
	"github.com/Nexus-Agni/ShadowSpeak/internal/mail"
	"github.com/Nexus-Agni/ShadowSpeak/internal/metrics"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	repo "github.com/Nexus-Agni/ShadowSpeak/internal/repository"
)

type AccountConfig struct {
	CodeTTL          time.Duration
	CodeLength       int
	DefaultAccepting bool
}

type AccountService struct {
	users  repo.Users
	mailer mail.Sender
	events *events.Dispatcher
	cfg    AccountConfig
	log    *slog.Logger
	now    Clock
}

func NewAccountService(users repo.Users, mailer mail.Sender, ev *events.Dispatcher, cfg AccountConfig, log *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		mailer: mailer,
		events: ev,
		cfg:    cfg,
		log:    log.With("component", "account"),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *AccountService) WithClock(now Clock) *AccountService {
	s.now = now
	return s
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityOf is the session view of u.
func IdentityOf(u models.User) auth.Identity {
	return auth.Identity{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		IsVerified:          u.IsVerified,
		IsAcceptingMessages: u.IsAcceptingMessages,
	}
}

func (s *AccountService) newCode() (string, time.Time, error) {
	code, err := auth.NewVerifyCode(s.cfg.CodeLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	return code, s.now().Add(s.cfg.CodeTTL), nil
}

func (s *AccountService) deliver(ctx context.Context, u models.User, code string) error {
	if err := s.mailer.SendVerification(ctx, u.Email, u.Username, code); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMailDelivery, err)
	}
	return nil
}

// Register creates an unverified account and mails its code. An email whose
// account is still unverified is taken over by the new registration. A mail
// failure leaves the account in place and returns models.ErrMailDelivery.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (u models.User, err error) {
	ctx, span := startSpan(ctx, "AccountService.Register")
	defer func() { finish(s.log, span, "register", err, "username", in.Username) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Collect(
		validate.Username("username", in.Username),
		validate.Email("email", in.Email),
		validate.Password("password", in.Password, validate.PasswordMin),
	); err != nil {
		return models.User{}, err
	}

	holder, err := s.users.GetByUsername(ctx, in.Username)
	switch {
	case err == nil && holder.Email != in.Email:
		return models.User{}, models.ErrUsernameTaken
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	code, expiry, err := s.newCode()
	if err != nil {
		return models.User{}, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing.IsVerified:
		return models.User{}, models.ErrEmailTaken
	case err == nil:
		err = s.users.ReplacePending(ctx, existing.ID, models.PendingRegistration{
			Username:         in.Username,
			PasswordHash:     hash,
			VerifyCode:       code,
			VerifyCodeExpiry: expiry,
		})
		if err != nil {
			return models.User{}, err
		}
		u, err = s.users.GetByID(ctx, existing.ID)
		if err != nil {
			return models.User{}, err
		}
	case errors.Is(err, models.ErrNotFound):
		u = models.User{
			Username:            in.Username,
			Email:               in.Email,
			PasswordHash:        hash,
			VerifyCode:          code,
			VerifyCodeExpiry:    expiry,
			IsAcceptingMessages: s.cfg.DefaultAccepting,
		}
		if err := s.users.Create(ctx, &u); err != nil {
			return models.User{}, err
		}
	default:
		return models.User{}, err
	}

	metrics.UsersRegistered.Inc()
	s.events.Emit(events.Event{Type: events.UserRegistered, UserID: u.ID})
	s.log.Info("user registered", "user_id", u.ID, "username", u.Username)

	if err := s.deliver(ctx, u, code); err != nil {
		return u, err
	}
	return u, nil
}

// Verify checks code against the pending code of username. Verifying an
// already verified account succeeds without changes.
func (s *AccountService) Verify(ctx context.Context, username, code string) (err error) {
	ctx, span := startSpan(ctx, "AccountService.Verify")
	defer func() { finish(s.log, span, "verify", err, "username", username) }()

	if decoded, uerr := url.PathUnescape(username); uerr == nil {
		username = decoded
	}
	username = strings.TrimSpace(username)
	code = strings.TrimSpace(code)
	if err := validate.Collect(
		validate.Required("username", username),
		validate.Required("code", code),
	); err != nil {
		return err
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.Verifications.WithLabelValues("not_found").Inc()
		}
		return err
	}
	if u.IsVerified {
		return nil
	}
	if u.CodeExpired(s.now()) {
		metrics.Verifications.WithLabelValues("expired").Inc()
		return models.ErrCodeExpired
	}
	if code != u.VerifyCode {
		metrics.Verifications.WithLabelValues("invalid").Inc()
		return models.ErrInvalidCode
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return err
	}

	metrics.Verifications.WithLabelValues("ok").Inc()
	s.events.Emit(events.Event{Type: events.UserVerified, UserID: u.ID})
	s.log.Info("user verified", "user_id", u.ID)
	return nil
}

// ResendCode replaces the pending code; the previous one stops working at once.
func (s *AccountService) ResendCode(ctx context.Context, username string) (err error) {
	ctx, span := startSpan(ctx, "AccountService.ResendCode")
	defer func() { finish(s.log, span, "resend code", err, "username", username) }()

	username = strings.TrimSpace(username)
	if err := validate.Collect(validate.Required("username", username)); err != nil {
		return err
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return models.ErrAlreadyVerified
	}

	code, expiry, err := s.newCode()
	if err != nil {
		return err
	}
	if err := s.users.SetVerifyCode(ctx, u.ID, code, expiry); err != nil {
		// verified between the read and the write
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrAlreadyVerified
		}
		return err
	}
	return s.deliver(ctx, u, code)
}

// Authenticate resolves identifier as username or email. Unverified accounts
// are rejected before anything about the password is checked, its length included.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (id auth.Identity, err error) {
	ctx, span := startSpan(ctx, "AccountService.Authenticate")
	defer func() { finish(s.log, span, "authenticate", err) }()

	identifier = strings.TrimSpace(identifier)
	if err := validate.Collect(validate.Required("identifier", identifier)); err != nil {
		return auth.Identity{}, err
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return auth.Identity{}, models.ErrNoSuchUser
		}
		return auth.Identity{}, err
	}
	if !u.IsVerified {
		return auth.Identity{}, models.ErrNotVerified
	}
	if err := validate.Collect(validate.Password("password", password, validate.SignInPassMin)); err != nil {
		return auth.Identity{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return auth.Identity{}, models.ErrBadCredentials
	}
	return IdentityOf(u), nil
}

// CheckUsername reports whether username is well formed and held by nobody.
func (s *AccountService) CheckUsername(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := validate.Collect(validate.Username("username", username)); err != nil {
		return false, err
	}
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, models.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// RecipientStatus returns whether a verified user is accepting messages.
// Unverified accounts are not visible.
func (s *AccountService) RecipientStatus(ctx context.Context, username string) (bool, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	if !u.IsVerified {
		return false, models.ErrNotFound
	}
	return u.IsAcceptingMessages, nil
}

func (s *AccountService) AcceptingMessages(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAcceptingMessages, nil
}

func (s *AccountService) SetAcceptingMessages(ctx context.Context, userID string, accepting bool) (u models.User, err error) {
	ctx, span := startSpan(ctx, "AccountService.SetAcceptingMessages")
	defer func() { finish(s.log, span, "set accepting", err, "user_id", userID) }()

	u, err = s.users.SetAcceptingMessages(ctx, userID, accepting)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("accepting messages updated", "user_id", userID, "accepting", accepting)
	return u, nil
}

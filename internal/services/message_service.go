package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/events"
	"github.com/Nexus-Agni/ShadowSpeak/internal/metrics"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	repo "github.com/Nexus-Agni/ShadowSpeak/internal/repository"
)

type MessageService struct {
	users  repo.Users
	events *events.Dispatcher
	log    *slog.Logger
	now    Clock
}

func NewMessageService(users repo.Users, ev *events.Dispatcher, log *slog.Logger) *MessageService {
	return &MessageService{users: users, events: ev, log: log.With("component", "messages"), now: time.Now}
}

func (s *MessageService) WithClock(now Clock) *MessageService {
	s.now = now
	return s
}

// Send stores an anonymous message for username. Nothing about the sender is
// recorded.
func (s *MessageService) Send(ctx context.Context, username, content string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService.Send")
	defer func() {
		if err != nil {
			metrics.Messages.WithLabelValues("rejected").Inc()
		}
		finish(s.log, span, "send message", err, "recipient", username)
	}()

	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Message{}, models.ErrRecipientNotFound
		}
		return models.Message{}, err
	}
	if !u.IsAcceptingMessages {
		return models.Message{}, models.ErrNotAccepting
	}
	if err := validate.Collect(validate.Content("content", content)); err != nil {
		return models.Message{}, err
	}

	msg = models.Message{Content: content, CreatedAt: s.now().UTC()}
	if err := s.users.AppendMessage(ctx, u.ID, &msg); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Message{}, models.ErrRecipientNotFound
		}
		return models.Message{}, err
	}

	metrics.Messages.WithLabelValues("accepted").Inc()
	s.events.Emit(events.Event{Type: events.MessageReceived, UserID: u.ID, MessageID: msg.ID})
	return msg, nil
}

// List returns the owner's messages, newest first. Never nil.
func (s *MessageService) List(ctx context.Context, ownerID string) (msgs []models.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService.List")
	defer func() { finish(s.log, span, "list messages", err, "user_id", ownerID) }()

	u, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	msgs = append([]models.Message{}, u.Messages...)
	models.SortNewestFirst(msgs)
	return msgs, nil
}

func (s *MessageService) Delete(ctx context.Context, ownerID, messageID string) (err error) {
	ctx, span := startSpan(ctx, "MessageService.Delete")
	defer func() { finish(s.log, span, "delete message", err, "user_id", ownerID, "message_id", messageID) }()

	if strings.TrimSpace(messageID) == "" {
		return models.ErrNotFound
	}
	if err := s.users.DeleteMessage(ctx, ownerID, messageID); err != nil {
		return err
	}
	metrics.Messages.WithLabelValues("deleted").Inc()
	s.events.Emit(events.Event{Type: events.MessageDeleted, UserID: ownerID, MessageID: messageID})
	return nil
}

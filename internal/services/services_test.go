package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nexus-Agni/ShadowSpeak/internal/events"
	"github.com/Nexus-Agni/ShadowSpeak/internal/logger"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository/memory"
	"github.com/Nexus-Agni/ShadowSpeak/internal/worker"
)

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string // email -> last code
	sent  int
	err   error
}

func newFakeMailer() *fakeMailer { return &fakeMailer{codes: map[string]string{}} }

func (m *fakeMailer) SendVerification(_ context.Context, to, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[to] = code
	m.sent++
	return nil
}

func (m *fakeMailer) lastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	users    repository.Users
	mailer   *fakeMailer
	clock    *fakeClock
	pub      *recordingPublisher
	pool     *worker.Pool
	accounts *AccountService
	messages *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  memory.NewUsers(),
		mailer: newFakeMailer(),
		clock:  &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		pub:    &recordingPublisher{},
		pool:   worker.NewPool(1),
	}
	log := logger.Discard()
	ev := events.NewDispatcher(f.pub, f.pool, log)
	f.accounts = NewAccountService(f.users, f.mailer, ev, AccountConfig{
		CodeTTL:          10 * time.Minute,
		CodeLength:       6,
		DefaultAccepting: true,
	}, log).WithClock(f.clock.Now)
	f.messages = NewMessageService(f.users, ev, log).WithClock(f.clock.Now)
	t.Cleanup(f.pool.Stop)
	return f
}

// registerVerified creates a verified account and returns its id.
func (f *fixture) registerVerified(t *testing.T, username, email string) string {
	t.Helper()
	ctx := context.Background()
	u, err := f.accounts.Register(ctx, RegisterInput{Username: username, Email: email, Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, f.accounts.Verify(ctx, username, f.mailer.lastCode(email)))
	return u.ID
}

var errSMTP = errors.New("smtp unavailable")

// Package memory keeps users in process memory. It backs the "memory" store
// driver and the service and handler tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository"
)

type usersRepo struct {
	mu   sync.RWMutex
	byID map[string]*models.User
	now  func() time.Time
}

var _ repository.Users = (*usersRepo)(nil)

func NewUsers() repository.Users {
	return &usersRepo{byID: map[string]*models.User{}, now: time.Now}
}

// clone copies u so callers never share the stored message slice.
func clone(u *models.User) models.User {
	out := *u
	out.Messages = slices.Clone(u.Messages)
	if out.Messages == nil {
		out.Messages = []models.Message{}
	}
	return out
}

func (r *usersRepo) findLocked(match func(*models.User) bool) (*models.User, bool) {
	for _, u := range r.byID {
		if match(u) {
			return u, true
		}
	}
	return nil, false
}

func (r *usersRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.findLocked(func(x *models.User) bool { return x.Username == u.Username }); ok {
		return models.ErrUsernameTaken
	}
	if _, ok := r.findLocked(func(x *models.User) bool { return x.Email == u.Email }); ok {
		return models.ErrEmailTaken
	}

	now := r.now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Messages == nil {
		u.Messages = []models.Message{}
	}
	stored := clone(u)
	r.byID[u.ID] = &stored
	return nil
}

func (r *usersRepo) get(match func(*models.User) bool) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.findLocked(match)
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return clone(u), nil
}

func (r *usersRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return clone(u), nil
}

func (r *usersRepo) GetByUsername(_ context.Context, username string) (models.User, error) {
	return r.get(func(u *models.User) bool { return u.Username == username })
}

func (r *usersRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	return r.get(func(u *models.User) bool { return u.Email == email })
}

func (r *usersRepo) GetByIdentifier(_ context.Context, identifier string) (models.User, error) {
	return r.get(func(u *models.User) bool { return u.Username == identifier || u.Email == identifier })
}

// update runs fn on the stored user under the write lock.
func (r *usersRepo) update(id string, fn func(u *models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *usersRepo) ReplacePending(_ context.Context, id string, p models.PendingRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.IsVerified {
		return models.ErrNotFound
	}
	if other, taken := r.findLocked(func(x *models.User) bool { return x.Username == p.Username }); taken && other.ID != id {
		return models.ErrUsernameTaken
	}
	u.Username = p.Username
	u.PasswordHash = p.PasswordHash
	u.VerifyCode = p.VerifyCode
	u.VerifyCodeExpiry = p.VerifyCodeExpiry
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *usersRepo) SetVerifyCode(_ context.Context, id, code string, expiry time.Time) error {
	return r.update(id, func(u *models.User) error {
		if u.IsVerified {
			return models.ErrNotFound
		}
		u.VerifyCode = code
		u.VerifyCodeExpiry = expiry
		return nil
	})
}

func (r *usersRepo) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) error {
		u.IsVerified = true
		u.VerifyCode = ""
		return nil
	})
}

func (r *usersRepo) SetAcceptingMessages(_ context.Context, id string, accepting bool) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	u.IsAcceptingMessages = accepting
	u.UpdatedAt = r.now().UTC()
	return clone(u), nil
}

func (r *usersRepo) AppendMessage(_ context.Context, userID string, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return r.update(userID, func(u *models.User) error {
		u.Messages = append(u.Messages, *msg)
		return nil
	})
}

func (r *usersRepo) DeleteMessage(_ context.Context, userID, messageID string) error {
	return r.update(userID, func(u *models.User) error {
		i := slices.IndexFunc(u.Messages, func(m models.Message) bool { return m.ID == messageID })
		if i < 0 {
			return models.ErrNotFound
		}
		u.Messages = slices.Delete(u.Messages, i, i+1)
		return nil
	})
}

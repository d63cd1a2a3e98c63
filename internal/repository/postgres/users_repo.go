// internal/repository/postgres/users_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository"
)

const userColumns = `id::text AS id, username, email, password_hash, verify_code, verify_code_expiry,
       is_verified, is_accepting_messages, messages, created_at, updated_at`

const uniqueViolation = "23505"

type usersRepo struct{ db DB }

func NewUsers(db DB) repository.Users {
	return &usersRepo{db: db}
}

// userRow mirrors the users table; messages stays raw jsonb until decoded.
type userRow struct {
	ID                  string    `db:"id"`
	Username            string    `db:"username"`
	Email               string    `db:"email"`
	PasswordHash        string    `db:"password_hash"`
	VerifyCode          string    `db:"verify_code"`
	VerifyCodeExpiry    time.Time `db:"verify_code_expiry"`
	IsVerified          bool      `db:"is_verified"`
	IsAcceptingMessages bool      `db:"is_accepting_messages"`
	Messages            []byte    `db:"messages"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (row userRow) toModel() (models.User, error) {
	u := models.User{
		ID:                  row.ID,
		Username:            row.Username,
		Email:               row.Email,
		PasswordHash:        row.PasswordHash,
		VerifyCode:          row.VerifyCode,
		VerifyCodeExpiry:    row.VerifyCodeExpiry,
		IsVerified:          row.IsVerified,
		IsAcceptingMessages: row.IsAcceptingMessages,
		Messages:            []models.Message{},
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if len(row.Messages) > 0 {
		if err := json.Unmarshal(row.Messages, &u.Messages); err != nil {
			return models.User{}, fmt.Errorf("decode messages: %w", err)
		}
	}
	return u, nil
}

// mapErr turns driver errors into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return models.ErrUsernameTaken
		case "users_email_key":
			return models.ErrEmailTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *usersRepo) Create(ctx context.Context, u *models.User) error {
	id := uuid.NewString()
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, verify_code, verify_code_expiry, is_verified, is_accepting_messages)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		id, u.Username, u.Email, u.PasswordHash, u.VerifyCode, u.VerifyCodeExpiry, u.IsVerified, u.IsAcceptingMessages,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	u.ID = id
	if u.Messages == nil {
		u.Messages = []models.Message{}
	}
	return nil
}

func (r *usersRepo) getOne(ctx context.Context, where string, arg any) (models.User, error) {
	var row userRow
	if err := pgxscan.Get(ctx, r.db, &row, `SELECT `+userColumns+` FROM users WHERE `+where, arg); err != nil {
		return models.User{}, mapErr(err)
	}
	return row.toModel()
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.User{}, models.ErrNotFound
	}
	return r.getOne(ctx, `id = $1`, id)
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *usersRepo) GetByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	return r.getOne(ctx, `username = $1 OR email = $1 LIMIT 1`, identifier)
}

// execOne runs a single-row update and reports ErrNotFound when nothing matched.
func (r *usersRepo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *usersRepo) ReplacePending(ctx context.Context, id string, p models.PendingRegistration) error {
	return r.execOne(ctx,
		`UPDATE users
		    SET username = $2, password_hash = $3, verify_code = $4, verify_code_expiry = $5, updated_at = now()
		  WHERE id = $1 AND NOT is_verified`,
		id, p.Username, p.PasswordHash, p.VerifyCode, p.VerifyCodeExpiry,
	)
}

func (r *usersRepo) SetVerifyCode(ctx context.Context, id, code string, expiry time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET verify_code = $2, verify_code_expiry = $3, updated_at = now()
		  WHERE id = $1 AND NOT is_verified`,
		id, code, expiry,
	)
}

func (r *usersRepo) MarkVerified(ctx context.Context, id string) error {
	return r.execOne(ctx,
		`UPDATE users SET is_verified = TRUE, verify_code = '', updated_at = now() WHERE id = $1`,
		id,
	)
}

func (r *usersRepo) SetAcceptingMessages(ctx context.Context, id string, accepting bool) (models.User, error) {
	var row userRow
	err := pgxscan.Get(ctx, r.db, &row,
		`UPDATE users SET is_accepting_messages = $2, updated_at = now()
		  WHERE id = $1
		  RETURNING `+userColumns,
		id, accepting,
	)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return row.toModel()
}

func (r *usersRepo) AppendMessage(ctx context.Context, userID string, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return r.execOne(ctx,
		`UPDATE users SET messages = messages || jsonb_build_array($2::jsonb), updated_at = now()
		  WHERE id = $1`,
		userID, string(doc),
	)
}

func (r *usersRepo) DeleteMessage(ctx context.Context, userID, messageID string) error {
	return r.execOne(ctx,
		`UPDATE users
		    SET messages = COALESCE(
		          (SELECT jsonb_agg(m) FROM jsonb_array_elements(messages) AS m WHERE m->>'id' <> $2),
		          '[]'::jsonb),
		        updated_at = now()
		  WHERE id = $1
		    AND messages @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		userID, messageID,
	)
}

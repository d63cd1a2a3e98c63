package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/events"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
)

func TestRegister_CreatesUnverifiedAccountAndMailsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.Register(ctx, RegisterInput{Username: " alice ", Email: "alice@x.io", Password: "password123"})
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.False(t, u.IsVerified)
	assert.True(t, u.IsAcceptingMessages)

	code := f.mailer.lastCode("alice@x.io")
	assert.Len(t, code, 6)

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, code, stored.VerifyCode)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), stored.VerifyCodeExpiry)
	assert.NotEqual(t, "password123", stored.PasswordHash)
}

func TestRegister_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Register(context.Background(), RegisterInput{Username: "a!", Email: "nope", Password: "short"})
	errs, ok := validate.As(err)
	require.True(t, ok)

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.Equal(t, map[string]bool{"username": true, "email": true, "password": true}, fields)
	assert.Equal(t, 0, f.mailer.sent)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "alice", "alice@x.io")

	_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.io", Password: "password123"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = f.accounts.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@x.io", Password: "password123"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestRegister_ReplacesPendingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.accounts.Register(ctx, RegisterInput{Username: "bob", Email: "bob@x.io", Password: "password123"})
	require.NoError(t, err)
	oldCode := f.mailer.lastCode("bob@x.io")

	f.clock.Advance(20 * time.Minute)
	second, err := f.accounts.Register(ctx, RegisterInput{Username: "bobby", Email: "bob@x.io", Password: "newpassword"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "bobby", second.Username)

	newCode := f.mailer.lastCode("bob@x.io")
	if oldCode != newCode {
		assert.ErrorIs(t, f.accounts.Verify(ctx, "bobby", oldCode), models.ErrInvalidCode)
	}
	require.NoError(t, f.accounts.Verify(ctx, "bobby", newCode))

	_, err = f.users.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.accounts.Authenticate(ctx, "bobby", "newpassword")
	assert.NoError(t, err)
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errSMTP
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, RegisterInput{Username: "carol", Email: "carol@x.io", Password: "password123"})
	require.ErrorIs(t, err, models.ErrMailDelivery)

	u, err := f.users.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, u.IsVerified)
}

func TestVerify_WithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.io", Password: "password123"})
	require.NoError(t, err)
	code := f.mailer.lastCode("alice@x.io")

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.accounts.Verify(ctx, "alice", code))

	u, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.Empty(t, u.VerifyCode)

	// already verified: idempotent success
	assert.NoError(t, f.accounts.Verify(ctx, "alice", "000000"))
}

func TestVerify_Expired(t *testing.T) {
	for _, after := range []time.Duration{10 * time.Minute, 11 * time.Minute} {
		t.Run(after.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.io", Password: "password123"})
			require.NoError(t, err)
			code := f.mailer.lastCode("alice@x.io")

			f.clock.Advance(after)
			assert.ErrorIs(t, f.accounts.Verify(ctx, "alice", code), models.ErrCodeExpired)
			// expiry wins over a wrong code
			assert.ErrorIs(t, f.accounts.Verify(ctx, "alice", "not-it"), models.ErrCodeExpired)

			u, err := f.users.GetByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.False(t, u.IsVerified)
		})
	}
}

func TestVerify_InvalidCodeAndUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.io", Password: "password123"})
	require.NoError(t, err)
	code := f.mailer.lastCode("alice@x.io")

	wrong := "1" + code[1:]
	if wrong == code {
		wrong = "2" + code[1:]
	}
	assert.ErrorIs(t, f.accounts.Verify(ctx, "alice", wrong), models.ErrInvalidCode)
	assert.ErrorIs(t, f.accounts.Verify(ctx, "nobody", code), models.ErrNotFound)

	// escaped usernames from the URL are decoded
	assert.NoError(t, f.accounts.Verify(ctx, "al%69ce", " "+code+" "))
}

func TestResendCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.io", Password: "password123"})
	require.NoError(t, err)
	oldCode := f.mailer.lastCode("alice@x.io")

	f.clock.Advance(15 * time.Minute)
	require.NoError(t, f.accounts.ResendCode(ctx, "alice"))
	newCode := f.mailer.lastCode("alice@x.io")
	assert.Equal(t, 2, f.mailer.sent)

	if oldCode != newCode {
		assert.ErrorIs(t, f.accounts.Verify(ctx, "alice", oldCode), models.ErrInvalidCode)
	}
	require.NoError(t, f.accounts.Verify(ctx, "alice", newCode))

	assert.ErrorIs(t, f.accounts.ResendCode(ctx, "alice"), models.ErrAlreadyVerified)
	assert.ErrorIs(t, f.accounts.ResendCode(ctx, "ghost"), models.ErrNotFound)
}

func TestResendCode_OldCodeDiesInsideItsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.io", Password: "password123"})
	require.NoError(t, err)
	oldCode := f.mailer.lastCode("alice@x.io")

	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.accounts.ResendCode(ctx, "alice"))
	newCode := f.mailer.lastCode("alice@x.io")

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), stored.VerifyCodeExpiry)

	// +3m: the first code's own expiry (+10m) has not passed yet
	f.clock.Advance(time.Minute)
	if oldCode == newCode {
		// both draws landed on the same digits; force a distinct code
		require.NoError(t, f.users.SetVerifyCode(ctx, stored.ID, "x"+newCode[1:], stored.VerifyCodeExpiry))
		newCode = "x" + newCode[1:]
	}
	assert.ErrorIs(t, f.accounts.Verify(ctx, "alice", oldCode), models.ErrInvalidCode)
	require.NoError(t, f.accounts.Verify(ctx, "alice", newCode))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "alice", "alice@x.io")
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "pending", Email: "pending@x.io", Password: "password123"})
	require.NoError(t, err)

	id, err := f.accounts.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.True(t, id.IsVerified)

	id, err = f.accounts.Authenticate(ctx, "alice@x.io", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.io", id.Email)

	_, err = f.accounts.Authenticate(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, models.ErrNoSuchUser)

	_, err = f.accounts.Authenticate(ctx, "alice", "wrongpass")
	assert.ErrorIs(t, err, models.ErrBadCredentials)

	// not verified is reported before the password is looked at, whatever its shape
	for _, pw := range []string{"", "abc", "wrongpass", "password123"} {
		_, err = f.accounts.Authenticate(ctx, "pending", pw)
		assert.ErrorIs(t, err, models.ErrNotVerified, "password %q", pw)
	}

	// the sign-in length rule applies once the account is known to be verified
	_, err = f.accounts.Authenticate(ctx, "alice", "abc")
	_, isValidation := validate.As(err)
	assert.True(t, isValidation)

	_, err = f.accounts.Authenticate(ctx, "", "x")
	_, isValidation = validate.As(err)
	assert.True(t, isValidation)
}

func TestCheckUsernameAndRecipientStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "alice", "alice@x.io")
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "pending", Email: "pending@x.io", Password: "password123"})
	require.NoError(t, err)

	ok, err := f.accounts.CheckUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.accounts.CheckUsername(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.accounts.CheckUsername(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.accounts.CheckUsername(ctx, "bad name!")
	_, isValidation := validate.As(err)
	assert.True(t, isValidation)

	accepting, err := f.accounts.RecipientStatus(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, accepting)

	_, err = f.accounts.RecipientStatus(ctx, "pending")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAcceptingMessagesToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.registerVerified(t, "alice", "alice@x.io")

	u, err := f.accounts.SetAcceptingMessages(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, u.IsAcceptingMessages)

	accepting, err := f.accounts.AcceptingMessages(ctx, id)
	require.NoError(t, err)
	assert.False(t, accepting)

	_, err = f.accounts.SetAcceptingMessages(ctx, "missing", true)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.accounts.AcceptingMessages(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountEventsArePublished(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "alice", "alice@x.io")
	f.pool.Stop()

	assert.Equal(t, []string{events.UserRegistered, events.UserVerified}, f.pub.types())
}

package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
)

type authFixture struct {
	svc      *AuthService
	users    *memUsers
	store    *CredentialStore
	codec    *ResetTokenCodec
	clock    *fakeClock
	notifier *recordingNotifier
}

func newAuthFixture(t *testing.T, used UsedTokenStore) *authFixture {
	t.Helper()
	users := newMemUsers()
	store := NewCredentialStore(users, BcryptHasher{Cost: bcrypt.MinCost})
	codec, clock := newTestCodec()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &authFixture{
		svc:      NewAuthService(store, codec, notifier, used, logger),
		users:    users,
		store:    store,
		codec:    codec,
		clock:    clock,
		notifier: notifier,
	}
}

func aliceForm() models.RegistrationForm {
	return models.RegistrationForm{
		FirstName: "Alice",
		LastName:  "Liddell",
		Username:  "alice",
		Email:     "alice@x.com",
		Password:  "correct horse",
		Password2: "correct horse",
	}
}

func (f *authFixture) registerAlice(t *testing.T) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), aliceForm())
	require.NoError(t, err)
	return u
}

func TestRegister_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	u := f.registerAlice(t)

	assert.NotZero(t, u.ID)
	assert.Equal(t, "Alice Liddell", u.FullName())
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
}

func TestRegister_ValidationBeforeUniqueness(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerAlice(t)

	form := aliceForm()
	form.Password2 = "different"
	_, err := f.svc.Register(context.Background(), form)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Field must be equal to password.", verr.Fields["password2"])
	_, hasUsername := verr.Fields["username"]
	assert.False(t, hasUsername, "uniqueness must not be checked while fields are invalid")
}

func TestRegister_RequiredFields(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.Register(context.Background(), models.RegistrationForm{Email: "not-an-email"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"first_name", "last_name", "username", "password", "password2"} {
		assert.Equal(t, msgRequired, verr.Fields[field], field)
	}
	assert.Equal(t, msgInvalidEmail, verr.Fields["email"])
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerAlice(t)

	_, err := f.svc.Register(context.Background(), aliceForm())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgUsernameTaken, verr.Fields["username"])
	assert.Equal(t, msgEmailTaken, verr.Fields["email"])
}

func TestRegister_DuplicateRaceMapsToFieldError(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.raceOnCreate = "email"

	_, err := f.svc.Register(context.Background(), aliceForm())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgEmailTaken, verr.Fields["email"])
}

func TestRegister_StorageFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.failWith = errStorageDown

	_, err := f.svc.Register(context.Background(), aliceForm())
	assert.ErrorIs(t, err, errStorageDown)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	ctx := context.Background()

	u, err := f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "bob", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_EmptyFields(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.Authenticate(context.Background(), models.LoginForm{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestRequestPasswordReset_KnownEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)

	err := f.svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequestForm{Email: "alice@x.com"})
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, alice.ID, f.notifier.user.ID)

	id, ok := f.codec.Verify(f.notifier.token)
	assert.True(t, ok)
	assert.Equal(t, alice.ID, id)
}

func TestRequestPasswordReset_UnknownEmailLooksTheSame(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerAlice(t)

	err := f.svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequestForm{Email: "nobody@x.com"})
	assert.NoError(t, err)
	assert.Equal(t, 0, f.notifier.calls)
}

func TestRequestPasswordReset_SendFailureSwallowed(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerAlice(t)
	f.notifier.err = errors.New("smtp down")

	err := f.svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequestForm{Email: "alice@x.com"})
	assert.NoError(t, err)
	assert.Equal(t, 1, f.notifier.calls)
}

func TestRequestPasswordReset_BadEmailFormat(t *testing.T) {
	f := newAuthFixture(t, nil)
	err := f.svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequestForm{Email: "nope"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgInvalidEmail, verr.Fields["email"])
}

func TestResetPassword_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	ctx := context.Background()

	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)

	u, err := f.svc.UserForResetToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	require.NoError(t, f.svc.ResetPassword(ctx, tok, models.ResetPasswordForm{Password: "battery staple", Password2: "battery staple"}))

	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "battery staple"})
	assert.NoError(t, err)
}

func TestResetPassword_MismatchedPasswords(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), tok, models.ResetPasswordForm{Password: "a", Password2: "b"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password2")
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)

	f.clock.Advance(DefaultResetTokenTTL + time.Second)

	_, err = f.svc.UserForResetToken(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	err = f.svc.ResetPassword(context.Background(), tok, models.ResetPasswordForm{Password: "x", Password2: "x"})
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestResetPassword_DeletedUser(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)
	f.users.delete(alice.ID)

	_, err = f.svc.UserForResetToken(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestResetPassword_ReusableByDefault(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)

	form := models.ResetPasswordForm{Password: "one", Password2: "one"}
	require.NoError(t, f.svc.ResetPassword(context.Background(), tok, form))
	assert.NoError(t, f.svc.ResetPassword(context.Background(), tok, form))
}

func TestResetPassword_SingleUse(t *testing.T) {
	used := newMemUsedTokens()
	f := newAuthFixture(t, used)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)
	ctx := context.Background()

	form := models.ResetPasswordForm{Password: "one", Password2: "one"}
	require.NoError(t, f.svc.ResetPassword(ctx, tok, form))

	_, err = f.svc.UserForResetToken(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, tok, form), ErrTokenInvalidOrExpired)

	claims, err := f.codec.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, claims.ExpiresAt.Time, used.used[claims.ID])
}

func TestResetPassword_SingleUseSurvivesFailedUpdate(t *testing.T) {
	used := newMemUsedTokens()
	f := newAuthFixture(t, used)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)
	ctx := context.Background()
	form := models.ResetPasswordForm{Password: "one", Password2: "one"}

	f.users.failUpdate = errStorageDown
	err = f.svc.ResetPassword(ctx, tok, form)
	require.ErrorIs(t, err, errStorageDown)
	assert.Empty(t, used.used)

	f.users.failUpdate = nil
	_, err = f.svc.UserForResetToken(ctx, tok)
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, tok, form))
	assert.Len(t, used.used, 1)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newAuthFixture(t, nil)
	form := aliceForm()
	form.Password = strings.Repeat("a", 73)
	form.Password2 = form.Password

	_, err := f.svc.Register(context.Background(), form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Field cannot be longer than 72 characters.", verr.Fields["password"])

	_, err = f.store.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegister_MultiBytePasswordOverBcryptLimit(t *testing.T) {
	f := newAuthFixture(t, nil)
	form := aliceForm()
	form.Password = strings.Repeat("é", 40)
	form.Password2 = form.Password

	_, err := f.svc.Register(context.Background(), form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgPasswordLong, verr.Fields["password"])
}

func TestResetPassword_PasswordTooLong(t *testing.T) {
	f := newAuthFixture(t, nil)
	alice := f.registerAlice(t)
	tok, err := f.codec.Issue(alice.ID)
	require.NoError(t, err)
	ctx := context.Background()

	long := strings.Repeat("b", 80)
	err = f.svc.ResetPassword(ctx, tok, models.ResetPasswordForm{Password: long, Password2: long})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")

	multi := strings.Repeat("ü", 50)
	err = f.svc.ResetPassword(ctx, tok, models.ResetPasswordForm{Password: multi, Password2: multi})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgPasswordLong, verr.Fields["password"])

	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "correct horse"})
	assert.NoError(t, err)
}

func TestFieldMessage_Max(t *testing.T) {
	v := NewFormValidator()
	form := aliceForm()
	form.FirstName = strings.Repeat("x", 31)

	err := validateForm(v, form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Field cannot be longer than 30 characters.", verr.Fields["first_name"])
}

func TestEndToEnd_AliceRegistersAndLogsIn(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, aliceForm())
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "wrong horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	u, err := f.svc.Authenticate(ctx, models.LoginForm{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", u.Email)
}

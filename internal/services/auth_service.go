package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
	"github.com/njugunanduati/medicine-dose-tracker/internal/repository"
)

// ResetNotifier delivers a reset token to the user it was issued for.
type ResetNotifier interface {
	SendResetEmail(ctx context.Context, user *models.User, token string) error
}

// UsedTokenStore remembers consumed reset tokens until they expire.
// Consume reports false when the token id was already consumed.
type UsedTokenStore interface {
	Consume(ctx context.Context, tokenID string, until time.Time) (bool, error)
	IsConsumed(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	store    *CredentialStore
	codec    *ResetTokenCodec
	notifier ResetNotifier
	used     UsedTokenStore
	v        *validator.Validate
	logger   *slog.Logger
}

// NewAuthService wires the auth flows. used may be nil, in which case a
// reset token stays valid until it expires.
func NewAuthService(store *CredentialStore, codec *ResetTokenCodec, notifier ResetNotifier, used UsedTokenStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:    store,
		codec:    codec,
		notifier: notifier,
		used:     used,
		v:        NewFormValidator(),
		logger:   logger,
	}
}

// Authenticate checks a login form. Unknown usernames and wrong passwords
// both return ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, form models.LoginForm) (*models.User, error) {
	if err := validateForm(s.v, form); err != nil {
		return nil, err
	}

	u, err := s.store.FindByUsername(ctx, form.Username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.store.VerifyPassword(u, form.Password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Register validates the form, then checks uniqueness, then creates the
// account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, form models.RegistrationForm) (*models.User, error) {
	if err := validateForm(s.v, form); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if _, err := s.store.FindByUsername(ctx, form.Username); err == nil {
		verr.Add("username", msgUsernameTaken)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.store.FindByEmail(ctx, form.Email); err == nil {
		verr.Add("email", msgEmailTaken)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	u, err := s.store.Create(ctx, NewUser{
		Username:  form.Username,
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Password:  form.Password,
	})
	if err != nil {
		var dup *repository.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, duplicateFieldError(dup.Field)
		}
		if verr := passwordTooLong(err); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// RequestPasswordReset sends a reset email when the address belongs to a
// user. Apart from a malformed address it always returns nil, so callers
// cannot tell whether the address is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, form models.ResetPasswordRequestForm) error {
	if err := validateForm(s.v, form); err != nil {
		return err
	}

	u, err := s.store.FindByEmail(ctx, form.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "reset request lookup failed", "error", err)
		}
		return nil
	}

	token, err := s.codec.Issue(u.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "issue reset token", "user_id", u.ID, "error", err)
		return nil
	}
	if err := s.notifier.SendResetEmail(ctx, u, token); err != nil {
		s.logger.WarnContext(ctx, "reset email not delivered", "user_id", u.ID, "error", err)
	}
	return nil
}

// UserForResetToken resolves a reset token to its user, or returns
// ErrTokenInvalidOrExpired.
func (s *AuthService) UserForResetToken(ctx context.Context, token string) (*models.User, error) {
	u, _, err := s.resolveResetToken(ctx, token)
	return u, err
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, form models.ResetPasswordForm) error {
	u, claims, err := s.resolveResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := validateForm(s.v, form); err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, u.ID, form.Password); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalidOrExpired
		}
		if verr := passwordTooLong(err); verr != nil {
			return verr
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", u.ID)

	// The token is spent only once the new password is stored.
	if s.used != nil {
		fresh, err := s.used.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			s.logger.ErrorContext(ctx, "consume reset token", "user_id", u.ID, "error", err)
		} else if !fresh {
			s.logger.WarnContext(ctx, "reset token used concurrently", "user_id", u.ID)
		}
	}
	return nil
}

func (s *AuthService) resolveResetToken(ctx context.Context, token string) (*models.User, *ResetClaims, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		s.logger.DebugContext(ctx, "reset token rejected", "reason", err.Error())
		return nil, nil, ErrTokenInvalidOrExpired
	}

	if s.used != nil && claims.ID != "" {
		consumed, err := s.used.IsConsumed(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check reset token: %w", err)
		}
		if consumed {
			s.logger.DebugContext(ctx, "reset token rejected", "reason", "already used")
			return nil, nil, ErrTokenInvalidOrExpired
		}
	}

	u, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.DebugContext(ctx, "reset token rejected", "reason", "unknown user")
			return nil, nil, ErrTokenInvalidOrExpired
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	return u, claims, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
	"github.com/njugunanduati/medicine-dose-tracker/internal/repository"
)

type NewUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// CredentialStore owns user lookup and password persistence. Plaintext
// passwords are hashed here and nowhere else.
type CredentialStore struct {
	users  repository.UserRepository
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(users repository.UserRepository, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{users: users, hasher: hasher}
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return notFound(s.users.GetByUsername(ctx, username))
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return notFound(s.users.GetByEmail(ctx, email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return notFound(s.users.GetByID(ctx, id))
}

// Create hashes the password and inserts the user. Unique violations come
// back as *repository.DuplicateKeyError.
func (s *CredentialStore) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	hash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Username:     nu.Username,
		Email:        nu.Email,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, userID int64, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// fallbackDummyHash is a well-formed cost 10 bcrypt hash that matches no
// real password. It stands in when the configured hasher fails.
const fallbackDummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZAhiKQwH1y0G.hVv9t1x6W"

// VerifyPassword reports whether plaintext matches u's hash. A nil user is
// checked against a throwaway hash so unknown usernames cost the same.
func (s *CredentialStore) VerifyPassword(u *models.User, plaintext string) bool {
	if u == nil {
		s.dummyOnce.Do(func() {
			hash, err := s.hasher.Hash("not-a-real-password")
			if err != nil {
				slog.Error("dummy password hash failed, using fallback", "error", err)
				hash = fallbackDummyHash
			}
			s.dummyHash = hash
		})
		s.hasher.Verify(plaintext, s.dummyHash)
		return false
	}
	return s.hasher.Verify(plaintext, u.PasswordHash)
}

func notFound(u *models.User, err error) (*models.User, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

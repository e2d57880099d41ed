package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
	"github.com/njugunanduati/medicine-dose-tracker/internal/repository"
)

// memUsers is an in-memory repository.UserRepository.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User

	// raceOnCreate simulates a concurrent insert winning the unique index.
	raceOnCreate string
	failWith     error
	failUpdate   error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*models.User)}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.raceOnCreate != "" {
		return &repository.DuplicateKeyError{Field: m.raceOnCreate, Constraint: "ix_users_" + m.raceOnCreate}
	}
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return &repository.DuplicateKeyError{Field: "username"}
		}
		if existing.Email == u.Email {
			return &repository.DuplicateKeyError{Field: "email"}
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUsers) delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

type sentMail struct {
	To, Subject, Body string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingNotifier struct {
	calls int
	user  *models.User
	token string
	err   error
}

func (n *recordingNotifier) SendResetEmail(_ context.Context, u *models.User, token string) error {
	n.calls++
	n.user = u
	n.token = token
	return n.err
}

type memUsedTokens struct {
	mu   sync.Mutex
	used map[string]time.Time
}

func newMemUsedTokens() *memUsedTokens {
	return &memUsedTokens{used: make(map[string]time.Time)}
}

func (m *memUsedTokens) Consume(_ context.Context, id string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.used[id]; ok {
		return false, nil
	}
	m.used[id] = until
	return true, nil
}

func (m *memUsedTokens) IsConsumed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.used[id]
	return ok, nil
}

// failingHasher cannot hash but records verify calls.
type failingHasher struct {
	verified []string
}

func (h *failingHasher) Hash(string) (string, error) {
	return "", errors.New("hasher unavailable")
}

func (h *failingHasher) Verify(_, hash string) bool {
	h.verified = append(h.verified, hash)
	return false
}

var errStorageDown = errors.New("storage down")

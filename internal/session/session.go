// Package session binds a logged-in user to a browser through an opaque,
// server-side revocable cookie token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
)

// ErrNoSession is returned by a Store for unknown or expired ids.
var ErrNoSession = errors.New("session not found")

// Store persists session id -> user id with a TTL. Ids handed to a Store
// are digests of the cookie token, never the token itself.
type Store interface {
	Save(ctx context.Context, id string, userID int64, ttl time.Duration) error
	Get(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type Options struct {
	CookieName  string
	TTL         time.Duration
	RememberTTL time.Duration
	Secure      bool
}

type Manager struct {
	store Store
	users UserLookup
	opts  Options
}

func NewManager(store Store, users UserLookup, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "medtrack_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.RememberTTL <= 0 {
		opts.RememberTTL = 30 * 24 * time.Hour
	}
	return &Manager{store: store, users: users, opts: opts}
}

// Login starts a session for user and sets the cookie on w. With remember
// the cookie survives browser restarts.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, user *models.User, remember bool) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	ttl := m.opts.TTL
	if remember {
		ttl = m.opts.RememberTTL
	}
	if err := m.store.Save(ctx, storeID(token), user.ID, ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(ttl.Seconds())
		cookie.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, cookie)
	return token, nil
}

// CurrentUser returns the user bound to r, or nil when r carries no live
// session.
func (m *Manager) CurrentUser(r *http.Request) (*models.User, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}

	ctx := r.Context()
	userID, err := m.store.Get(ctx, storeID(c.Value))
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Logout drops the server-side session and clears the cookie. Calling it
// without a session is not an error.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	if err := m.store.Delete(r.Context(), storeID(c.Value)); err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func storeID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

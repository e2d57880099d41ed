package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/njugunanduati/medicine-dose-tracker/internal/repository"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
	"github.com/njugunanduati/medicine-dose-tracker/internal/session"
	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

const sessionCookie = "sid"

var userCols = []string{"id", "username", "first_name", "last_name", "email", "password_hash", "created_at", "updated_at"}

type memSessions struct {
	mu  sync.Mutex
	ids map[string]int64
}

func (m *memSessions) Save(_ context.Context, id string, userID int64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = userID
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.ids[id]
	if !ok {
		return 0, session.ErrNoSession
	}
	return uid, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	to   []string
	body []string
}

func (m *recordingMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.body = append(m.body, body)
	return nil
}

type testEnv struct {
	h        *AuthHandler
	mock     sqlmock.Sqlmock
	mailer   *recordingMailer
	codec    *services.ResetTokenCodec
	sessions *memSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.NewUserRepository(sqlx.NewDb(db, "postgres"))
	store := services.NewCredentialStore(repo, services.BcryptHasher{Cost: bcrypt.MinCost})
	codec := services.NewResetTokenCodec("handler-test-secret-0123", services.DefaultResetTokenTTL)
	mailer := &recordingMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := services.NewAuthService(store, codec, services.NewResetMailer(mailer, "http://localhost:8080", codec.TTL()), nil, logger)

	sessions := &memSessions{ids: map[string]int64{}}
	mgr := session.NewManager(sessions, store, session.Options{CookieName: sessionCookie})

	render, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	return &testEnv{
		h:        NewAuthHandler(NewBaseHandler(render), auth, mgr),
		mock:     mock,
		mailer:   mailer,
		codec:    codec,
		sessions: sessions,
	}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(b)
}

func aliceRow(t *testing.T, pw string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(userCols).AddRow(int64(1), "alice", "Alice", "Liddell", "alice@x.com", mustHash(t, pw), now, now)
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withToken(req *http.Request, token string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", token)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q got %q", location, got)
	}
}

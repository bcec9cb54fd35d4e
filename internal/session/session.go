// Package session keeps each visitor's tokens, role and dashboard snapshot
// in a server-side record addressed by an opaque cookie. Manager is the only
// code that reads or writes those records.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/galvanai/portal/internal/auth"
	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/crypto"
	"github.com/galvanai/portal/internal/model"
	"github.com/galvanai/portal/internal/store"
)

const CookieName = "portal_session"

// ErrNoSession is returned by Save when the request carries no session.
var ErrNoSession = errors.New("session: no session")

// Session is one visitor's record. Fields are written together; there is no
// way to persist a partial update.
type Session struct {
	Access  string     `json:"access,omitempty"`
	Refresh string     `json:"refresh,omitempty"`
	Role    model.Role `json:"role,omitempty"`
	Email   string     `json:"email,omitempty"`

	// PendingEmail is the address waiting for an OTP after registration.
	PendingEmail string `json:"pending_email,omitempty"`

	// Users is the dashboard list as of the last successful fetch.
	Users []model.User `json:"users,omitempty"`

	id string
}

func (s *Session) State() auth.State {
	return auth.StateOf(s.Access, s.PendingEmail)
}

// SignedIn reports whether the session holds an access token.
func (s *Session) SignedIn() bool {
	return s.Access != ""
}

type Options struct {
	TTL    time.Duration
	Secure bool
}

type Manager struct {
	store   store.Store
	crypter *crypto.Crypter
	ttl     time.Duration
	secure  bool
}

func NewManager(st store.Store, c *crypto.Crypter, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{store: st, crypter: c, ttl: opts.TTL, secure: opts.Secure}
}

type ctxKey struct{}

// Middleware loads the request's session once and stores it in the context.
// A missing, expired or unreadable record yields an empty session.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := &Session{}
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			loaded, err := m.load(r.Context(), c.Value)
			switch {
			case err == nil:
				s = loaded
			case errors.Is(err, store.ErrNotFound):
			default:
				slog.Warn("session: load failed", "err", err)
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

// FromContext returns the session Middleware placed in ctx, or an empty one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok {
		return s
	}
	return &Session{}
}

// Get returns the request's session.
func (m *Manager) Get(r *http.Request) *Session {
	return FromContext(r.Context())
}

// Set replaces the whole record with the given credentials under a fresh id.
// The dashboard snapshot and any pending registration are dropped.
func (m *Manager) Set(w http.ResponseWriter, r *http.Request, tokens backend.Tokens, role model.Role, email string) error {
	return m.replace(w, r, Session{
		Access:  tokens.Access,
		Refresh: tokens.Refresh,
		Role:    role,
		Email:   email,
	})
}

// Pending records that email registered and is waiting for its OTP. An
// existing record keeps its credentials; only a visitor without one gets a
// new record.
func (m *Manager) Pending(w http.ResponseWriter, r *http.Request, email string) error {
	cur := m.Get(r)
	if cur.id == "" {
		return m.replace(w, r, Session{PendingEmail: email})
	}
	cur.PendingEmail = email
	return m.Save(r.Context(), cur)
}

func (m *Manager) replace(w http.ResponseWriter, r *http.Request, next Session) error {
	cur := m.Get(r)
	if cur.id != "" {
		if err := m.store.Delete(r.Context(), cur.id); err != nil {
			slog.Warn("session: delete on rotate failed", "err", err)
		}
	}

	next.id = auth.GenerateToken()
	if err := m.Save(r.Context(), &next); err != nil {
		return err
	}
	*cur = next
	m.setCookie(w, cur.id, int(m.ttl.Seconds()))
	return nil
}

// Save persists s under its current id.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s.id == "" {
		return ErrNoSession
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	sealed, err := m.crypter.Encrypt(raw, []byte(s.id))
	if err != nil {
		return fmt.Errorf("session: seal: %w", err)
	}
	if err := m.store.Put(ctx, s.id, sealed, m.ttl); err != nil {
		return fmt.Errorf("session: put: %w", err)
	}
	return nil
}

// Clear removes the record and expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	cur := m.Get(r)
	var err error
	if cur.id != "" {
		if err = m.store.Delete(r.Context(), cur.id); err != nil {
			err = fmt.Errorf("session: delete: %w", err)
		}
	}
	*cur = Session{}
	m.setCookie(w, "", -1)
	return err
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	sealed, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := m.crypter.Decrypt(sealed, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	s := &Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	s.id = id
	return s, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

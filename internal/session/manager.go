package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const localsKey = "session"

// CookieConfig controls the cookie carrying the signed session id.
type CookieConfig struct {
	Name     string
	SameSite string
	Secure   bool
	TTL      time.Duration
}

// Manager ties a Store to the request cookie.
type Manager struct {
	store  Store
	secret []byte
	cookie CookieConfig
	nowF   func() time.Time
}

// NewManager builds a session manager signing cookies with secret.
func NewManager(store Store, secret string, cookie CookieConfig) *Manager {
	if cookie.Name == "" {
		cookie.Name = "connect.sid"
	}
	if cookie.SameSite == "" {
		cookie.SameSite = fiber.CookieSameSiteLaxMode
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		secret: []byte(secret),
		cookie: cookie,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookie.Name }

// Start creates a session for u, persists it and sets the cookie.
func (m *Manager) Start(c *fiber.Ctx, u User) (Session, error) {
	id, err := NewID()
	if err != nil {
		return Session{}, err
	}
	now := m.nowF()
	sess := Session{ID: id, User: u, CreatedAt: now, ExpiresAt: now.Add(m.cookie.TTL)}
	if err := m.store.Save(c.UserContext(), sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     m.cookie.Name,
		Value:    Sign(id, m.secret),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.cookie.TTL.Seconds()),
		Secure:   m.cookie.Secure,
		HTTPOnly: true,
		SameSite: m.cookie.SameSite,
	})
	c.Locals(localsKey, sess)
	return sess, nil
}

// Load resolves the session referenced by the request cookie. Missing,
// tampered or expired cookies yield ErrNotFound.
func (m *Manager) Load(c *fiber.Ctx) (Session, error) {
	raw := c.Cookies(m.cookie.Name)
	if raw == "" {
		return Session{}, ErrNotFound
	}
	id, err := Unsign(raw, m.secret)
	if err != nil {
		return Session{}, ErrNotFound
	}
	sess, err := m.store.Get(c.UserContext(), id)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(m.nowF()) {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Destroy deletes the current session, if any, and clears the cookie.
func (m *Manager) Destroy(c *fiber.Ctx) error {
	sess, err := m.Load(c)
	switch {
	case err == nil:
		if err := m.store.Delete(c.UserContext(), sess.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   m.cookie.Secure,
		HTTPOnly: true,
		SameSite: m.cookie.SameSite,
	})
	c.Locals(localsKey, nil)
	return nil
}

// Attach stores sess in the request locals.
func Attach(c *fiber.Ctx, sess Session) {
	c.Locals(localsKey, sess)
}

// FromContext returns the session attached to the request, if any.
func FromContext(c *fiber.Ctx) (Session, bool) {
	sess, ok := c.Locals(localsKey).(Session)
	return sess, ok
}

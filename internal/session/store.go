// Package session persists per-browser purchase state in a signed (and
// optionally encrypted) cookie. The cookie replaces the localStorage the
// original flow relied on; like it, it is a convenience mechanism, not a
// security boundary.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/aeronautyy/math-wallpapers/internal/purchase"
)

const (
	defaultCookieName = "mathwall_purchase"
	defaultLifetime   = 30 * 24 * time.Hour
)

// ErrInvalidConfig indicates the store was initialised with missing or
// invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Config controls cookie encoding and lifetime.
type Config struct {
	CookieName string
	// HashKey signs the payload; 32 or 64 bytes recommended.
	HashKey []byte
	// BlockKey additionally encrypts the payload when set (16/24/32 bytes).
	BlockKey     []byte
	CookieSecure bool
	Lifetime     time.Duration
	Now          func() time.Time
}

// Store encodes purchase state into the visitor's cookie jar.
type Store struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// New constructs a Store from the given configuration.
func New(cfg Config) (*Store, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime / time.Second))
	return &Store{cfg: cfg, codec: codec, now: now}, nil
}

// EphemeralKey returns a random signing key for dev runs where no key is
// configured. State does not survive a process restart with such a key.
func EphemeralKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// crypto/rand failing is unrecoverable for anything that matters;
		// the caller only uses this for local development.
		return []byte("insecure-dev-key-set-MATHWALL_SESSION_HASH_KEY!!")
	}
	return key
}

// Load decodes the visitor's purchase state. Absent, expired or tampered
// cookies yield a fresh empty state.
func (s *Store) Load(r *http.Request) *purchase.State {
	st := &purchase.State{}
	cookie, err := r.Cookie(s.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return st
	}
	if err := s.codec.Decode(s.cfg.CookieName, cookie.Value, st); err != nil {
		return &purchase.State{}
	}
	return st
}

// Save writes the state back to the response.
func (s *Store) Save(w http.ResponseWriter, st *purchase.State) error {
	encoded, err := s.codec.Encode(s.cfg.CookieName, st)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(s.cfg.Lifetime),
	})
	return nil
}

// Clear expires the cookie immediately.
func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

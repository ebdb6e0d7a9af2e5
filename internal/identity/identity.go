// Package identity issues and persists the opaque visitor identifier the
// chat service uses to keep per-user context.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key is the fixed storage key: the cookie name for browsers and the file
// name for the CLI.
const Key = "userId"

const (
	suffixLen   = 9
	maxIDLength = 128
	cookieTTL   = 400 * 24 * time.Hour
	alphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewID returns a fresh identifier of the form user_<unix-ms>_<9 base36 chars>.
func NewID(now time.Time) string {
	return "user_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomSuffix()
}

func randomSuffix() string {
	b := make([]byte, suffixLen)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}

// Valid reports whether id is safe to forward upstream and store. Ids need
// not come from NewID; older cookies with safe characters are accepted.
func Valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

type ctxKey struct{}

// WithUserID stores the visitor id on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the visitor id stored by WithUserID.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// FromRequest reads a valid id from the request cookie.
func FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(Key)
	if err != nil || !Valid(c.Value) {
		return "", false
	}
	return c.Value, true
}

// SetCookie persists id in the visitor's browser.
func SetCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     Key,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FileStore keeps the identifier in a file for command-line clients.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore stores the identifier at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// DefaultFileStore stores the identifier under the user config directory.
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("identity: locate config dir: %w", err)
	}
	return NewFileStore(filepath.Join(dir, "despacho", Key)), nil
}

// Path returns where the identifier is stored.
func (s *FileStore) Path() string { return s.path }

// Get returns the stored identifier, creating and persisting one on first use.
func (s *FileStore) Get() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err == nil {
		if id := strings.TrimSpace(string(raw)); Valid(id) {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("identity: read %s: %w", s.path, err)
	}

	id := NewID(s.now())
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return "", fmt.Errorf("identity: create dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("identity: write %s: %w", s.path, err)
	}
	return id, nil
}

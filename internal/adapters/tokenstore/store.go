// Package tokenstore keeps the bearer token in a local YAML file between runs.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type record struct {
	AccessToken string    `yaml:"access_token"`
	SavedAt     time.Time `yaml:"saved_at"`
}

// FileStore implements core.TokenStore.
type FileStore struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	token string
	ready bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Token returns the stored token, or "" when there is none or it is an expired JWT.
// Opaque (non-JWT) tokens are returned as-is; the backend decides.
func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		s.token = s.load()
		s.ready = true
	}
	if s.token != "" && expired(s.token, s.now()) {
		log.Info().Str("module", "tokenstore").Msg("stored token expired")
		return ""
	}
	return s.token
}

func (s *FileStore) load() string {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("module", "tokenstore").Str("path", s.path).Msg("read token file")
		}
		return ""
	}
	var rec record
	if err := yaml.Unmarshal(b, &rec); err != nil {
		log.Warn().Err(err).Str("module", "tokenstore").Str("path", s.path).Msg("corrupt token file")
		return ""
	}
	return strings.TrimSpace(rec.AccessToken)
}

func (s *FileStore) Save(token string) error {
	b, err := yaml.Marshal(record{AccessToken: token, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	s.mu.Lock()
	s.token, s.ready = token, true
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	s.token, s.ready = "", true
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// expired inspects the exp claim without verifying the signature; the client never
// holds the signing key.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}

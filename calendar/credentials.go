package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// ErrConsentRequired means no usable token is cached and the interactive
// consent flow (cmd/authorize) has to run first.
var ErrConsentRequired = errors.New("google consent required: run the authorize command")

// LoadClientConfig reads an OAuth client secrets file downloaded from the
// Google Cloud console.
func LoadClientConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secrets: %w", err)
	}
	return cfg, nil
}

// TokenCache stores the OAuth token as JSON at a fixed path
type TokenCache struct {
	path string
}

func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Path returns the file the cache reads and writes
func (c *TokenCache) Path() string {
	return c.path
}

// Load returns the cached token. A missing file yields ErrConsentRequired.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConsentRequired
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// Save writes the token atomically with owner-only permissions
func (c *TokenCache) Save(token *oauth2.Token) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".token-*")
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

type tokenSaver interface {
	Save(token *oauth2.Token) error
}

// TokenSource is the single owner of the process-wide Google credential.
// Refresh and persist happen under one lock so concurrent requests never
// race on the cache file.
type TokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	store  tokenSaver
	last   *oauth2.Token
	logger *zap.Logger
}

// NewTokenSource loads the cached token and wraps it in a refreshing source.
// It never starts the consent flow; callers get ErrConsentRequired instead.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, cache *TokenCache, logger *zap.Logger) (*TokenSource, error) {
	token, err := cache.Load()
	if err != nil {
		return nil, err
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, ErrConsentRequired
	}

	return newTokenSource(cfg.TokenSource(ctx, token), cache, token, logger), nil
}

func newTokenSource(base oauth2.TokenSource, store tokenSaver, initial *oauth2.Token, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		base:   base,
		store:  store,
		last:   initial,
		logger: logger,
	}
}

// Token returns a valid access token, persisting it whenever it changed
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		return nil, &SchedulingError{Op: "refresh token", Err: err}
	}

	if s.last == nil || token.AccessToken != s.last.AccessToken {
		if err := s.store.Save(token); err != nil {
			// The in-memory token is still usable; the next refresh retries the write.
			s.logger.Warn("failed to persist refreshed token", zap.Error(err))
		} else {
			s.logger.Info("google token refreshed", zap.Time("expiry", token.Expiry))
			s.last = token
		}
	}

	return token, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sparesmarket/spares_api/internal/utils"
)

// FilesRoute is where LocalStore links point. The files handler serves it.
const FilesRoute = "/v1/exchange/files/"

// LocalStore keeps payloads on disk and issues HMAC-signed, expiring links
// served by the API itself.
type LocalStore struct {
	dir     string
	baseURL string
	secret  string
	ttl     time.Duration
	now     func() time.Time
}

// NewLocalStore creates the payload directory if needed.
func NewLocalStore(dir, baseURL, secret string, ttl time.Duration) (*LocalStore, error) {
	if secret == "" {
		return nil, errors.New("file link secret is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload dir: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source used for link expiry.
func (s *LocalStore) SetClock(now func() time.Time) {
	s.now = now
}

// Put writes the payload atomically through a temp file.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return os.Rename(tmp, p)
}

// URL returns a signed link to the files route.
func (s *LocalStore) URL(_ context.Context, key, fileName string) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	exp, sig := utils.SignLink(key, s.now().Add(s.ttl), s.secret)

	q := url.Values{}
	q.Set("expires", exp)
	q.Set("sig", sig)
	if fileName != "" {
		q.Set("name", fileName)
	}
	return s.baseURL + FilesRoute + key + "?" + q.Encode(), nil
}

// Open verifies a signed link and returns the payload path on disk.
func (s *LocalStore) Open(key, expires, sig string) (string, error) {
	if err := utils.VerifyLink(key, expires, sig, s.secret, s.now()); err != nil {
		return "", err
	}
	p, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", utils.ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// resolve maps a key to a path inside dir, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean[1:] != key {
		return "", fmt.Errorf("%w: invalid payload key", utils.ErrNotFound)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean[1:])), nil
}

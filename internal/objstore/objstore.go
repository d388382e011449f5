// Package objstore downloads source files and uploads generated artifacts.
package objstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/resilience"
)

// Store reads objects by URL and writes them under a key.
type Store interface {
	Get(ctx context.Context, rawURL string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader) (string, error)
}

// New builds the configured store.
func New(cfg config.StorageConfig, retry resilience.RetryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "http":
		if cfg.BaseURL == "" {
			return nil, eris.New("objstore: base_url is required for the http backend")
		}
		return NewHTTPStore(HTTPOptions{
			BaseURL:    cfg.BaseURL,
			AuthToken:  cfg.AuthToken,
			RatePerSec: cfg.RatePerSec,
			Retry:      retry,
		}), nil
	}
	return nil, eris.Errorf("objstore: unknown backend %q", cfg.Backend)
}

// DownloadToFile fetches rawURL into path and returns the bytes written.
func DownloadToFile(ctx context.Context, s Store, rawURL, path string) (int64, error) {
	body, err := s.Get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "objstore: create directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "objstore: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "objstore: write file")
	}
	return n, nil
}

// UploadFile stores the file at path under key.
func UploadFile(ctx context.Context, s Store, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "objstore: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return s.Put(ctx, key, f)
}

// LocalStore keeps objects in a directory and hands out file:// URLs.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, eris.Wrap(err, "objstore: resolve directory")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, eris.Wrap(err, "objstore: create directory")
	}
	return &LocalStore{dir: abs}, nil
}

// Get opens a file:// URL or a plain path.
func (s *LocalStore) Get(_ context.Context, rawURL string) (io.ReadCloser, error) {
	path := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, eris.Wrapf(err, "objstore: parse %s", rawURL)
		}
		path = u.Path
	} else if strings.Contains(rawURL, "://") {
		return nil, eris.Errorf("objstore: local store cannot fetch %s", rawURL)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "objstore: open %s", path)
	}
	return f, nil
}

// Put writes r to dir/key.
func (s *LocalStore) Put(_ context.Context, key string, r io.Reader) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrap(err, "objstore: create directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "objstore: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, r); err != nil {
		return "", eris.Wrapf(err, "objstore: write %s", path)
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", eris.Errorf("objstore: invalid key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func defaultLimit(perSec int) rate.Limit {
	if perSec <= 0 {
		return 5
	}
	return rate.Limit(perSec)
}

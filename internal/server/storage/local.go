package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/filex"
	"github.com/google/uuid"
)

// LocalURLPrefix is the path under which the HTTP server exposes the
// upload directory. The directory is served without authentication, so the
// random file name is what keeps a URL private.
const LocalURLPrefix = "/uploads/"

// LocalStore writes files as "<uuid>-<name>" into a directory.
type LocalStore struct {
	dir   string
	newID func() string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs, newID: uuid.NewString}, nil
}

// Dir is the absolute directory backing the store.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	fileName := fmt.Sprintf("%s-%s", s.newID(), filex.SafeName(name))
	path := filepath.Join(s.dir, fileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	return LocalURLPrefix + fileName, nil
}

func (s *LocalStore) Remove(ctx context.Context, url string) error {
	path, err := s.pathFor(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}

func (s *LocalStore) DownloadURL(ctx context.Context, url string) (string, error) {
	if _, err := s.pathFor(url); err != nil {
		return "", err
	}
	return url, nil
}

// pathFor re-derives the on-disk path from a stored URL.
func (s *LocalStore) pathFor(url string) (string, error) {
	name, ok := strings.CutPrefix(url, LocalURLPrefix)
	if !ok || name == "" || filex.SafeName(name) != name {
		return "", fmt.Errorf("%w: unexpected url %q", common.ErrStorage, url)
	}
	return filepath.Join(s.dir, name), nil
}

// Package sessionrepofile persists the session record as a sealed file.
package sessionrepofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/internal/sealer"
	"github.com/jrsteele09/go-blog-client/session"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

var _ session.Repo = (*FileSessionRepo)(nil)

type FileSessionRepo struct {
	fs     afero.Fs
	path   string
	sealer *sealer.Sealer
}

// NewFileSessionRepo stores the record named record in dir on fs
func NewFileSessionRepo(fs afero.Fs, dir, record string, s *sealer.Sealer) *FileSessionRepo {
	return &FileSessionRepo{
		fs:     fs,
		path:   filepath.Join(dir, record+".json"),
		sealer: s,
	}
}

// Path returns the location of the sealed record
func (r *FileSessionRepo) Path() string {
	return r.path
}

func (r *FileSessionRepo) Load(_ context.Context) (*session.Session, error) {
	sealed, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	plain, err := r.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}

	var s session.Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "invalid session json")
	}
	return &s, nil
}

// Save seals s and atomically replaces the record via a temporary file and rename
func (r *FileSessionRepo) Save(_ context.Context, s *session.Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := r.sealer.Seal(plain)
	if err != nil {
		return err
	}

	if err := r.fs.MkdirAll(filepath.Dir(r.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := r.path + "." + uuid.New().String() + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, sealed, filePerm); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (r *FileSessionRepo) Delete(_ context.Context) error {
	err := r.fs.Remove(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

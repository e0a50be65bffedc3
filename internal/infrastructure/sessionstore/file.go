package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// fileRecord is the on-disk layout. Both keys live in one document so a
// write can never leave one without the other.
type fileRecord struct {
	Token    string `json:"token,omitempty"`
	UserType string `json:"user_type,omitempty"`
}

// File persists the session as a JSON document, replaced atomically on every
// write.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Session{}, nil
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("read session file: %w", err)
	}
	if len(b) == 0 {
		return domain.Session{}, nil
	}

	var rec fileRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("parse session file: %w", err)
	}
	return domain.Session{Token: rec.Token, Role: domain.Role(rec.UserType)}, nil
}

func (f *File) Set(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := json.Marshal(fileRecord{Token: s.Token, UserType: string(s.Role)})
	if err != nil {
		return err
	}
	return f.replace(b)
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// replace writes b to a temp file in the same directory and renames it over
// the target.
func (f *File) replace(b []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

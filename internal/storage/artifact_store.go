// Package storage persists audio artifacts as files on disk. Artifacts are
// immutable once written: post-processing saves a new file, never rewrites
// the source.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tts-worker-service/internal/faults"
)

type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create artifact dir: %v", faults.ErrStore, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes a new artifact. Names are opaque locators handed out by
// NewArtifactName; anything resembling a path is rejected.
func (s *FileStore) Save(name string, data []byte) error {
	if !validName(name) {
		return fmt.Errorf("%w: bad artifact name %q", faults.ErrInvalidInput, name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("%w: write artifact: %v", faults.ErrStore, err)
	}
	return nil
}

func (s *FileStore) Load(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: bad artifact name %q", faults.ErrInvalidInput, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %q", faults.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: read artifact: %v", faults.ErrStore, err)
	}
	return data, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\") && name != "." && name != ".."
}

// NewArtifactName builds a collision-safe artifact name:
// {prefix}_{timestamp}_{random}.{ext}. Concurrent workers may save at the
// same instant, hence the random suffix.
func NewArtifactName(prefix, ext string) string {
	prefix = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '-'
		}
		return r
	}, prefix)
	ts := time.Now().UTC().Format("20060102_150405")
	rand := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s.%s", prefix, ts, rand, ext)
}

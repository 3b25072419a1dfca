package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	domrepo "FinCast/internal/domain/repository"
)

// FSArtifactStore keeps serialized model artifacts as one file per version id
// under a base directory. Writes go through a temp file + rename so a crash
// mid-write never leaves a half-written artifact behind.
type FSArtifactStore struct {
	dir string
}

func NewFSArtifactStore(dir string) (*FSArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir %s: %w", dir, err)
	}
	return &FSArtifactStore{dir: dir}, nil
}

func (s *FSArtifactStore) Save(_ context.Context, versionID string, artifact []byte) error {
	final := s.path(versionID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, artifact, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", versionID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit artifact %s: %w", versionID, err)
	}
	return nil
}

func (s *FSArtifactStore) Load(_ context.Context, versionID string) ([]byte, error) {
	b, err := os.ReadFile(s.path(versionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", versionID, domrepo.ErrArtifactMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", versionID, err)
	}
	return b, nil
}

func (s *FSArtifactStore) Exists(versionID string) bool {
	_, err := os.Stat(s.path(versionID))
	return err == nil
}

func (s *FSArtifactStore) path(versionID string) string {
	return filepath.Join(s.dir, versionID+".json")
}

var _ domrepo.ArtifactStore = (*FSArtifactStore)(nil)

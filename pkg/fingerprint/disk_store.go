package fingerprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore persists artifacts under <baseDir>/<fingerprint>/<kind> so that
// the visual maps survive restarts and can be served as static files.
type DiskStore struct {
	baseDir string
}

func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", baseDir, err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

func (s *DiskStore) Get(_ context.Context, hash string, kind ArtifactKind) ([]byte, bool, error) {
	data, err := os.ReadFile(s.entryPath(hash, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *DiskStore) Put(_ context.Context, hash string, kind ArtifactKind, artifact []byte) error {
	path := s.entryPath(hash, kind)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// Write via a temp file then rename, so a cancelled run never leaves a
	// partially written artifact behind the final name.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, artifact, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DiskStore) Location(hash string, kind ArtifactKind) string {
	return s.entryPath(hash, kind)
}

func (s *DiskStore) entryPath(hash string, kind ArtifactKind) string {
	name := string(kind)
	if kind != KindEmbedding {
		name += ".png"
	} else {
		name += ".json"
	}
	return filepath.Join(s.baseDir, hash, name)
}

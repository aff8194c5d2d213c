package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON document per username in a shared directory.
// Writes go to a temp file that is renamed over the target, so readers never
// see a partial document. Concurrent writers for one user race; the last
// rename wins.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(username string) string {
	return filepath.Join(s.dir, username+".json")
}

func (s *FileStore) Load(ctx context.Context, username string) (UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return UserProfile{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return UserProfile{}, err
	}

	b, err := os.ReadFile(s.path(username))
	if errors.Is(err, fs.ErrNotExist) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("read profile %q: %w", username, err)
	}

	var p UserProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return UserProfile{}, fmt.Errorf("decode profile %q: %w", username, err)
	}
	p.Username = username
	return p, nil
}

func (s *FileStore) Save(ctx context.Context, p UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Username, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+p.Username+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write profile %q: %w", p.Username, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync profile %q: %w", p.Username, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile %q: %w", p.Username, err)
	}
	if err := os.Rename(tmpName, s.path(p.Username)); err != nil {
		return fmt.Errorf("replace profile %q: %w", p.Username, err)
	}
	return nil
}

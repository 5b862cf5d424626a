package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"funcsmith/internal/funcdef"
)

// FileStore keeps all definitions in a single JSON file keyed by name.
// Writes go through a temp file plus rename so a crashed Put never leaves a
// half-written store behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the store location under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".funcsmith", "functions.json"), nil
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() (map[string]funcdef.Definition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]funcdef.Definition{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	defs := map[string]funcdef.Definition{}
	if len(data) == 0 {
		return defs, nil
	}
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return defs, nil
}

func (s *FileStore) save(defs map[string]funcdef.Definition) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (s *FileStore) Put(_ context.Context, def funcdef.Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("definition name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.load()
	if err != nil {
		return err
	}
	defs[def.Name] = def
	return s.save(defs)
}

func (s *FileStore) Get(_ context.Context, name string) (funcdef.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.load()
	if err != nil {
		return funcdef.Definition{}, err
	}
	def, ok := defs[name]
	if !ok {
		return funcdef.Definition{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return def, nil
}

func (s *FileStore) List(_ context.Context) ([]funcdef.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]funcdef.Definition, 0, len(defs))
	for _, def := range defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.load()
	if err != nil {
		return err
	}
	kept := map[string]funcdef.Definition{}
	for name, def := range defs {
		if def.IsInternal {
			kept[name] = def
		}
	}
	return s.save(kept)
}

func (s *FileStore) Close() error { return nil }

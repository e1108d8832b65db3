package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// store is a directory of JSON files, one entity per file, keyed by ID.
// Repositories that need read-check-write atomicity layer their own mutex on
// top; cross-process coordination is the PostgreSQL implementation's job.
type store[T any] struct {
	dir string
}

func newStore[T any](root, name string) *store[T] {
	return &store[T]{dir: filepath.Join(root, name)}
}

// validateID rejects IDs unsafe for file operations.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	// Path traversal guard
	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func (s *store[T]) path(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}

	return filepath.Join(s.dir, id+".json"), nil
}

func (s *store[T]) write(id string, entity *T) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return nil
}

// read returns fs.ErrNotExist (wrapped) when no file exists for the ID; the
// repositories map that to their entity-specific not-found sentinel.
func (s *store[T]) read(id string) (*T, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		return nil, err
	}

	var entity T

	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &entity, nil
}

// list reads every entity in the directory, skipping unreadable files.
func (s *store[T]) list() ([]*T, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*T{}, nil
		}

		return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}

	var entities []*T

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		entity, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid files
			continue
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

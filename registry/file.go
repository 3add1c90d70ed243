package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const (
	deploymentsFile = "deployments.json"
	migrationsFile  = ".migrations.json"
)

// FileStore keeps one deployments.json and one .migrations.json per network
// under a root directory. Every mutation rewrites the file atomically.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deployments directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create deployments directory: %w", err)
	}
	return &FileStore{dir: absDir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Get(_ context.Context, network string, name Name) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(network)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
}

func (s *FileStore) Put(_ context.Context, network string, rec *Record) error {
	if err := rec.Name.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(network)
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.Name == rec.Name {
			return fmt.Errorf("%w: %s on %s", ErrExists, rec.Name, network)
		}
	}

	records = append(records, cloneRecord(rec))
	sortRecords(records)
	return s.writeJSON(network, deploymentsFile, records)
}

func (s *FileStore) Delete(_ context.Context, network string, name Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(network)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.Name != name {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
	}
	return s.writeJSON(network, deploymentsFile, kept)
}

func (s *FileStore) List(_ context.Context, network string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(network)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func (s *FileStore) StepDone(_ context.Context, network, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, err := s.loadSteps(network)
	if err != nil {
		return false, err
	}
	_, ok := steps[id]
	return ok, nil
}

func (s *FileStore) MarkStep(_ context.Context, network, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, err := s.loadSteps(network)
	if err != nil {
		return err
	}
	steps[id] = time.Now().Unix()
	return s.writeJSON(network, migrationsFile, steps)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(network, file string) string {
	return filepath.Join(s.dir, network, file)
}

func (s *FileStore) loadRecords(network string) ([]*Record, error) {
	var records []*Record

	data, err := os.ReadFile(s.path(network, deploymentsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read deployments file: %w", err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse deployments: %w", err)
	}
	return records, nil
}

func (s *FileStore) loadSteps(network string) (map[string]int64, error) {
	steps := make(map[string]int64)

	data, err := os.ReadFile(s.path(network, migrationsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return steps, nil
		}
		return nil, fmt.Errorf("failed to read migrations file: %w", err)
	}

	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return steps, nil
}

func (s *FileStore) writeJSON(network, file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", file, err)
	}

	if err := os.MkdirAll(filepath.Join(s.dir, network), 0755); err != nil {
		return fmt.Errorf("failed to create network directory: %w", err)
	}

	if err := renameio.WriteFile(s.path(network, file), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Source resolves a contract name to its artifact.
type Source interface {
	Load(name string) (*Artifact, error)
}

// Dir finds artifacts anywhere below a Hardhat artifacts directory by file
// name (<Contract>.json). Loaded artifacts are cached.
type Dir struct {
	root string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewDir creates a source reading from root.
func NewDir(root string) *Dir {
	return &Dir{root: root, cache: make(map[string]*Artifact)}
}

// Load returns the artifact for the contract called name.
func (d *Dir) Load(name string) (*Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	path, err := d.find(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if a.ContractName == "" {
		a.ContractName = name
	}

	d.cache[name] = a
	return a, nil
}

var errFound = errors.New("found")

func (d *Dir) find(name string) (string, error) {
	target := name + ".json"
	var found string

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// solc build-info holds whole compilations, not artifacts
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Name() == target {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("failed to search artifacts in %s: %w", d.root, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, d.root)
	}
	return found, nil
}

// Memory is a fixed set of artifacts, keyed by contract name.
type Memory map[string]*Artifact

func (m Memory) Load(name string) (*Artifact, error) {
	a, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return a, nil
}

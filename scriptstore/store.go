// Package scriptstore persists named JavaScript function sources as flat files.
// The script name is the identity: one file per name, latest write wins, no index.
package scriptstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrNotFound    = errors.New("script not found")
	ErrInvalidName = errors.New("invalid script name")
	ErrEmptySource = errors.New("script source is empty")
)

// ext is appended to every stored script file.
const ext = ".js"

// nameRe constrains script names to a filesystem- and injection-safe alphabet.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store saves and loads script sources under a single directory.
// Save uses an atomic rename so a concurrent Load never observes a partial write.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created lazily on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the backing directory path.
func (s *Store) Dir() string { return s.dir }

// Save writes source under name, overwriting any previous content, and returns the
// file path. The name must match [A-Za-z0-9_-]+ and the source must be non-blank;
// violations return ErrInvalidName or ErrEmptySource without touching the filesystem.
func (s *Store) Save(name, source string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create script directory: %w", err)
	}
	path := s.path(name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write script %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write script %q: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store script %q: %w", name, err)
	}
	return path, nil
}

// Load returns the exact source last saved under name, or ErrNotFound.
func (s *Store) Load(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("load script %q: %w", name, err)
	}
	return string(data), nil
}

// List returns the names of all stored scripts, sorted. A missing directory is an
// empty store, not an error.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), ext)
		if !ok || !nameRe.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+ext)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q (allowed: letters, digits, underscore, hyphen)", ErrInvalidName, name)
	}
	return nil
}

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const bodyExt = ".body"

// Manager writes response bodies into an output directory and remembers
// which targets already have one.
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a storage manager, creating outputDir when missing
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

// Name returns the stable file name for a target: a name-based UUID of the
// URL, so re-runs map each target to the same file.
func Name(target string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(target)).String()
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == bodyExt {
			m.saved[strings.TrimSuffix(entry.Name(), bodyExt)] = true
		}
	}

	return nil
}

// Path returns where the body for target is written
func (m *Manager) Path(target string) string {
	return filepath.Join(m.outputDir, Name(target)+bodyExt)
}

// IsSaved reports whether a body for target already exists
func (m *Manager) IsSaved(target string) bool {
	name := Name(target)

	m.mu.RLock()
	known := m.saved[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.Path(target)); err != nil {
		return false
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()
	return true
}

// Save writes the body for target through a temporary file and rename
func (m *Manager) Save(target string, r io.Reader) error {
	filename := m.Path(target)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write body: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[Name(target)] = true
	m.mu.Unlock()

	return nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of bodies known to be on disk
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

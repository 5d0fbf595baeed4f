package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pmcharvest/pkg/window"
)

// DocumentExt is the extension of every stored document
const DocumentExt = ".xml"

// ErrInvalidID is returned for identifiers that cannot be used as file names
var ErrInvalidID = errors.New("invalid document identifier")

// Location addresses one document in the store
type Location struct {
	Window   window.TimeWindow
	Category string // optional subdirectory
	ID       string
}

// Manager is a file-per-identifier document store.
// A document exists exactly when its file exists; files are written once and never modified.
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path returns <root>/YYYY/MM/[Category/]ID.xml
func (m *Manager) Path(loc Location) (string, error) {
	if err := validateID(loc.ID); err != nil {
		return "", err
	}
	parts := []string{
		m.outputDir,
		fmt.Sprintf("%04d", loc.Window.Year),
		fmt.Sprintf("%02d", loc.Window.Month),
	}
	if loc.Category != "" {
		parts = append(parts, loc.Category)
	}
	parts = append(parts, loc.ID+DocumentExt)
	return filepath.Join(parts...), nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Exists reports whether the document at loc has already been stored
func (m *Manager) Exists(loc Location) bool {
	path, err := m.Path(loc)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Put stores body at loc. An existing document is left untouched.
func (m *Manager) Put(loc Location, body []byte) error {
	filename, err := m.Path(loc)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filename); err == nil {
		return nil
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	out, err := os.CreateTemp(dir, loc.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = out.Write(body)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Count walks the store and returns the number of stored documents per YYYY-MM window
func (m *Manager) Count() (map[string]int, error) {
	counts := make(map[string]int)
	err := filepath.WalkDir(m.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != DocumentExt {
			return nil
		}
		rel, err := filepath.Rel(m.outputDir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		counts[parts[0]+"-"+parts[1]]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan store: %w", err)
	}
	return counts, nil
}

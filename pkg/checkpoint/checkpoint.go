package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/window"
)

// Checkpoint is the single durable harvest position
type Checkpoint struct {
	Window window.TimeWindow
	// Processed counts records handled in Window so far
	Processed int
	// Marker is the next page cursor or the last processed identifier
	Marker string
	// Done marks Window as fully harvested
	Done bool
}

// ResumeWindow is the first window that still needs work
func (c *Checkpoint) ResumeWindow() window.TimeWindow {
	if c.Done {
		return c.Window.Next()
	}
	return c.Window
}

func (c *Checkpoint) String() string {
	if c.Done {
		return fmt.Sprintf("%s done", c.Window)
	}
	return fmt.Sprintf("%s processed=%d marker=%q", c.Window, c.Processed, c.Marker)
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	codec          Codec
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the file at path
func NewManager(path string, codec Codec, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		checkpointPath: path,
		codec:          codec,
		logger:         log.WithField("checkpoint", path),
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load reads the stored checkpoint. It returns nil when the file is absent,
// unreadable or malformed; the caller then starts from the configured origin.
func (m *Manager) Load() *Checkpoint {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.WithError(err).Warn("Checkpoint unreadable, starting fresh")
		}
		return nil
	}

	cp, err := m.codec.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		m.logger.WithError(err).WarnWithFields("Checkpoint malformed, starting fresh", map[string]interface{}{
			"content": string(data),
		})
		return nil
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"window":    cp.Window.String(),
		"processed": cp.Processed,
		"marker":    cp.Marker,
		"done":      cp.Done,
	})
	return cp
}

// Save replaces the stored checkpoint atomically.
// An interrupted save leaves the previous value in place.
func (m *Manager) Save(checkpoint *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(m.checkpointPath), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.WriteString(m.codec.Encode(checkpoint) + "\n"); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"window":    checkpoint.Window.String(),
		"processed": checkpoint.Processed,
		"marker":    checkpoint.Marker,
		"done":      checkpoint.Done,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

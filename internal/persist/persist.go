// Package persist owns the durable copy of the stats table: a single JSON
// document loaded once at startup and atomically replaced on every save.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/whoisthere/whoisthere/internal/stats"
)

type Manager struct {
	logger zerolog.Logger
	path   string
}

// NewManager creates a manager bound to the given document path. An empty
// path disables persistence entirely.
func NewManager(logger zerolog.Logger, path string) *Manager {
	return &Manager{logger: logger, path: path}
}

// Enabled reports whether a document path was configured.
func (m *Manager) Enabled() bool {
	return m != nil && m.path != ""
}

// Load reads the persisted document and returns the table it holds.
//
//   - no path configured: empty table
//   - file exists and parses: its contents
//   - file does not exist: an empty document is created at the path,
//     empty table
//   - parse failure or any other I/O error: returned to the caller, who
//     must treat it as fatal before entering the capture phase
func (m *Manager) Load() (stats.Table, error) {
	if !m.Enabled() {
		return stats.Table{}, nil
	}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Info().Str("path", m.path).Msg("state file not found, creating empty document")
		if err := m.Save(stats.Table{}); err != nil {
			return nil, fmt.Errorf("create state file: %w", err)
		}
		return stats.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", m.path, err)
	}

	var table stats.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", m.path, err)
	}

	m.logger.Info().
		Str("path", m.path).
		Int("pairs", len(table)).
		Msg("loaded persisted state")

	return table, nil
}

// Save serializes the whole snapshot and replaces the document in one
// atomic step: write to a temporary file in the same directory, fsync,
// rename over the target. A concurrent reader of the path can therefore
// never observe a syntactically incomplete document.
//
// Any failure here is a durability failure; callers must not keep running
// after one.
func (m *Manager) Save(table stats.Table) error {
	if !m.Enabled() {
		return nil
	}

	// The stock marshaler HTML-escapes '>', which would mangle the literal
	// " -> " in the pair keys on disk.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

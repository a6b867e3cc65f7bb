// Package home manages the application home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the home directory.
	DefaultDirName = ".carefile"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DBFileName is the SQLite database file name.
	DBFileName = "carefile.db"
)

// Dir represents the home directory structure:
//
//	~/.carefile/
//	  config.yaml
//	  carefile.db
//	  uploads/    raw document bytes, one file per document id
//	  exports/    generated XLSX and PDF files
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.carefile).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DBPath returns the path to the SQLite database.
func (d *Dir) DBPath() string {
	return filepath.Join(d.path, DBFileName)
}

// UploadsDir returns the directory holding raw document bytes.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, "uploads")
}

// ExportsDir returns the directory for generated export files.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}

// ExportPath returns the path for a named export file.
func (d *Dir) ExportPath(filename string) string {
	return filepath.Join(d.ExportsDir(), filename)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.path, d.UploadsDir(), d.ExportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// Package config loads the JSON files that configure tracking sessions
// and calibration runs. Every field is optional: a nil pointer falls back
// to the default returned by its getter, so partial files are safe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/banshee-data/markertrack/internal/monitoring"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

type validator interface {
	Validate() error
}

// load reads path into dst. A missing file leaves dst untouched and
// reports found=false.
func load(path string, dst validator) (found bool, err error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return false, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if errors.Is(err, fs.ErrNotExist) {
		monitoring.Logf("[config] %s not found, using defaults", cleanPath)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return false, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return false, fmt.Errorf("invalid configuration: %w", err)
	}
	return true, nil
}

func save(path string, v validator) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

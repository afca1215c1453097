// Package status provides save status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for save status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the save status of the named instance
	SaveStatus(ctx context.Context, name string, status *SaveStatus) error

	// LoadStatus loads the save status of the named instance.
	// Returns an empty SaveStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context, name string) (*SaveStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// basePath is the base directory where per-instance status files will be stored
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// SaveStatus saves the status to a JSON file in an instance-specific directory
func (f *fileStatusPersistence) SaveStatus(_ context.Context, name string, status *SaveStatus) error {
	instanceDir := filepath.Join(f.basePath, name)
	if err := os.MkdirAll(instanceDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for '%s': %w", name, err)
	}

	filePath := filepath.Join(instanceDir, StatusFileName)

	stamped := *status
	stamped.WriterVersion = versions.Version

	data, err := json.MarshalIndent(&stamped, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for '%s': %w", name, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for '%s': %w", name, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for '%s': %w", name, err)
	}

	return nil
}

// LoadStatus loads the status from a JSON file for the named instance
func (f *fileStatusPersistence) LoadStatus(_ context.Context, name string) (*SaveStatus, error) {
	filePath := filepath.Join(f.basePath, name, StatusFileName)

	// #nosec G304 -- filePath is built from the configured base path and instance name
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SaveStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for '%s': %w", name, err)
	}

	var status SaveStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for '%s': %w", name, err)
	}

	if versions.IsNewerVersion(status.WriterVersion, versions.Version) {
		slog.Warn("Status file was written by a newer daemon version",
			"instance", name,
			"writer_version", status.WriterVersion,
			"version", versions.Version)
	}

	return &status, nil
}

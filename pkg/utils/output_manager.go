package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles run artifact directories and path management.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateRunOutputDir creates the directory holding one run's artifacts.
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := filepath.Join(om.BaseOutputDir, filepath.Base(runID))

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}

	return runDir, nil
}

// GetOutputFilePath generates a full path for an artifact, creating the run
// directory on demand.
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}

	// Clean the filename to remove any path separators
	cleanFileName := filepath.Base(fileName)

	return filepath.Join(runDir, cleanFileName), nil
}

// GetDownloadURL generates the API path serving an artifact.
func (om *OutputManager) GetDownloadURL(runID, fileName string) string {
	cleanFileName := filepath.Base(fileName)
	return fmt.Sprintf("/api/v1/runs/%s/files/%s", runID, cleanFileName)
}

// GetFileType determines the artifact type from its extension.
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".geojson":
		return "geojson"
	case ".html":
		return "html"
	case ".zip":
		return "zip"
	default:
		return "unknown"
	}
}

// ContentType returns the HTTP content type for an artifact.
func (om *OutputManager) ContentType(fileName string) string {
	switch om.GetFileType(fileName) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "json":
		return "application/json"
	case "geojson":
		return "application/geo+json"
	case "html":
		return "text/html; charset=utf-8"
	case "zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}

// RemoveRunOutputDir deletes every artifact of a run.
func (om *OutputManager) RemoveRunOutputDir(runID string) error {
	return os.RemoveAll(filepath.Join(om.BaseOutputDir, filepath.Base(runID)))
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}

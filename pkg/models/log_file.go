package models

import (
	"path/filepath"
	"strings"
	"time"
)

// LogFileDescriptor describes a log file discovered under the logs directory.
// EstimatedLines is approximate for large files.
type LogFileDescriptor struct {
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	Size           int64     `json:"size"`
	LastModified   time.Time `json:"lastModified"`
	EstimatedLines int64     `json:"estimatedLines"`
	Format         string    `json:"format"`
}

// FileMetadata is the cached view of a file, keyed by name
type FileMetadata struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastModified"`
	Size         int64     `json:"size"`
	LastAccessed uint64    `json:"lastAccessed"` // cache tick, not wall time
}

// Display format labels
const (
	FormatCombined = "COMBINED"
	FormatJSON     = "JSON"
	FormatCSV      = "CSV"
	FormatText     = "TEXT"
)

// CombinedMarker identifies combined log files in the naming convention
const CombinedMarker = "-combined-logs-"

// IsLogFile reports whether name has a log-like extension (.log or .txt)
func IsLogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".log", ".txt":
		return true
	}
	return false
}

// FormatLabel derives the display format label from a file name
func FormatLabel(name string) string {
	if strings.Contains(name, CombinedMarker) {
		return FormatCombined
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".log":
		return FormatJSON
	case ".txt":
		return FormatCSV
	default:
		return FormatText
	}
}

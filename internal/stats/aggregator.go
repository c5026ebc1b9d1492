package stats

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"logvault/internal/discovery"
	"logvault/internal/ingestion"
	"logvault/internal/storage"
	"logvault/pkg/models"
)

const (
	// SampleLimit bounds the parsed sample used for distributions
	SampleLimit = 1000
	// HourlyBuckets is the number of one-hour buckets in Summary.HourlyCounts
	HourlyBuckets = 24
)

// File type labels derived from the naming convention
const (
	TypeCombined = "COMBINED_TXT"
	TypeError    = "ERROR_LOGS"
	TypeInfo     = "INFO_LOGS"
	TypeConfig   = "CONFIG_LOGS"
	TypeOther    = "OTHER"
)

// RecentEntries estimates entry counts for recently modified files
type RecentEntries struct {
	LastHour    int64 `json:"lastHour"`
	Last24Hours int64 `json:"last24Hours"`
}

// Summary is the statistics snapshot returned to dashboards
type Summary struct {
	TotalFiles            int            `json:"totalFiles"`
	TotalEstimatedLines   int64          `json:"totalEstimatedLines"`
	SeverityDistribution  map[string]int `json:"severityDistribution"`
	ActionDistribution    map[string]int `json:"actionDistribution"`
	RecentEntries         RecentEntries  `json:"recentEntries"`
	HourlyCounts          []int          `json:"hourlyCounts"` // index 0 = the hour ending now
	FileTypeDistribution  map[string]int `json:"fileTypeDistribution"`
	ExtensionDistribution map[string]int `json:"extensionDistribution"`
	GeneratedAt           time.Time      `json:"generatedAt"`
	Error                 string         `json:"error,omitempty"`
}

// Source provides the cached metadata and the files to sample
type Source interface {
	Cache() *storage.MetadataCache
	Pipeline() *ingestion.Pipeline
	Files() ([]discovery.File, error)
}

// Aggregator builds summaries from the metadata cache and a bounded sample
type Aggregator struct {
	source Source
	now    func() time.Time
}

// NewAggregator creates an Aggregator over source
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// Summarize never fails: problems are reported in Summary.Error alongside
// whatever was computed before them.
func (a *Aggregator) Summarize() (summary Summary) {
	now := a.now()
	summary = Summary{
		SeverityDistribution:  map[string]int{},
		ActionDistribution:    map[string]int{},
		HourlyCounts:          make([]int, HourlyBuckets),
		FileTypeDistribution:  map[string]int{},
		ExtensionDistribution: map[string]int{},
		GeneratedAt:           now,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("statistics aggregation failed", "panic", r)
			summary.Error = fmt.Sprintf("aggregation failed: %v", r)
		}
	}()

	a.fromCache(&summary, now)

	files, err := a.source.Files()
	if err != nil {
		slog.Warn("statistics sample scan failed", "err", err)
		summary.Error = fmt.Sprintf("scan logs: %v", err)
		return summary
	}
	sample := a.source.Pipeline().Run(files, ingestion.Filter{
		Severity:   models.SeverityAll,
		TimeWindow: models.WindowDay,
		Limit:      SampleLimit,
	})
	fromSample(&summary, sample, now)
	return summary
}

// fromCache fills the file-level figures without touching cache entries
func (a *Aggregator) fromCache(summary *Summary, now time.Time) {
	for _, cached := range a.source.Cache().Snapshot() {
		name := cached.Metadata.Name
		summary.TotalFiles++
		summary.TotalEstimatedLines += cached.LineCount
		summary.FileTypeDistribution[ClassifyFile(name)]++
		summary.ExtensionDistribution[extension(name)]++

		// A recently modified file counts all of its lines as recent.
		age := now.Sub(cached.Metadata.LastModified)
		if age <= time.Hour {
			summary.RecentEntries.LastHour += cached.LineCount
		}
		if age <= 24*time.Hour {
			summary.RecentEntries.Last24Hours += cached.LineCount
		}
	}
}

func fromSample(summary *Summary, sample []models.LogEntry, now time.Time) {
	for _, entry := range sample {
		summary.SeverityDistribution[orUnknown(entry.Severity)]++
		summary.ActionDistribution[orUnknown(entry.Action)]++

		age := now.Sub(entry.Timestamp)
		if age < 0 {
			age = 0
		}
		if bucket := int(age / time.Hour); bucket < HourlyBuckets {
			summary.HourlyCounts[bucket]++
		}
	}
}

// ClassifyFile maps a file name following <service>-<level>-<date>.<ext> to
// its file type label
func ClassifyFile(name string) string {
	base := filepath.Base(name)
	if strings.Contains(base, models.CombinedMarker) {
		return TypeCombined
	}

	ext := filepath.Ext(base)
	tokens := strings.Split(strings.TrimSuffix(base, ext), "-")
	if len(tokens) < 2 {
		return TypeOther
	}

	level := strings.ToLower(tokens[len(tokens)-2])
	switch level {
	case "severe", "warning":
		return TypeError
	case "info":
		return TypeInfo
	case "config":
		return TypeConfig
	}
	return strings.ToUpper(level + "_" + strings.TrimPrefix(ext, "."))
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "none"
	}
	return ext
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

package query

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"logvault/internal/discovery"
	"logvault/internal/ingestion"
	"logvault/internal/linecount"
	"logvault/internal/parser"
	"logvault/internal/storage"
	"logvault/internal/tail"
	"logvault/pkg/models"
)

const (
	// DefaultPageSize is used when a request asks for fewer than one entry per page
	DefaultPageSize = 20
	// MaxPageSize caps the page size a request may ask for
	MaxPageSize = 500
	// ExportLimit caps the number of entries in a CSV export
	ExportLimit = 10000
)

// CSVHeader is the fixed first row of every export
const CSVHeader = "Timestamp,Source IP,Rule ID,Message,Severity,Action,Request URL,Log File,Performed By,Request ID,Error,URI"

// ErrNotFound is returned for files that do not exist or lie outside the logs directory
var ErrNotFound = errors.New("log file not found")

// Options configures a Service
type Options struct {
	Dir            string
	Pattern        string // glob relative to Dir, defaults to *.{log,txt}
	MaxCachedFiles int
	Workers        int
	Parser         parser.Parser // defaults to parser.NewAutoParser()
}

// Service answers file listing, paging, export and raw view queries over a
// logs directory
type Service struct {
	dir       string
	pattern   string
	cache     *storage.MetadataCache
	estimator *linecount.Estimator
	pipeline  *ingestion.Pipeline
	tail      *tail.Reader
}

// Page is one page of matching entries. Pages are 1-indexed.
type Page struct {
	Entries    []models.LogEntry `json:"entries"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

// New creates a Service. The directory does not need to exist.
func New(opts Options) (*Service, error) {
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve logs dir: %w", err)
	}

	cache, err := storage.NewMetadataCache(opts.MaxCachedFiles)
	if err != nil {
		return nil, err
	}

	p := opts.Parser
	if p == nil {
		p = parser.NewAutoParser()
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = discovery.DefaultPattern
	}

	return &Service{
		dir:       dir,
		pattern:   pattern,
		cache:     cache,
		estimator: linecount.New(),
		pipeline:  ingestion.NewPipeline(p, opts.Workers),
		tail:      tail.NewReader(),
	}, nil
}

// Dir returns the absolute logs directory
func (s *Service) Dir() string {
	return s.dir
}

// Pattern returns the glob selecting log files under Dir
func (s *Service) Pattern() string {
	return s.pattern
}

// Cache exposes the metadata cache for read-only consumers such as statistics
func (s *Service) Cache() *storage.MetadataCache {
	return s.cache
}

// Pipeline exposes the filter pipeline for sampling
func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Files returns the log-like files currently in the directory
func (s *Service) Files() ([]discovery.File, error) {
	return discovery.Scan(s.dir, s.pattern)
}

// ListFiles returns a descriptor per log file, newest first.
// Scan failures yield an empty list.
func (s *Service) ListFiles() []models.LogFileDescriptor {
	files, err := s.Files()
	if err != nil {
		slog.Warn("failed to scan logs directory", "dir", s.dir, "err", err)
		return []models.LogFileDescriptor{}
	}

	descriptors := make([]models.LogFileDescriptor, 0, len(files))
	for _, file := range files {
		descriptors = append(descriptors, s.describe(file))
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		a, b := descriptors[i], descriptors[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Name < b.Name
	})
	return descriptors
}

// GetEntries runs the filter pipeline and returns the requested page.
// page < 1 is treated as 1; pageSize is clamped to [1, MaxPageSize] with
// DefaultPageSize for values below 1.
//
// The pipeline is capped one page beyond the requested one, so TotalItems
// and TotalPages are lower bounds: TotalPages > page means more entries exist.
func (s *Service) GetEntries(search, severity, timeWindow string, page, pageSize int) Page {
	page, pageSize = normalizePage(page, pageSize)

	var entries []models.LogEntry
	files, err := s.Files()
	if err != nil {
		slog.Warn("failed to scan logs directory", "dir", s.dir, "err", err)
	} else {
		entries = s.pipeline.Run(files, ingestion.Filter{
			Search:     search,
			Severity:   severity,
			TimeWindow: timeWindow,
			Limit:      page*pageSize + pageSize,
		})
	}

	return paginate(entries, page, pageSize)
}

// ExportCSV renders up to ExportLimit matching entries as CSV.
// The result always starts with CSVHeader; failures yield the header only.
func (s *Service) ExportCSV(search, severity, timeWindow string) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteString("\n")

	files, err := s.Files()
	if err != nil {
		slog.Error("csv export failed", "err", err)
		return b.String()
	}

	entries := s.pipeline.Run(files, ingestion.Filter{
		Search:     search,
		Severity:   severity,
		TimeWindow: timeWindow,
		Limit:      ExportLimit,
	})
	for _, e := range entries {
		writeCSVRecord(&b, e)
	}
	return b.String()
}

// FileContent returns the last maxLines lines of the named log file that
// contain search. Names resolving outside the logs directory, files that are
// not .log or .txt, and missing files all return ErrNotFound.
func (s *Service) FileContent(name, search string, maxLines int) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	if maxLines <= 0 {
		maxLines = tail.DefaultMaxLines
	}
	content, err := s.tail.Content(path, maxLines, search)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return content, nil
}

// Preload loads metadata for every file concurrently on the pipeline's workers
func (s *Service) Preload() int {
	files, err := s.Files()
	if err != nil {
		slog.Warn("preload scan failed", "dir", s.dir, "err", err)
		return 0
	}

	s.pipeline.ForEachFile(files, func(file discovery.File) {
		s.describe(file)
	})
	slog.Info("preloaded log metadata", "files", len(files), "cached", s.cache.Len())
	return len(files)
}

// Refresh re-stats one file and updates its cache entry when it changed.
// Returns ErrNotFound when the file no longer exists.
func (s *Service) Refresh(name string) (models.LogFileDescriptor, error) {
	path, err := s.resolve(name)
	if err != nil {
		return models.LogFileDescriptor{}, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return models.LogFileDescriptor{}, ErrNotFound
	}

	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return models.LogFileDescriptor{}, ErrNotFound
	}
	return s.describe(discovery.File{Name: rel, Path: path, Info: info}), nil
}

// describe maps a file through the cache, (re)loading it when the cached
// size or modification time no longer matches
func (s *Service) describe(file discovery.File) models.LogFileDescriptor {
	size := file.Info.Size()
	modTime := file.Info.ModTime()

	meta, ok := s.cache.Get(file.Name)
	lines, counted := s.cache.LineCount(file.Name)
	if !ok || !counted || meta.Size != size || !meta.LastModified.Equal(modTime) {
		lines = s.load(file, size, modTime)
	}

	return models.LogFileDescriptor{
		Name:           file.Name,
		Path:           file.Path,
		Size:           size,
		LastModified:   modTime,
		EstimatedLines: lines,
		Format:         models.FormatLabel(file.Name),
	}
}

func (s *Service) load(file discovery.File, size int64, modTime time.Time) int64 {
	lines, _, err := s.estimator.Count(file.Path, size)
	if err != nil {
		slog.Warn("failed to count lines", "file", file.Name, "err", err)
		lines = 0
	}

	s.cache.Put(file.Name, models.FileMetadata{
		LastModified: modTime,
		Size:         size,
	}, lines)
	return lines
}

// resolve maps a log file name to a path inside the logs directory. The
// returned path keeps the name as given; symlinks along it must still
// resolve inside the directory.
func (s *Service) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" || !models.IsLogFile(name) {
		return "", ErrNotFound
	}

	path := filepath.Join(s.dir, filepath.Clean(name))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	if !discovery.Within(s.dir, path) {
		return "", ErrNotFound
	}
	return path, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func paginate(entries []models.LogEntry, page, pageSize int) Page {
	total := len(entries)
	start := clamp((page-1)*pageSize, 0, total)
	end := clamp(start+pageSize, 0, total)

	return Page{
		Entries:    append([]models.LogEntry{}, entries[start:end]...),
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writeCSVRecord(b *strings.Builder, e models.LogEntry) {
	fields := []string{
		e.Timestamp.Format(time.RFC3339),
		e.SourceIP,
		e.RuleID,
		e.Message,
		e.Severity,
		e.Action,
		e.RequestURL,
		e.LogFile,
		orNA(e.Details.PerformedBy),
		orNA(e.Details.RequestID),
		orNA(e.Details.Error),
		orNA(e.Details.URI),
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(csvEscaper.Replace(f))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// csvEscaper doubles quotes and keeps every record on one line
var csvEscaper = strings.NewReplacer(`"`, `""`, "\r\n", " ", "\n", " ", "\r", " ")

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

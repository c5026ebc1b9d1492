package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"logvault/internal/discovery"
	"logvault/internal/parser"
	"logvault/internal/textmatch"
	"logvault/pkg/models"
)

const maxLineSize = 1024 * 1024

var (
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logvault_pipeline_query_duration_seconds",
		Help:    "Time spent streaming and filtering log files for one query.",
		Buckets: prometheus.DefBuckets,
	})
	filesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logvault_pipeline_files_failed_total",
		Help: "Files skipped because they could not be read.",
	})
)

// Filter selects entries from the streamed files
type Filter struct {
	Search     string // empty = no filter
	Severity   string // "all" or empty = no filter
	TimeWindow string // 1h, 6h, 24h, all
	Limit      int    // <= 0 = unbounded
}

// Pipeline streams log files through the parser and filters on a worker pool
type Pipeline struct {
	parser      parser.Parser
	workerCount int
	stats       *Stats
	now         func() time.Time
}

// Stats tracks pipeline activity
type Stats struct {
	FilesScanned uint64
	FilesFailed  uint64
	LinesParsed  uint64
	LinesSkipped uint64
}

// NewPipeline creates a pipeline. workerCount <= 0 uses one worker per CPU.
func NewPipeline(p parser.Parser, workerCount int) *Pipeline {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Pipeline{
		parser:      p,
		workerCount: workerCount,
		stats:       &Stats{},
		now:         time.Now,
	}
}

// Run streams every file through the filter and returns matches sorted by
// timestamp descending, truncated to filter.Limit.
//
// Each file is sorted and capped at Limit before merging. This bounds memory
// per file; the global top-Limit is still exact because an entry missing from
// its file's top-Limit cannot be in the global top-Limit.
func (pl *Pipeline) Run(files []discovery.File, filter Filter) []models.LogEntry {
	start := time.Now()
	defer func() { queryDuration.Observe(time.Since(start).Seconds()) }()

	now := pl.now()
	var (
		mu      sync.Mutex
		results []models.LogEntry
	)

	pl.ForEachFile(files, func(file discovery.File) {
		entries, err := pl.processFile(file, filter, now)
		if err != nil {
			atomic.AddUint64(&pl.stats.FilesFailed, 1)
			filesFailedTotal.Inc()
			slog.Warn("skipping unreadable log file", "file", file.Name, "err", err)
			return
		}
		atomic.AddUint64(&pl.stats.FilesScanned, 1)
		if len(entries) == 0 {
			return
		}

		mu.Lock()
		results = append(results, entries...)
		mu.Unlock()
	})

	// Merge step runs after every worker is done.
	SortEntries(results)
	return truncate(results, filter.Limit)
}

// ForEachFile runs fn once per file on the worker pool and waits for all of them
func (pl *Pipeline) ForEachFile(files []discovery.File, fn func(discovery.File)) {
	if len(files) == 0 {
		return
	}

	workers := pl.workerCount
	if workers > len(files) {
		workers = len(files)
	}

	fileChannel := make(chan discovery.File)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileChannel {
				fn(file)
			}
		}()
	}

	for _, file := range files {
		fileChannel <- file
	}
	close(fileChannel)
	wg.Wait()
}

// processFile streams one file sequentially, keeping at most limit matches
func (pl *Pipeline) processFile(file discovery.File, filter Filter, now time.Time) ([]models.LogEntry, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer f.Close()

	matcher := textmatch.New(filter.Search)
	severity := strings.TrimSpace(filter.Severity)
	if severity == models.SeverityAll {
		severity = ""
	}
	window, windowed := models.WindowDuration(filter.TimeWindow)

	reader := bufio.NewReaderSize(f, 64*1024)

	var (
		matches []models.LogEntry
		seq     int64
		parsed  uint64
		skipped uint64
		readErr error
	)
	for {
		raw, tooLong, err := readLine(reader, maxLineSize)
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
		if tooLong {
			seq++
			skipped++
			continue
		}

		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		seq++

		entry, ok := pl.parser.Parse(line, file.Name, file.Path, seq)
		if !ok {
			skipped++
			continue
		}
		parsed++

		if !matchEntry(entry, severity, matcher, window, windowed, now) {
			continue
		}
		matches = append(matches, entry)

		// Keep the buffer bounded while streaming.
		if filter.Limit > 0 && len(matches) >= 2*filter.Limit {
			SortEntries(matches)
			matches = truncate(matches, filter.Limit)
		}
	}

	atomic.AddUint64(&pl.stats.LinesParsed, parsed)
	atomic.AddUint64(&pl.stats.LinesSkipped, skipped)

	if readErr != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, readErr)
	}

	SortEntries(matches)
	return truncate(matches, filter.Limit), nil
}

// readLine returns the next line without its terminator. A line longer than
// max is consumed to its end and reported as tooLong with no content.
func readLine(r *bufio.Reader, max int) (line []byte, tooLong bool, err error) {
	var started bool
	for {
		frag, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && started {
				return line, tooLong, nil
			}
			return nil, false, err
		}
		started = true

		if !tooLong {
			if len(line)+len(frag) > max {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// matchEntry applies severity, then search, then time window
func matchEntry(entry models.LogEntry, severity string, matcher *textmatch.Matcher, window time.Duration, windowed bool, now time.Time) bool {
	if severity != "" && entry.Severity != severity {
		return false
	}

	if !matcher.MatchAny(
		entry.SourceIP,
		entry.RuleID,
		entry.Message,
		entry.RequestURL,
		entry.LogFile,
		entry.Details.PerformedBy,
		entry.Details.RequestID,
		entry.Details.Error,
		entry.Details.URI,
	) {
		return false
	}

	if windowed && now.Sub(entry.Timestamp) > window {
		return false
	}
	return true
}

// SortEntries orders entries by timestamp descending. Ties break by log file
// ascending, then sequence id descending, so repeated queries page stably.
func SortEntries(entries []models.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.LogFile != b.LogFile {
			return a.LogFile < b.LogFile
		}
		return a.ID > b.ID
	})
}

func truncate(entries []models.LogEntry, limit int) []models.LogEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// GetStats returns current pipeline statistics
func (pl *Pipeline) GetStats() Stats {
	return Stats{
		FilesScanned: atomic.LoadUint64(&pl.stats.FilesScanned),
		FilesFailed:  atomic.LoadUint64(&pl.stats.FilesFailed),
		LinesParsed:  atomic.LoadUint64(&pl.stats.LinesParsed),
		LinesSkipped: atomic.LoadUint64(&pl.stats.LinesSkipped),
	}
}

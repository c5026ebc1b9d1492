package linecount

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultExactLimit is the largest file size counted exactly
	DefaultExactLimit = 100 * 1024 * 1024

	sampleWindow      = 1024 // bytes per sample, so lines per sample ~ lines per KB
	maxLinesPerSample = 1000
	readBufSize       = 64 * 1024
)

// Estimator counts lines in a file: exactly for small files, by sampling
// for large ones. Sampled counts are approximate.
type Estimator struct {
	ExactLimit int64
}

// New creates an Estimator with the default exact-count limit
func New() *Estimator {
	return &Estimator{ExactLimit: DefaultExactLimit}
}

// Count returns the line count of the file at path. exact reports whether the
// value came from a full scan.
func (e *Estimator) Count(path string, size int64) (lines int64, exact bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	limit := e.ExactLimit
	if limit <= 0 {
		limit = DefaultExactLimit
	}

	if size <= limit {
		lines, err = countExact(f)
		return lines, true, err
	}

	lines, err = estimate(f, size)
	return lines, false, err
}

// countExact scans the whole reader. An unterminated final line counts.
func countExact(r io.Reader) (int64, error) {
	buf := make([]byte, readBufSize)
	var count int64
	var last byte
	var seen bool

	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
			seen = true
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count lines: %w", err)
		}
	}

	if seen && last != '\n' {
		count++
	}
	return count, nil
}

// estimate samples the start, middle and end of the file.
// estimate = average lines per 1 KB sample * size in KB.
func estimate(r io.ReaderAt, size int64) (int64, error) {
	offsets := []int64{0, size / 2, size - sampleWindow}
	buf := make([]byte, sampleWindow)

	var total, samples int64
	for _, off := range offsets {
		if off < 0 {
			off = 0
		}
		n, err := r.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("sample at %d: %w", off, err)
		}
		count := int64(bytes.Count(buf[:n], []byte{'\n'}))
		if count > maxLinesPerSample {
			count = maxLinesPerSample
		}
		total += count
		samples++
	}

	sizeKB := (size + 1023) / 1024
	avg := float64(total) / float64(samples)
	return int64(avg*float64(sizeKB) + 0.5), nil
}

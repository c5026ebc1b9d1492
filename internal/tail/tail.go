package tail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"logvault/internal/textmatch"
)

const (
	// DefaultWholeFileLimit is the largest file read in one piece
	DefaultWholeFileLimit = 10 * 1024 * 1024
	// DefaultChunkSize is the backward read size for large files
	DefaultChunkSize = 8 * 1024
	// DefaultMaxLines caps the number of matching lines returned
	DefaultMaxLines = 1000
)

// Reader extracts the last matching lines of a file for raw viewing
type Reader struct {
	WholeFileLimit int64
	ChunkSize      int
}

// NewReader creates a Reader with the default limits
func NewReader() *Reader {
	return &Reader{
		WholeFileLimit: DefaultWholeFileLimit,
		ChunkSize:      DefaultChunkSize,
	}
}

// Lines returns up to maxLines lines of the file at path that contain search
// (case-insensitive), in file order, ending at the last matching line.
// A missing file returns nil, nil.
func (r *Reader) Lines(path string, maxLines int, search string) ([]string, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	matcher := textmatch.New(search)
	limit := r.WholeFileLimit
	if limit <= 0 {
		limit = DefaultWholeFileLimit
	}
	if info.Size() <= limit {
		return readWhole(f, maxLines, matcher)
	}

	chunk := r.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return readBackward(f, info.Size(), chunk, maxLines, matcher)
}

// Content returns Lines joined with newlines
func (r *Reader) Content(path string, maxLines int, search string) (string, error) {
	lines, err := r.Lines(path, maxLines, search)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// readWhole loads a small file in one go and keeps the last maxLines matches
func readWhole(f io.Reader, maxLines int, matcher *textmatch.Matcher) ([]string, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	text := strings.TrimSuffix(string(data), "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if matcher.Match(line) {
			lines = append(lines, line)
		}
	}

	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}

// readBackward scans the file from the end in fixed-size chunks.
//
// acc holds the bytes of the line in progress in reverse order. Bytes are
// carried across chunk boundaries, so a line is only decoded once complete.
func readBackward(f io.ReaderAt, size int64, chunkSize, maxLines int, matcher *textmatch.Matcher) ([]string, error) {
	buf := make([]byte, chunkSize)
	pos := size
	atEnd := true // next byte examined is the file's last byte
	var (
		acc    []byte
		inLine bool
		capped bool
		lines  []string
	)

	emit := func() {
		line := reversed(acc)
		acc = acc[:0]
		inLine = false
		line = strings.TrimSuffix(line, "\r")
		if matcher.Match(line) {
			lines = append(lines, line)
		}
	}

	for pos > 0 && !capped {
		n := int64(chunkSize)
		if pos < n {
			n = pos
		}
		pos -= n

		if _, err := f.ReadAt(buf[:n], pos); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read log at %d: %w", pos, err)
		}

		for i := int(n) - 1; i >= 0; i-- {
			b := buf[i]
			if b == '\n' {
				if atEnd {
					// Trailing newline terminates the last line; no empty line follows it.
					atEnd = false
					continue
				}
				emit()
				if len(lines) >= maxLines {
					capped = true
					break
				}
				continue
			}
			atEnd = false
			acc = append(acc, b)
			inLine = true
		}
	}

	// The first line of the file has no newline before it.
	if !capped && pos == 0 && (inLine || size > 0 && !atEnd) {
		emit()
	}

	// Collected newest first; restore file order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

func reversed(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return string(out)
}

package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"logvault/pkg/models"
)

// DefaultPattern matches log-like files directly under the logs directory
const DefaultPattern = "*.{log,txt}"

// File is a discovered log-like file
type File struct {
	Name string // path relative to the logs directory
	Path string // absolute path
	Info fs.FileInfo
}

// Scan returns the regular files under dir matching pattern, sorted by name.
// A missing directory yields an empty result, not an error.
func Scan(dir, pattern string) ([]File, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat logs dir: %w", err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve logs dir: %w", err)
	}

	fsys := os.DirFS(abs)
	matches, err := doublestar.Glob(fsys, foldPattern(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		if !models.IsLogFile(m) {
			continue
		}
		path := filepath.Join(abs, filepath.FromSlash(m))
		if !contained(realRoot, path) {
			// Symlink leading out of the logs directory.
			continue
		}
		fi, err := fs.Stat(fsys, m)
		if err != nil || !fi.Mode().IsRegular() {
			// Removed between glob and stat, or a special file.
			continue
		}
		files = append(files, File{
			Name: filepath.FromSlash(m),
			Path: path,
			Info: fi,
		})
	}
	return files, nil
}

// Match reports whether name, relative to the logs directory, is a log-like
// file selected by pattern. Matching ignores case.
func Match(pattern, name string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !models.IsLogFile(name) {
		return false
	}
	ok, err := doublestar.Match(foldPattern(pattern), filepath.ToSlash(name))
	return err == nil && ok
}

// Within reports whether path, once symlinks are resolved, lies strictly
// inside root. Paths that cannot be resolved are not within root.
func Within(root, path string) bool {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	return contained(realRoot, path)
}

func contained(realRoot, path string) bool {
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// foldPattern rewrites ASCII letters outside character classes as [xX]
// classes so the glob matches regardless of case
func foldPattern(pattern string) string {
	var b strings.Builder
	inClass, escaped := false, false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case inClass:
			if r == ']' {
				inClass = false
			}
			b.WriteRune(r)
		case r == '[':
			inClass = true
			b.WriteRune(r)
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			lower, upper := unicode.ToLower(r), unicode.ToUpper(r)
			b.WriteByte('[')
			b.WriteRune(lower)
			b.WriteRune(upper)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

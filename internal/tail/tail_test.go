package tail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"logvault/internal/textmatch"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}
	return path
}

func numbered(n int) (string, []string) {
	var b strings.Builder
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = fmt.Sprintf("line-%06d", i)
		b.WriteString(lines[i] + "\n")
	}
	return b.String(), lines
}

// backwardReader forces the chunked path with a tiny chunk size
func backwardReader(chunk int) *Reader {
	return &Reader{WholeFileLimit: 1, ChunkSize: chunk}
}

func TestTailReturnsLastLinesInOrder(t *testing.T) {
	content, all := numbered(500)
	path := writeLog(t, content)

	readers := map[string]*Reader{
		"whole file":       NewReader(),
		"backward 8KB":     backwardReader(DefaultChunkSize),
		"backward 7 bytes": backwardReader(7),
	}

	for name, r := range readers {
		for _, k := range []int{1, 10, 123, 499} {
			t.Run(fmt.Sprintf("%s k=%d", name, k), func(t *testing.T) {
				got, err := r.Lines(path, k, "")
				if err != nil {
					t.Fatalf("Lines() error = %v", err)
				}
				if want := all[len(all)-k:]; !reflect.DeepEqual(got, want) {
					t.Errorf("Lines() = %v..., want %v...", head(got), head(want))
				}
			})
		}
	}
}

func TestTailPathsAgree(t *testing.T) {
	contents := map[string]string{
		"unterminated":  "alpha\nbeta\ngamma",
		"terminated":    "alpha\nbeta\ngamma\n",
		"blank lines":   "alpha\n\n\nbeta\n",
		"leading blank": "\nalpha\n",
		"only newline":  "\n",
		"crlf":          "alpha\r\nbeta\r\n",
		"single":        "solo",
		"multibyte":     "héllo wörld\n日本語のログ\nÉRROR здесь\n",
		"long line":     strings.Repeat("z", 50) + "\nshort\n",
	}

	for name, content := range contents {
		t.Run(name, func(t *testing.T) {
			path := writeLog(t, content)
			whole, err := NewReader().Lines(path, 100, "")
			if err != nil {
				t.Fatal(err)
			}
			for _, chunk := range []int{1, 2, 3, 5, 64} {
				back := backward(t, path, chunk, 100)
				if !reflect.DeepEqual(whole, back) {
					t.Errorf("chunk %d: backward = %q, whole = %q", chunk, back, whole)
				}
			}
		})
	}
}

func TestTailUnterminatedLastLine(t *testing.T) {
	path := writeLog(t, "first\nsecond\npartial")

	got, err := backwardReader(4).Lines(path, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"second", "partial"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}

func TestTailSearchCapsMatches(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		if i%10 == 0 {
			fmt.Fprintf(&b, "%03d ERROR boom\n", i)
		} else {
			fmt.Fprintf(&b, "%03d info ok\n", i)
		}
	}
	path := writeLog(t, b.String())

	for name, r := range map[string]*Reader{"whole": NewReader(), "backward": backwardReader(16)} {
		t.Run(name, func(t *testing.T) {
			got, err := r.Lines(path, 3, "error")
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"170 ERROR boom", "180 ERROR boom", "190 ERROR boom"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Lines() = %q, want %q", got, want)
			}
		})
	}
}

func TestTailMultibyteAcrossChunks(t *testing.T) {
	line := strings.Repeat("ü", 40) // 80 bytes, split by every odd chunk size
	path := writeLog(t, line+"\n"+line+"\n")

	got, err := backwardReader(3).Lines(path, 10, "Ü")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != line || got[1] != line {
		t.Errorf("multibyte lines corrupted: %q", got)
	}
}

func TestTailContent(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	got, err := NewReader().Content(path, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "b\nc" {
		t.Errorf("Content() = %q, want %q", got, "b\nc")
	}
}

func TestTailMissingAndEmpty(t *testing.T) {
	got, err := NewReader().Lines(filepath.Join(t.TempDir(), "missing.log"), 10, "")
	if err != nil || got != nil {
		t.Errorf("missing file: Lines() = (%v, %v), want (nil, nil)", got, err)
	}

	path := writeLog(t, "")
	for name, r := range map[string]*Reader{"whole": NewReader(), "backward": backwardReader(4)} {
		got, err := r.Lines(path, 10, "")
		if err != nil || len(got) != 0 {
			t.Errorf("%s empty file: Lines() = (%v, %v), want no lines", name, got, err)
		}
	}
}

// backward runs the chunked scan directly, whatever the file size
func backward(t *testing.T, path string, chunk, maxLines int) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	lines, err := readBackward(f, info.Size(), chunk, maxLines, textmatch.New(""))
	if err != nil {
		t.Fatal(err)
	}
	return lines
}

func head(lines []string) []string {
	if len(lines) > 3 {
		return lines[:3]
	}
	return lines
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"logvault/internal/query"
	"logvault/internal/stats"
	"logvault/pkg/models"
)

// Renderer prints query results for the CLI
type Renderer interface {
	Files(files []models.LogFileDescriptor) error
	Entries(page query.Page) error
	Lines(lines []string) error
	Summary(summary stats.Summary) error
}

// New returns the JSON renderer for format "json" and the text renderer otherwise
func New(format string, w io.Writer) Renderer {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return NewJSONRenderer(w)
	}
	return NewTextRenderer(w)
}

var (
	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleCritical = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true)
	styleFile   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

// TextRenderer prints severity-coloured tables for terminals
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer creates a TextRenderer writing to w
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Files(files []models.LogFileDescriptor) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(r.w, "no log files found")
		return err
	}
	r.println(styleHeader.Render(fmt.Sprintf("%-40s %-9s %12s %12s  %s", "NAME", "FORMAT", "SIZE", "LINES", "MODIFIED")))
	for _, f := range files {
		r.println(fmt.Sprintf("%-40s %-9s %12d %12d  %s",
			f.Name, f.Format, f.Size, f.EstimatedLines, f.LastModified.Format("2006-01-02 15:04:05")))
	}
	return nil
}

func (r *TextRenderer) Entries(page query.Page) error {
	for _, e := range page.Entries {
		r.println(fmt.Sprintf("%s %s %s %s %s",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			severityTag(e.Severity),
			styleFile.Render(e.LogFile),
			e.SourceIP,
			e.Message))
	}
	_, err := fmt.Fprintf(r.w, "page %d/%d, %d entries\n", page.Page, page.TotalPages, page.TotalItems)
	return err
}

func (r *TextRenderer) Lines(lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) Summary(s stats.Summary) error {
	r.println(styleHeader.Render("Files"))
	r.println(fmt.Sprintf("  total %d, estimated lines %d", s.TotalFiles, s.TotalEstimatedLines))
	r.println(fmt.Sprintf("  recent lines: last hour %d, last 24h %d", s.RecentEntries.LastHour, s.RecentEntries.Last24Hours))
	r.distribution("File types", s.FileTypeDistribution, nil)
	r.distribution("Extensions", s.ExtensionDistribution, nil)
	r.distribution("Severity (24h sample)", s.SeverityDistribution, severityTag)
	r.distribution("Actions (24h sample)", s.ActionDistribution, nil)
	if s.Error != "" {
		r.println(styleHigh.Render("error: " + s.Error))
	}
	_, err := fmt.Fprintf(r.w, "generated %s\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	return err
}

func (r *TextRenderer) distribution(title string, counts map[string]int, label func(string) string) {
	r.println(styleHeader.Render(title))
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := fmt.Sprintf("%-14s", k)
		if label != nil {
			name = label(k)
		}
		r.println(fmt.Sprintf("  %s %d", name, counts[k]))
	}
}

func (r *TextRenderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

func severityTag(severity string) string {
	padded := fmt.Sprintf("%-8s", severity)
	switch severity {
	case models.SeverityCritical:
		return styleCritical.Render(padded)
	case models.SeverityHigh, models.SeverityError:
		return styleHigh.Render(padded)
	case models.SeverityMedium, models.SeverityWarning:
		return styleMedium.Render(padded)
	default:
		return styleLow.Render(padded)
	}
}

// JSONRenderer prints each result as one JSON document for piping
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer creates a JSONRenderer writing to w
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Files(files []models.LogFileDescriptor) error {
	if files == nil {
		files = []models.LogFileDescriptor{}
	}
	return r.enc.Encode(files)
}

func (r *JSONRenderer) Entries(page query.Page) error {
	if page.Entries == nil {
		page.Entries = []models.LogEntry{}
	}
	return r.enc.Encode(page)
}

func (r *JSONRenderer) Lines(lines []string) error {
	if lines == nil {
		lines = []string{}
	}
	return r.enc.Encode(lines)
}

func (r *JSONRenderer) Summary(s stats.Summary) error {
	return r.enc.Encode(s)
}

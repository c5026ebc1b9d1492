package parser

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"logvault/pkg/models"
)

// Parser converts a raw log line into a structured LogEntry.
// Implementations must never panic on malformed input; ok=false means skip the line.
type Parser interface {
	Parse(raw, fileName, filePath string, seq int64) (entry models.LogEntry, ok bool)
}

// ---------------------------------------------------------------------------
// JSON Parser
// ---------------------------------------------------------------------------

// JSONParser handles one JSON object per line.
// Recognizes camelCase and snake_case field names.
type JSONParser struct{}

// NewJSONParser creates a JSONParser
func NewJSONParser() *JSONParser { return &JSONParser{} }

// Parse decodes one JSON object. Lines without a usable timestamp are rejected.
func (p *JSONParser) Parse(raw, fileName, _ string, seq int64) (models.LogEntry, bool) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return models.LogEntry{}, false
	}

	ts, ok := parseTimestamp(strField(data, "timestamp", "time", "ts", "@timestamp"))
	if !ok {
		return models.LogEntry{}, false
	}

	entry := models.LogEntry{
		ID:         seq,
		Timestamp:  ts,
		SourceIP:   strField(data, "sourceIp", "source_ip", "ip", "clientIp"),
		RuleID:     strField(data, "ruleId", "rule_id", "rule"),
		Message:    strField(data, "message", "msg"),
		Severity:   normalizeSeverity(strField(data, "severity", "level")),
		Action:     strField(data, "action"),
		RequestURL: strField(data, "requestUrl", "request_url", "url"),
		LogFile:    fileName,
	}

	// Nested details block, with top-level fallbacks.
	details, _ := data["details"].(map[string]interface{})
	if details == nil {
		details = data
	}
	entry.Details = models.EntryDetails{
		PerformedBy: strField(details, "performedBy", "performed_by", "user"),
		RequestID:   strField(details, "requestId", "request_id"),
		Error:       strField(details, "error", "err"),
		URI:         strField(details, "uri", "path"),
	}

	return entry, true
}

// ---------------------------------------------------------------------------
// CSV Parser
// ---------------------------------------------------------------------------

// CSVParser handles comma-separated lines in the order:
// timestamp,sourceIp,ruleId,message,severity,action,requestUrl[,performedBy,requestId,error,uri]
type CSVParser struct{}

// NewCSVParser creates a CSVParser
func NewCSVParser() *CSVParser { return &CSVParser{} }

const minCSVFields = 7

// Parse splits one comma-separated record. Short records are rejected.
func (p *CSVParser) Parse(raw, fileName, _ string, seq int64) (models.LogEntry, bool) {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	fields, err := r.Read()
	if err != nil || len(fields) < minCSVFields {
		return models.LogEntry{}, false
	}

	ts, ok := parseTimestamp(fields[0])
	if !ok {
		// Header rows and garbage land here.
		return models.LogEntry{}, false
	}

	entry := models.LogEntry{
		ID:         seq,
		Timestamp:  ts,
		SourceIP:   fields[1],
		RuleID:     fields[2],
		Message:    fields[3],
		Severity:   normalizeSeverity(fields[4]),
		Action:     fields[5],
		RequestURL: fields[6],
		LogFile:    fileName,
	}

	optional := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	entry.Details = models.EntryDetails{
		PerformedBy: optional(7),
		RequestID:   optional(8),
		Error:       optional(9),
		URI:         optional(10),
	}

	return entry, true
}

// ---------------------------------------------------------------------------
// Auto Parser (format auto-detection)
// ---------------------------------------------------------------------------

// AutoParser tries JSON for lines starting with '{' and CSV otherwise.
type AutoParser struct {
	jsonParser *JSONParser
	csvParser  *CSVParser
}

// NewAutoParser creates an AutoParser
func NewAutoParser() *AutoParser {
	return &AutoParser{
		jsonParser: NewJSONParser(),
		csvParser:  NewCSVParser(),
	}
}

// Parse picks the JSON or CSV parser from the first byte of the line
func (p *AutoParser) Parse(raw, fileName, filePath string, seq int64) (models.LogEntry, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.LogEntry{}, false
	}
	if trimmed[0] == '{' {
		return p.jsonParser.Parse(trimmed, fileName, filePath, seq)
	}
	return p.csvParser.Parse(trimmed, fileName, filePath, seq)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// parseTimestamp accepts the layouts above or epoch milliseconds.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// normalizeSeverity lower-cases severities and folds common aliases.
func normalizeSeverity(s string) string {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "warn":
		return models.SeverityWarning
	case "err", "severe":
		return models.SeverityError
	case "crit", "fatal":
		return models.SeverityCritical
	default:
		return v
	}
}

// strField returns the first non-empty value from a map.
func strField(data map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case float64:
			s = strconv.FormatFloat(tv, 'f', -1, 64)
		default:
			s = fmt.Sprintf("%v", tv)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

package models

import "time"

// LogEntry represents a single parsed log line
type LogEntry struct {
	ID         int64        `json:"id"` // per-file sequence, starts at 1
	Timestamp  time.Time    `json:"timestamp"`
	SourceIP   string       `json:"sourceIp"`
	RuleID     string       `json:"ruleId"`
	Message    string       `json:"message"`
	Severity   string       `json:"severity"`
	Action     string       `json:"action"`
	RequestURL string       `json:"requestUrl"`
	LogFile    string       `json:"logFile"`
	Details    EntryDetails `json:"details"`
}

// EntryDetails holds the nested detail block of an entry
type EntryDetails struct {
	PerformedBy string `json:"performedBy,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
	Error       string `json:"error,omitempty"`
	URI         string `json:"uri,omitempty"`
}

// Severity constants produced by the default parser
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"

	// SeverityAll disables severity filtering
	SeverityAll = "all"
)

// Time window tokens accepted by queries
const (
	WindowHour     = "1h"
	WindowSixHours = "6h"
	WindowDay      = "24h"
	WindowAll      = "all"
)

// WindowDuration maps a time window token to its duration.
// Returns false for "all" and unknown tokens, which disable the filter.
func WindowDuration(token string) (time.Duration, bool) {
	switch token {
	case WindowHour:
		return time.Hour, true
	case WindowSixHours:
		return 6 * time.Hour, true
	case WindowDay:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

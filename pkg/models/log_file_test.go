package models

import (
	"testing"
	"time"
)

func TestIsLogFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"app.log", true},
		{"app.txt", true},
		{"APP.LOG", true},
		{"app.json", false},
		{"app.log.gz", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := IsLogFile(tt.name); got != tt.want {
			t.Errorf("IsLogFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"svc-severe-20240102.log", FormatJSON},
		{"svc-info-20240101.txt", FormatCSV},
		{"svc-combined-logs-20240103.txt", FormatCombined},
		{"svc-combined-logs-20240103.log", FormatCombined},
		{"other.dat", FormatText},
	}

	for _, tt := range tests {
		if got := FormatLabel(tt.name); got != tt.want {
			t.Errorf("FormatLabel(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWindowDuration(t *testing.T) {
	tests := []struct {
		token  string
		want   time.Duration
		wantOK bool
	}{
		{WindowHour, time.Hour, true},
		{WindowSixHours, 6 * time.Hour, true},
		{WindowDay, 24 * time.Hour, true},
		{WindowAll, 0, false},
		{"", 0, false},
		{"7d", 0, false},
	}

	for _, tt := range tests {
		got, ok := WindowDuration(tt.token)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("WindowDuration(%q) = (%v, %v), want (%v, %v)", tt.token, got, ok, tt.want, tt.wantOK)
		}
	}
}

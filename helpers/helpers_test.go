package helpers

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds", input: "30s", expected: 30 * time.Second},
		{name: "minutes", input: "5m", expected: 5 * time.Minute},
		{name: "days suffix", input: "2d", expected: 48 * time.Hour},
		{name: "fractional days", input: "0.5d", expected: 12 * time.Hour},
		{name: "padded", input: " 1h ", expected: time.Hour},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
		{name: "bad day count", input: "xd", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("got %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "plain", input: "Archive", expected: "Archive"},
		{name: "inbox case folds", input: "inbox", expected: "INBOX"},
		{name: "inbox child", input: "inbox/Receipts", expected: "INBOX/Receipts"},
		{name: "trailing delimiter", input: "Archive/2024/", expected: "Archive/2024"},
		{name: "repeated delimiters", input: "Archive//2024", expected: "Archive/2024"},
		{name: "padded", input: "  Sent ", expected: "Sent"},
		{name: "empty", input: "", wantErr: true},
		{name: "only delimiters", input: "///", wantErr: true},
		{name: "nul byte", input: "bad\x00name", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeScope(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("got %q, want %q", got, tc.expected)
			}
		})
	}
}

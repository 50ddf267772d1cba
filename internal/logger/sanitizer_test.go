package logger

import (
	"bytes"
	"strings"
	"testing"
)

// TestSanitizeMessages verifies credential patterns are masked in
// message text
func TestSanitizeMessages(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "access token in query",
			input: "request failed: token=sl.ABCdef123",
			want:  "request failed: token=***",
		},
		{
			name:  "bearer header",
			input: "Authorization: Bearer sl.xyz789",
			want:  "Authorization: bearer ***",
		},
		{
			name:  "app secret",
			input: "exchanging app_secret=s3cr3t for token",
			want:  "exchanging app_secret=*** for token",
		},
		{
			name:  "authorization code",
			input: "callback received code=AUTHCODE42",
			want:  "callback received code=***",
		},
		{
			name:  "shared link query params",
			input: "listing https://www.dropbox.com/sh/abc/def?rlkey=zzz&dl=0",
			want:  "listing https://www.dropbox.com/sh/abc/def?***",
		},
		{
			name:  "home directory",
			input: "saving to /home/alice/downloads",
			want:  "saving to /home/***/downloads",
		},
		{
			name:  "clean message untouched",
			input: "downloaded 3 files",
			want:  "downloaded 3 files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeArgs verifies sensitive keys get masked values
func TestSanitizeArgs(t *testing.T) {
	s := NewSanitizer()

	args := s.SanitizeArgs([]any{
		"access_token", "sl.verylongtokenvalue",
		"file", "report.pdf",
		"count", 3,
	})

	if args[1] == "sl.verylongtokenvalue" {
		t.Errorf("token value not masked: %v", args[1])
	}
	if args[3] != "report.pdf" {
		t.Errorf("plain value altered: %v", args[3])
	}
	if args[5] != 3 {
		t.Errorf("non-string value altered: %v", args[5])
	}
}

// TestSanitizeArgsPassesURLValues verifies non-sensitive string values
// still go through the message patterns
func TestSanitizeArgsPassesURLValues(t *testing.T) {
	s := NewSanitizer()

	args := s.SanitizeArgs([]any{
		"link", "https://www.dropbox.com/sh/abc/def?rlkey=zzz",
	})

	if got := args[1].(string); !strings.HasSuffix(got, "?***") {
		t.Errorf("shared link query not scrubbed: %q", got)
	}
}

// TestMaskValuePreservesHints verifies masking keeps only edge
// characters for long values
func TestMaskValuePreservesHints(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"ab", "***"},
		{"shortpw", "s***"},
		{"averylongsecretvalue", "a***e"},
	}

	for _, tt := range tests {
		if got := s.maskValue(tt.input); got != tt.want {
			t.Errorf("maskValue(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestSlogLoggerSanitizesOutput verifies end to end that credentials
// never reach the writer
func TestSlogLoggerSanitizesOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewSlogLogger(Config{Level: LevelDebug, Writer: &buf})
	if err != nil {
		t.Fatalf("NewSlogLogger failed: %v", err)
	}
	defer l.Shutdown()

	l.Info("refreshing token=sl.SECRETVALUE", "refresh_token", "rt-SECRET")

	out := buf.String()
	if strings.Contains(out, "SECRET") {
		t.Errorf("credential leaked into log output: %s", out)
	}
	if !strings.Contains(out, "token=***") {
		t.Errorf("message pattern not applied: %s", out)
	}
}

// TestGlobalLoggerLifecycle verifies Init/Get/Shutdown behavior
func TestGlobalLoggerLifecycle(t *testing.T) {
	// Before Init, Get must return a usable null logger
	if _, ok := Get().(*NullLogger); !ok {
		t.Fatal("expected NullLogger before Init")
	}

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelInfo, Writer: &buf}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := Init(Config{Writer: &buf}); err == nil {
		t.Error("second Init must fail")
	}

	Get().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("log output missing: %s", buf.String())
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if _, ok := Get().(*NullLogger); !ok {
		t.Error("expected NullLogger after Shutdown")
	}
}

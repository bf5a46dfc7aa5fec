package main

import (
	"bytes"
	"errors"
	"syscall"
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-05-01T00:00:00.000Z", now)
	if err != nil {
		t.Fatalf("parseSince() failed: %v", err)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseSince(ISO) = %v, want %v", got, want)
	}

	got, err = parseSince("yesterday", now)
	if err != nil {
		t.Fatalf("parseSince(yesterday) failed: %v", err)
	}
	if !got.Before(now) || got.Before(now.Add(-48*time.Hour)) {
		t.Errorf("parseSince(yesterday) = %v", got)
	}

	if _, err := parseSince("no date here", now); err == nil {
		t.Error("parseSince() should reject text without a date")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"export"}, {"import"}, {"styles"}, {"status"},
		{"clients", "list"}, {"clients", "delete"},
		{"cache", "status"}, {"cache", "install"}, {"cache", "purge"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write(p []byte) (int, error) { return 0, f.err }

func TestWriteBackup(t *testing.T) {
	var buf bytes.Buffer
	if err := writeBackup(&buf, []byte(`{"styles":[]}`)); err != nil {
		t.Fatalf("writeBackup() failed: %v", err)
	}
	if buf.String() != `{"styles":[]}` {
		t.Errorf("wrote %q", buf.String())
	}

	err := writeBackup(failingWriter{err: syscall.EPIPE}, []byte("{}"))
	if !errors.Is(err, syscall.EPIPE) {
		t.Errorf("writeBackup(closed pipe) error = %v, want EPIPE", err)
	}
}

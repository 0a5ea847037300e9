package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/openpai/paifs/pkg/vfs"
)

func runWatcher(events []vfs.TransferEvent) string {
	var buf bytes.Buffer
	ch := make(chan vfs.TransferEvent, len(events)+1)
	done := make(chan struct{})
	go watchProgress(&buf, ch, done)

	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	<-done
	return buf.String()
}

func TestWatchProgress_SilentWithoutEvents(t *testing.T) {
	if out := runWatcher(nil); out != "" {
		t.Errorf("watchProgress wrote %q with no events", out)
	}
}

func TestWatchProgress_SilentWithoutByteTotals(t *testing.T) {
	out := runWatcher([]vfs.TransferEvent{
		{TransferID: "t1", Operation: "copy", Path: "/a"},
	})
	if out != "" {
		t.Errorf("watchProgress wrote %q for events without totals", out)
	}
}

func TestWatchProgress_NewlineTerminatesProgress(t *testing.T) {
	out := runWatcher([]vfs.TransferEvent{
		{TransferID: "t1", Operation: "create", Path: "/a/f.txt", BytesTotal: 10},
		{TransferID: "t1", Operation: "create", Path: "/a/f.txt", BytesDone: 10, BytesTotal: 10},
	})
	if !strings.Contains(out, "/a/f.txt: 10/10 bytes") {
		t.Errorf("watchProgress output %q missing progress line", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("watchProgress output %q not newline-terminated", out)
	}
}

func TestParseLocator(t *testing.T) {
	loc, err := parseLocator("pai://prod/user/alice/code")
	if err != nil {
		t.Fatalf("parseLocator() error = %v", err)
	}
	if loc.Authority != "prod" || loc.Path != "/user/alice/code" {
		t.Errorf("parseLocator() = %+v", loc)
	}

	for _, bad := range []string{"/local/path", "hdfs://c/p", "pai:///no-authority"} {
		if _, err := parseLocator(bad); err == nil {
			t.Errorf("parseLocator(%q) succeeded, want error", bad)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{vfs.ErrNotFound, 2},
		{vfs.ErrAccessDenied, 3},
		{vfs.ErrTransport, 1},
		{errors.New("anything"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

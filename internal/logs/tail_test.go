package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"watchlist/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestTailAppliesFilterBeforeLimit(t *testing.T) {
	path := writeLog(t,
		`{"ts":"2026-01-01T00:00:00Z","level":"warn","msg":"provider lookup failed","component":"availability","correlation_id":"req-1"}`+"\n"+
			"2026-01-01 00:00:01 INFO availability: availability batch resolved unique=2 correlation_id=req-2\n"+
			"2026-01-01 00:00:02 DEBUG tmdb: title resolved correlation_id=req-2\n"+
			"2026-01-01 00:00:03 ERROR availability: read failed correlation_id=req-2\n")

	cases := []struct {
		name   string
		filter logs.Filter
		want   int
	}{
		{"none", logs.Filter{}, 4},
		{"level", logs.Filter{Level: "warn"}, 2},
		{"component", logs.Filter{Component: "tmdb"}, 1},
		{"correlation", logs.Filter{CorrelationID: "req-1"}, 1},
		{"search", logs.Filter{Search: "BATCH"}, 1},
		{"combined", logs.Filter{Component: "availability", CorrelationID: "req-2"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Filter: tc.filter})
			if err != nil {
				t.Fatalf("tail: %v", err)
			}
			if len(result.Lines) != tc.want {
				t.Fatalf("expected %d lines, got %#v", tc.want, result.Lines)
			}
		})
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected initial line, got %#v", result.Lines)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

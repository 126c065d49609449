package sysinfo

import (
	"os"
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c, err := NewCollector(Options{CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	stats, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if stats.PID != int32(os.Getpid()) {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), stats.PID)
	}
	if stats.RSSBytes == 0 || stats.RSS == "" {
		t.Fatalf("expected rss to be reported: %+v", stats)
	}
	if stats.Goroutines <= 0 {
		t.Fatalf("expected goroutine count: %+v", stats)
	}
	again, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if again != stats {
		t.Fatalf("expected cached snapshot within ttl")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Fatalf("formatBytes: %s", got)
	}
	if got := formatDurationCN(90 * time.Minute); got != "1小时 30分" {
		t.Fatalf("formatDurationCN: %s", got)
	}
	if got := clampPct(140); got != 100 {
		t.Fatalf("clampPct: %v", got)
	}
}

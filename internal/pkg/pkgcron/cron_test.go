package pkgcron

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestAddJobRejectsInvalidExpression(t *testing.T) {
	s := New()
	if err := s.AddJob("bad", "not a cron", func() {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if got := len(s.Jobs()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestAddJobReplacesByName(t *testing.T) {
	s := New()
	if err := s.AddJob("sweep", "@every 1h", func() {}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob("sweep", "@every 2h", func() {}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob("other", "@every 1h", func() {}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	names := s.Jobs()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "other" || names[1] != "sweep" {
		t.Fatalf("unexpected jobs: %v", names)
	}
	if got := len(s.c.Entries()); got != 2 {
		t.Fatalf("expected 2 cron entries, got %d", got)
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	if err := s.AddJob("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.Start()
	defer func() {
		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for job to run")
	}
}

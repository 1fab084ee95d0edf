package pkglog

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelationID(ctx); got != "[invalid_chain_id]" {
		t.Fatalf("expected invalid chain id, got %q", got)
	}

	ctx = SetCorrelationID(ctx, "cid-123")
	if got := GetCorrelationID(ctx); got != "cid-123" {
		t.Fatalf("expected cid-123, got %q", got)
	}
}

func TestJobID(t *testing.T) {
	ctx := context.Background()
	if got := GetJobID(ctx); got != "" {
		t.Fatalf("expected empty job id, got %q", got)
	}

	ctx = SetJobID(ctx, "1234")
	if got := GetJobID(ctx); got != "1234" {
		t.Fatalf("expected 1234, got %q", got)
	}
}

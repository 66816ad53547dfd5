package provider

import (
	"context"
	"testing"
	"time"
)

func TestRateLimited_ImmediateBurst(t *testing.T) {
	inner := &mockGenerator{name: "m", reply: "ok"}
	g := NewRateLimited(inner, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := g.Generate(context.Background(), "q"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if time.Since(start) > time.Second {
		t.Fatal("burst calls should not wait")
	}
	if inner.calls != 5 {
		t.Fatalf("expected 5 calls, got %d", inner.calls)
	}
}

func TestRateLimited_CancelledContext(t *testing.T) {
	inner := &mockGenerator{name: "m", reply: "ok"}
	g := NewRateLimited(inner, 1)

	if _, err := g.Generate(context.Background(), "q"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(ctx, "q"); err == nil {
		t.Fatal("expected error once the bucket is empty and the deadline is short")
	}
	if inner.calls != 1 {
		t.Fatalf("throttled call must not reach the generator, got %d calls", inner.calls)
	}
}

func TestRateLimited_DisabledReturnsInner(t *testing.T) {
	inner := &mockGenerator{name: "m"}
	if g := NewRateLimited(inner, 0); g != inner {
		t.Fatal("non-positive rate should return the inner generator")
	}
}

func TestRateLimited_Name(t *testing.T) {
	g := NewRateLimited(&mockGenerator{name: "claude"}, 30)
	if g.Name() != "claude" {
		t.Fatalf("unexpected name %q", g.Name())
	}
}

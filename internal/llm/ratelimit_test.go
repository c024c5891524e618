package llm

import (
	"context"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	p.calls++
	out := make(chan Chunk, 1)
	out <- Chunk{Text: "ok", Done: true, StopReason: "end_turn"}
	close(out)
	return out, nil
}

func TestNewRateLimitedProviderDisabledReturnsInnerUnwrapped(t *testing.T) {
	inner := &countingProvider{}
	wrapped := NewRateLimitedProvider(inner, 0)
	if wrapped != Provider(inner) {
		t.Fatal("expected a non-positive rate to return the inner provider unwrapped")
	}
}

func TestRateLimitedProviderThrottles(t *testing.T) {
	inner := &countingProvider{}
	wrapped := NewRateLimitedProvider(inner, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ch, err := wrapped.Complete(ctx, CompletionRequest{Model: "m"})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		<-ch
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls to reach inner provider, got %d", inner.calls)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if _, err := wrapped.Complete(shortCtx, CompletionRequest{Model: "m"}); err == nil {
		t.Fatal("expected the exhausted burst to block past the context deadline")
	}
}

func TestRateLimitedProviderPropagatesCancellation(t *testing.T) {
	inner := &countingProvider{}
	wrapped := NewRateLimitedProvider(inner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// drain the initial burst token first so Wait actually blocks on ctx.
	if _, err := wrapped.Complete(context.Background(), CompletionRequest{Model: "m"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := wrapped.Complete(ctx, CompletionRequest{Model: "m"}); err == nil {
		t.Fatal("expected cancelled context to error before reaching inner provider")
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner provider not to be called after cancellation, got %d calls", inner.calls)
	}
}

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_NoBlockWhenZeroDelay(t *testing.T) {
	p := NewPacer(0, 0.5)

	start := time.Now()
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("pacer with zero delay should not block")
	}
}

func TestPacer_NilIsNoop(t *testing.T) {
	var p *Pacer
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Delay() != 0 {
		t.Errorf("expected zero delay for nil pacer")
	}
}

func TestPacer_Pause(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 0)

	start := time.Now()
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("expected pause around 50ms, took %v", elapsed)
	}
}

func TestPacer_ContextCancellation(t *testing.T) {
	p := NewPacer(time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.Pause(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("cancelled pause should return immediately")
	}
}

func TestPacer_JitterBounds(t *testing.T) {
	p := NewPacer(100*time.Millisecond, 0.5)

	for i := 0; i < 200; i++ {
		d := p.Next()
		if d < 100*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered pause %v outside [100ms, 150ms]", d)
		}
	}
}

func TestNewPacer_Clamps(t *testing.T) {
	p := NewPacer(-time.Second, 4)
	if p.Delay() != 0 {
		t.Errorf("expected negative delay to clamp to 0, got %v", p.Delay())
	}

	p = NewPacer(10*time.Millisecond, 4)
	if d := p.Next(); d > 20*time.Millisecond {
		t.Errorf("expected jitter clamped to 1.0, got pause %v", d)
	}
}

package agency

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Doubles(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	ctx := context.Background()

	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}
	for i, w := range want {
		if err := b.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if b.Current() != w {
			t.Errorf("after wait %d Current() = %v, want %v", i+1, b.Current(), w)
		}
	}

	b.Reset()
	if b.Current() != time.Millisecond {
		t.Errorf("Current() after Reset = %v", b.Current())
	}
}

func TestBackoff_Cancelled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := newBackoff(0, 0)
	if b.Current() != DefaultBackoffInitial {
		t.Errorf("Current() = %v, want %v", b.Current(), DefaultBackoffInitial)
	}
}

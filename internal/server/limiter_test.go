package server

import (
	"sync"
	"testing"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("fills to the limit", func(t *testing.T) {
		limiter := NewConnectionLimiter(3)

		for i := 0; i < 3; i++ {
			if !limiter.TryAcquire() {
				t.Fatalf("acquire %d rejected below the limit", i+1)
			}
		}
		if limiter.Current() != 3 {
			t.Errorf("Current() = %d, want 3", limiter.Current())
		}

		// Sessions on either listener count against the same cap.
		if limiter.TryAcquire() {
			t.Error("acquire succeeded at capacity")
		}
	})

	t.Run("release frees a slot", func(t *testing.T) {
		limiter := NewConnectionLimiter(1)

		if !limiter.TryAcquire() {
			t.Fatal("first acquire rejected")
		}
		if limiter.TryAcquire() {
			t.Fatal("second acquire succeeded over the limit")
		}

		limiter.Release()

		if !limiter.TryAcquire() {
			t.Error("acquire rejected after release")
		}
	})
}

func TestConnectionLimiterConcurrent(t *testing.T) {
	limiter := NewConnectionLimiter(100)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire() {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}

	if count != 100 {
		t.Errorf("admitted = %d, want exactly the limit", count)
	}
	if limiter.Current() != 100 {
		t.Errorf("Current() = %d, want 100", limiter.Current())
	}
}

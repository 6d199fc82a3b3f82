package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoop_RunsSerially(t *testing.T) {
	l, _ := startLoop(t)

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Call(context.Background(), func() {
				n := running.Add(1)
				if n > maxRunning.Load() {
					maxRunning.Store(n)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
			})
		}()
	}
	wg.Wait()

	if maxRunning.Load() != 1 {
		t.Errorf("max concurrent callbacks = %d, want 1", maxRunning.Load())
	}
}

func TestLoop_After(t *testing.T) {
	l, _ := startLoop(t)

	fired := make(chan struct{})
	start := time.Now()
	l.After(30*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
		if time.Since(start) < 30*time.Millisecond {
			t.Error("After fired early")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("After callback never ran")
	}
}

func TestLoop_AfterCancel(t *testing.T) {
	l, _ := startLoop(t)

	var fired atomic.Bool
	cancel := l.After(20*time.Millisecond, func() { fired.Store(true) })
	cancel()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled callback ran")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	l, _ := startLoop(t)

	_ = l.Call(context.Background(), func() { panic("boom") })

	ran := false
	if err := l.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call() after panic error = %v", err)
	}
	if !ran {
		t.Error("loop stopped processing after a panic")
	}
}

func TestLoop_Stop(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancel")
	}

	if l.Post(func() {}) {
		t.Error("Post() = true after stop")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Call() after stop error = %v, want ErrLoopStopped", err)
	}
}

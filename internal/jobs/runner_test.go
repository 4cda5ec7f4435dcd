package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	r := New(ctx)
	r.Every(10*time.Millisecond, "tick", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	time.Sleep(100 * time.Millisecond)
	cancel()
	got := runs.Load()
	if got < 2 {
		t.Fatalf("задача должна была отработать несколько раз, получили %d", got)
	}

	// После отмены контекста запуски прекращаются.
	time.Sleep(50 * time.Millisecond)
	if after := runs.Load(); after > got+1 {
		t.Fatalf("задача продолжила работать после остановки: %d -> %d", got, after)
	}
}

func TestRunnerRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	r := New(ctx)
	r.Every(10*time.Millisecond, "panicky", func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("обычная ошибка")
	})

	time.Sleep(100 * time.Millisecond)
	if runs.Load() < 2 {
		t.Fatal("паника не должна останавливать цикл задач")
	}
}

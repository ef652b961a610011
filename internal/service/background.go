package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Background runs fire-and-forget work on a detached context so it survives
// the request that started it. Wait blocks until all work has finished.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger
}

// NewBackground creates a runner whose tasks get timeout each.
func NewBackground(timeout time.Duration, logger *slog.Logger) *Background {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{timeout: timeout, logger: logger}
}

// Go runs fn in a goroutine. Panics are recovered and logged.
func (b *Background) Go(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every task started with Go has returned, or ctx ends.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

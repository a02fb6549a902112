package shutdown

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// CallbackTracker counts bank callbacks still being processed so shutdown
// can drain them. A callback cut off mid-provision risks a charged card
// with no recorded outcome, so the process must not exit under one.
type CallbackTracker struct {
	wg       sync.WaitGroup
	pending  atomic.Int64
	draining chan struct{}
	logger   *zap.Logger
}

// NewCallbackTracker creates a tracker for in-flight bank callbacks.
func NewCallbackTracker(logger *zap.Logger) *CallbackTracker {
	return &CallbackTracker{
		draining: make(chan struct{}),
		logger:   logger,
	}
}

// Wrap guards a callback endpoint: once draining starts, new posts are
// rejected with 503 so the bank retries them later, while accepted ones are
// tracked until their outcome is persisted.
func (t *CallbackTracker) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !t.begin() {
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
			return
		}
		defer t.end()
		next(w, r)
	}
}

func (t *CallbackTracker) begin() bool {
	select {
	case <-t.draining:
		return false
	default:
		t.wg.Add(1)
		t.pending.Add(1)
		return true
	}
}

func (t *CallbackTracker) end() {
	t.pending.Add(-1)
	t.wg.Done()
}

// Pending returns the number of callbacks currently being processed.
func (t *CallbackTracker) Pending() int64 {
	return t.pending.Load()
}

// Draining reports whether new callbacks are being rejected.
func (t *CallbackTracker) Draining() bool {
	select {
	case <-t.draining:
		return true
	default:
		return false
	}
}

// Drain stops accepting new callbacks and waits for the pending ones to
// finish. Returns the context error if the shutdown window closes first.
func (t *CallbackTracker) Drain(ctx context.Context) error {
	close(t.draining)

	t.logger.Info("draining bank callbacks",
		zap.Int64("pending", t.Pending()),
	)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("bank callbacks drained")
		return nil
	case <-ctx.Done():
		t.logger.Warn("drain window closed with callbacks still running",
			zap.Int64("pending", t.Pending()),
		)
		return ctx.Err()
	}
}

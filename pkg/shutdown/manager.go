package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shut down gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	hookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shutdown_hook_duration_seconds",
		Help:    "Time taken by individual shutdown hooks",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30},
	}, []string{"hook"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown hook failures",
	}, []string{"hook"})
)

// Func is one component's shutdown hook.
type Func func(context.Context) error

type hook struct {
	name string
	fn   Func
}

// Manager runs registered shutdown hooks in reverse registration order, one
// at a time. Sequencing matters for payments: the HTTP server must stop
// accepting work before the callback drain runs, and the database pool can
// close only after the last callback has persisted its outcome.
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []hook
}

// NewManager creates a shutdown manager with a total time budget shared by
// all hooks.
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

// Register adds a shutdown hook. Hooks run LIFO, so register in dependency
// order: database first, HTTP server last.
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs all hooks.
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	m.logger.Info("shutdown signal received",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", m.timeout),
	)
	m.Shutdown()
}

// Shutdown runs every registered hook in reverse order under the shared
// timeout. A failing hook is logged and counted but later hooks still run,
// so the database close is never skipped.
func (m *Manager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := make([]hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	start := time.Now()
	failed := 0
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		hookStart := time.Now()
		if err := h.fn(ctx); err != nil {
			failed++
			shutdownErrors.WithLabelValues(h.name).Inc()
			m.logger.Error("shutdown hook failed",
				zap.String("hook", h.name),
				zap.Error(err),
			)
		}
		hookDuration.WithLabelValues(h.name).Observe(time.Since(hookStart).Seconds())
	}

	elapsed := time.Since(start)
	shutdownDuration.Observe(elapsed.Seconds())
	if failed > 0 {
		m.logger.Error("graceful shutdown finished with failures",
			zap.Int("failed_hooks", failed),
			zap.Duration("elapsed", elapsed),
		)
		return
	}
	m.logger.Info("graceful shutdown finished", zap.Duration("elapsed", elapsed))
}

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pool manages the goroutines running registered maintenance tasks.
type Pool struct {
	workerID string
	mu       sync.RWMutex
	tasks    []Task
}

// New creates an empty Pool. A random workerID is generated at construction
// time to distinguish this process in logs.
func New() *Pool {
	return &Pool{workerID: uuid.New().String()}
}

// Register adds a task. Must be called before Start.
func (p *Pool) Register(t Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, t)
}

// Start launches one goroutine per registered task, then blocks until ctx is
// cancelled. When ctx is cancelled, any in-flight run completes and Start
// returns after all goroutines have exited.
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	tasks := make([]Task, len(p.tasks))
	copy(tasks, p.tasks)
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			p.runTask(ctx, t)
		}(t)
	}
	wg.Wait()
	slog.Info("worker pool stopped", "worker_id", p.workerID)
}

// runTask runs t on its interval until ctx is cancelled. Uses time.NewTicker
// (not time.After) to avoid timer leaks.
func (p *Pool) runTask(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	slog.Info("worker task started",
		"task", t.Name, "interval", t.Interval, "worker_id", p.workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker task stopping", "task", t.Name)
			return
		case <-ticker.C:
			start := time.Now()
			if err := t.Run(ctx); err != nil {
				slog.Error("worker task failed",
					"task", t.Name, "error", err, "duration", time.Since(start))
				continue
			}
			slog.Debug("worker task completed",
				"task", t.Name, "duration", time.Since(start))
		}
	}
}

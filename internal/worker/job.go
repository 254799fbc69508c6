// Package worker runs periodic maintenance tasks on their own tickers.
//
// Tasks are registered before calling Pool.Start. Each task gets a dedicated
// goroutine; all of them stop when the context is cancelled and Start returns
// once every goroutine has exited.
package worker

import (
	"context"
	"time"
)

// Task is a named maintenance job run at a fixed interval.
// A non-nil return value is logged; the task keeps its schedule either way.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

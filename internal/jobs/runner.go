// Package jobs — фоновые задачи по расписанию.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/otabek-dev/mahalla-admin/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
}

func New(ctx context.Context) *Runner { return &Runner{ctx: ctx} }

func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				start := time.Now()
				if err := r.run(name, fn); err != nil {
					jobErrors.WithLabelValues(name).Inc()
					observability.CaptureErr(err)
				}
				jobRuns.WithLabelValues(name).Inc()
				jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
		}
	}()
}

func (r *Runner) run(name string, fn Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in job %s: %v", name, rec)
		}
	}()
	return fn(r.ctx)
}

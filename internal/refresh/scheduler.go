package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
)

// Start launches the background scheduler. A cron expression, when
// configured, takes precedence over the fixed interval. Start returns
// immediately; Stop halts the scheduler and waits for it to exit.
func (o *Orchestrator) Start(ctx context.Context) error {
	var cron *cronexpr.Expression
	if o.cfg.Cron != "" {
		parsed, err := cronexpr.Parse(o.cfg.Cron)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", o.cfg.Cron, err)
		}
		cron = parsed
	}

	o.started.Store(true)
	go o.run(ctx, cron)
	return nil
}

// Stop signals the scheduler and blocks until its goroutine exits. Safe
// to call more than once, and a no-op when Start never ran.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	if o.started.Load() {
		<-o.done
	}
}

func (o *Orchestrator) run(ctx context.Context, cron *cronexpr.Expression) {
	defer close(o.done)

	timer := time.NewTimer(o.nextDelay(cron))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		case <-timer.C:
			if _, err := o.RefreshOnce(ctx); err != nil {
				// Already recorded in LastResult; the schedule keeps going.
				o.log.Warn("scheduled refresh failed", "error", err)
			}
			timer.Reset(o.nextDelay(cron))
		}
	}
}

// nextDelay computes the wait until the next run: the cron expression's
// next firing when configured, the fixed interval otherwise.
func (o *Orchestrator) nextDelay(cron *cronexpr.Expression) time.Duration {
	if cron != nil {
		next := cron.Next(time.Now())
		if next.IsZero() {
			return o.cfg.Interval
		}
		return time.Until(next)
	}
	return o.cfg.Interval
}

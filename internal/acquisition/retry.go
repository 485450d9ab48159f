package acquisition

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Policy bounds one retry loop. Zero MaxAttempts means unbounded.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// gate spaces calls of one kind so they never exceed the service limit.
type gate struct {
	name    string
	limiter *rate.Limiter
}

func newGate(name string, every time.Duration) *gate {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &gate{name: name, limiter: rate.NewLimiter(limit, 1)}
}

// wait blocks until the gate admits one call at the clock's current time.
func (a *Acquirer) wait(ctx context.Context, g *gate) error {
	now := a.clock.Now()
	res := g.limiter.ReserveN(now, 1)
	if !res.OK() {
		return fmt.Errorf("limitador %s recusou reserva", g.name)
	}

	delay := res.DelayFrom(now)
	if err := a.sleep(ctx, delay); err != nil {
		res.CancelAt(a.clock.Now())
		return err
	}
	return nil
}

// sleep waits d on the clock unless that would pass the acquisition deadline.
func (a *Acquirer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if !a.deadline.IsZero() && a.clock.Now().Add(d).After(a.deadline) {
		return fmt.Errorf("%w: prazo de %s esgotado", ErrAcquisitionTimedOut, a.cfg.Timeout)
	}
	return a.clock.Sleep(ctx, d)
}

// retry calls attempt through g until it reports done or fails, sleeping
// p.Interval between tries. Exhausting p.MaxAttempts is a timeout.
func (a *Acquirer) retry(ctx context.Context, p Policy, g *gate, attempt func(n int) (bool, error)) error {
	for n := 1; ; n++ {
		if p.MaxAttempts > 0 && n > p.MaxAttempts {
			return fmt.Errorf("%w: %d tentativas de %s", ErrAcquisitionTimedOut, p.MaxAttempts, g.name)
		}

		if err := a.wait(ctx, g); err != nil {
			return err
		}

		done, err := attempt(n)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err := a.sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

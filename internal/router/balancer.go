package router

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

// Balancer retries routing on behalf of a caller that is willing to wait for
// capacity. Retries are paced by a token bucket so waiting callers do not
// spin on the router mutex.
type Balancer struct {
	router  *Router
	limiter *rate.Limiter
}

// NewBalancer creates a Balancer that retries at most once per interval,
// allowing burst immediate attempts.
func NewBalancer(r *Router, interval time.Duration, burst int) *Balancer {
	if burst < 1 {
		burst = 1
	}
	return &Balancer{
		router:  r,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Dispatch routes task, retrying while the result is no-capacity. It returns
// the first routed or no-match decision. When ctx ends first, the last
// no-capacity decision is returned together with the context error.
func (b *Balancer) Dispatch(ctx context.Context, task string, opts Options) (*models.RoutingDecision, error) {
	var last *models.RoutingDecision
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return last, err
		}
		d, err := b.router.Route(ctx, task, opts)
		if err != nil {
			return nil, err
		}
		if d.Status != models.RoutingNoCapacity {
			return d, nil
		}
		last = d
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		default:
		}
	}
}

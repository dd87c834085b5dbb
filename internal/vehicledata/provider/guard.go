package provider

import (
	"context"
	"errors"

	"github.com/sells-group/vehicle-data/internal/resilience"
)

// Guard wraps provider calls with a per-provider circuit breaker and
// transient-error retries. Retries inside one guarded call count as a single
// lookup.
type Guard struct {
	breakers  *resilience.ServiceBreakers
	retry     resilience.RetryConfig
	permanent []error
}

// NewGuard builds a Guard. Errors matching any of permanent (for example a
// provider's "vehicle not found") are neither retried nor counted against the
// breaker.
func NewGuard(cb resilience.CircuitBreakerConfig, retry resilience.RetryConfig, permanent ...error) *Guard {
	g := &Guard{retry: retry, permanent: permanent}
	cb.ShouldTrip = func(err error) bool { return err != nil && !g.isPermanent(err) }
	g.breakers = resilience.NewServiceBreakers(cb)
	return g
}

// States returns the breaker state per provider.
func (g *Guard) States() map[string]string {
	return g.breakers.States()
}

func (g *Guard) isPermanent(err error) bool {
	for _, p := range g.permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// call runs fn for the named provider. A nil Guard calls fn directly.
func call[T any](ctx context.Context, g *Guard, name, registration string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}

	retry := g.retry
	retry.OnRetry = resilience.RetryLogger(name, registration)
	retry.ShouldRetry = func(err error) bool {
		return !g.isPermanent(err) && resilience.IsTransient(err)
	}

	return resilience.ExecuteVal(ctx, g.breakers.Get(name), func(ctx context.Context) (T, error) {
		return resilience.DoVal(ctx, retry, fn)
	})
}

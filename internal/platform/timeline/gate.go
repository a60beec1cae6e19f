package timeline

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Gate is a token-bucket rate gate shared by all timeline requests.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate allows perSecond requests per second with the given burst.
func NewGate(perSecond float64, burst int) *Gate {
	if burst < 1 {
		burst = 1
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate gate: %w", err)
	}
	return nil
}

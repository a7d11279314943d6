package gateway

import (
	"context"
	"math/rand"
	"sync"
)

// SimulatedProcessor stands in for direct charges and refunds, which have no
// real gateway integration. Each call succeeds with probability SuccessRate.
type SimulatedProcessor struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

func NewSimulatedProcessor(successRate float64, seed int64) *SimulatedProcessor {
	return &SimulatedProcessor{
		rng:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

// Charge reports whether a direct charge for orderID went through.
func (p *SimulatedProcessor) Charge(ctx context.Context, orderID string, amount float64) bool {
	return p.roll(ctx)
}

// Refund reports whether the refund for orderID went through.
func (p *SimulatedProcessor) Refund(ctx context.Context, orderID string, amount float64) bool {
	return p.roll(ctx)
}

func (p *SimulatedProcessor) roll(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.successRate >= 1 {
		return true
	}
	if p.successRate <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < p.successRate
}

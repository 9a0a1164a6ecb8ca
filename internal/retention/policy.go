// Package retention caps the number of stored transcript sessions.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxSessions is the session cap used when none is configured.
const DefaultMaxSessions = 500

// Pruner is the store operation retention drives.
type Pruner interface {
	Prune(ctx context.Context, max int) int
}

// Policy evicts the oldest sessions once more than Max exist. Opportunistic
// triggers run in the background and collapse into a single prune while one
// is already running.
type Policy struct {
	pruner  Pruner
	max     int
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// New creates a retention policy. max <= 0 selects DefaultMaxSessions.
func New(pruner Pruner, max int, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Policy{pruner: pruner, max: max, timeout: 30 * time.Second, logger: logger}
}

// Max returns the configured cap.
func (p *Policy) Max() int { return p.max }

// Trigger starts a background prune to Max unless one is already running.
// The returned channel receives the number of deleted sessions.
func (p *Policy) Trigger() <-chan singleflight.Result {
	return p.group.DoChan("auto", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		n := p.pruner.Prune(ctx, p.max)
		if n > 0 {
			p.logger.Debug("retention pruned sessions", zap.Int("deleted", n), zap.Int("max", p.max))
		}
		return n, nil
	})
}

// PruneTo evicts the oldest sessions until at most max remain and returns the
// number deleted.
func (p *Policy) PruneTo(ctx context.Context, max int) int {
	if max < 0 {
		max = 0
	}
	n := p.pruner.Prune(ctx, max)
	p.logger.Info("retention prune requested", zap.Int("max", max), zap.Int("deleted", n))
	return n
}

// Package protocol assigns the human-readable identifier every solicitation
// receives exactly once at creation, in the form SOL-<year>-<seq>.
package protocol

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conecta-ies/solicitation-service/internal/clock"
)

// Generator produces unique protocol numbers per calendar year.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// YearCounter reports how many solicitations were created in a given year.
// Satisfied by the solicitation repository.
type YearCounter interface {
	CountCreatedInYear(ctx context.Context, year int) (int64, error)
}

// Sequencer yields the next value of a named monotonically increasing
// sequence. The production implementation is a Redis INCR, which makes
// concurrent creations race-free without a counter table.
type Sequencer interface {
	Incr(ctx context.Context, key string) (int64, error)
	SetMax(ctx context.Context, key string, value int64) error
}

type generator struct {
	seq           Sequencer
	solicitations YearCounter
	clock         clock.Clock
	logger        *zap.Logger
}

// NewGenerator builds a Generator over the given sequencer and store. The
// store supplies per-year counts used to reconcile a fresh or lost counter
// and serves as the fallback when the sequencer is unreachable.
func NewGenerator(seq Sequencer, solicitations YearCounter, clk clock.Clock, logger *zap.Logger) Generator {
	return &generator{seq: seq, solicitations: solicitations, clock: clk, logger: logger}
}

func (g *generator) Next(ctx context.Context) (string, error) {
	year := g.clock.Now().Year()
	key := fmt.Sprintf("solicitations:protocol:%d", year)

	seq, err := g.seq.Incr(ctx, key)
	if err != nil {
		// Degraded path: count-then-format. Concurrent creations can
		// collide here; the unique constraint on protocol turns the
		// race into a retryable conflict.
		g.logger.Warn("protocol sequencer unavailable, falling back to store count", zap.Error(err))
		count, countErr := g.solicitations.CountCreatedInYear(ctx, year)
		if countErr != nil {
			return "", countErr
		}
		return format(year, count+1), nil
	}

	if seq == 1 {
		// First increment of the year, or the counter was lost. Rows may
		// already exist for this year, so re-seed from the store count.
		count, countErr := g.solicitations.CountCreatedInYear(ctx, year)
		if countErr == nil && count >= seq {
			seq = count + 1
			if setErr := g.seq.SetMax(ctx, key, seq); setErr != nil {
				g.logger.Warn("failed to re-seed protocol counter", zap.Error(setErr))
			}
		}
	}

	return format(year, seq), nil
}

func format(year int, seq int64) string {
	return fmt.Sprintf("SOL-%d-%04d", year, seq)
}

// redisSequencer backs Sequencer with Redis INCR.
type redisSequencer struct {
	client *redis.Client
}

// NewRedisSequencer wraps a go-redis client as a Sequencer.
func NewRedisSequencer(client *redis.Client) Sequencer {
	return &redisSequencer{client: client}
}

func (r *redisSequencer) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *redisSequencer) SetMax(ctx context.Context, key string, value int64) error {
	// Lua keeps the compare-and-set atomic against concurrent INCRs.
	const script = `
        local current = tonumber(redis.call('GET', KEYS[1]) or '0')
        if tonumber(ARGV[1]) > current then
            redis.call('SET', KEYS[1], ARGV[1])
        end
        return 0`
	return r.client.Eval(ctx, script, []string{key}, value).Err()
}

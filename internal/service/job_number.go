package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const jobNumberKeyPrefix = "jobcard:seq:"

// JobSequenceSource reports the highest sequence already stored for prefix
// and year, so numbering resumes after a restart.
type JobSequenceSource interface {
	MaxJobSequence(ctx context.Context, prefix string, year int) (int64, error)
}

// JobNumberGenerator hands out human readable job numbers such as JC-2026-0042.
// Sequences are per year; Redis INCR keeps them unique across instances.
type JobNumberGenerator struct {
	client *redis.Client
	source JobSequenceSource
	prefix string
	logger *zap.Logger
	now    Clock

	mu       sync.Mutex
	counters map[int]int64
	seeded   map[int]bool
}

// NewJobNumberGenerator creates a generator. A nil client keeps sequences in
// process; source, when set, seeds each year's sequence from stored job numbers.
func NewJobNumberGenerator(client *redis.Client, source JobSequenceSource, prefix string, logger *zap.Logger, now Clock) *JobNumberGenerator {
	if prefix == "" {
		prefix = "JC"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = systemClock
	}
	return &JobNumberGenerator{
		client:   client,
		source:   source,
		prefix:   prefix,
		logger:   logger,
		now:      now,
		counters: map[int]int64{},
		seeded:   map[int]bool{},
	}
}

// Next returns the next number, e.g. JC-2026-0007.
func (g *JobNumberGenerator) Next(ctx context.Context) (string, error) {
	year := g.now().Year()
	seq, err := g.sequence(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", g.prefix, year, seq), nil
}

// NextWithCategory prefixes the number with the first three letters of
// category, e.g. MAI-JC-2026-0007. An empty category yields GEN.
func (g *JobNumberGenerator) NextWithCategory(ctx context.Context, category string) (string, error) {
	number, err := g.Next(ctx)
	if err != nil {
		return "", err
	}
	return categoryPrefix(category) + "-" + number, nil
}

func (g *JobNumberGenerator) sequence(ctx context.Context, year int) (int64, error) {
	if g.client == nil {
		return g.localNext(ctx, year)
	}
	key := fmt.Sprintf("%s%s:%d", jobNumberKeyPrefix, g.prefix, year)
	if err := g.seedRedis(ctx, key, year); err != nil {
		return 0, err
	}
	seq, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		g.logger.Error("job number sequence unavailable", zap.Int("year", year), zap.Error(err))
		return 0, fmt.Errorf("job number sequence: %w", err)
	}
	return seq, nil
}

func (g *JobNumberGenerator) localNext(ctx context.Context, year int) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded[year] {
		floor, err := g.floor(ctx, year)
		if err != nil {
			return 0, err
		}
		g.counters[year] = floor
		g.seeded[year] = true
	}
	g.counters[year]++
	return g.counters[year], nil
}

// seedRedis initializes an absent Redis counter to the stored maximum, once per year.
func (g *JobNumberGenerator) seedRedis(ctx context.Context, key string, year int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded[year] {
		return nil
	}
	floor, err := g.floor(ctx, year)
	if err != nil {
		return err
	}
	if err := g.client.SetNX(ctx, key, floor, 0).Err(); err != nil {
		g.logger.Error("job number sequence unavailable", zap.Int("year", year), zap.Error(err))
		return fmt.Errorf("job number sequence: %w", err)
	}
	g.seeded[year] = true
	return nil
}

func (g *JobNumberGenerator) floor(ctx context.Context, year int) (int64, error) {
	if g.source == nil {
		return 0, nil
	}
	floor, err := g.source.MaxJobSequence(ctx, g.prefix, year)
	if err != nil {
		return 0, fmt.Errorf("seed job number sequence: %w", err)
	}
	if floor > 0 {
		g.logger.Info("job number sequence resumed", zap.Int("year", year), zap.Int64("last", floor))
	}
	return floor, nil
}

func categoryPrefix(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return "GEN"
	}
	runes := []rune(category)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

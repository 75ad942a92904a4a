package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
)

const overduePageSize = 50

// OverdueSource pages through overdue job cards.
type OverdueSource interface {
	Overdue(ctx context.Context, page repository.Page) (repository.PageResult[domain.JobCard], error)
}

// OverdueScanner periodically reports job cards past their target date.
type OverdueScanner struct {
	source   OverdueSource
	interval time.Duration
	logger   *zap.Logger
}

// NewOverdueScanner builds a scanner ticking every interval.
func NewOverdueScanner(source OverdueSource, interval time.Duration, logger *zap.Logger) *OverdueScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueScanner{source: source, interval: interval, logger: logger}
}

// Run scans on every tick until ctx is cancelled.
func (s *OverdueScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("overdue scan failed", zap.Error(err))
			}
		}
	}
}

// Scan logs every overdue card and returns how many it found.
func (s *OverdueScanner) Scan(ctx context.Context) (int, error) {
	found := 0
	for page := 0; ; page++ {
		result, err := s.source.Overdue(ctx, repository.NewPage(page, overduePageSize))
		if err != nil {
			return found, err
		}
		for _, card := range result.Items {
			found++
			fields := []zap.Field{
				zap.String("job_card_id", card.ID),
				zap.String("job_number", card.JobNumber),
				zap.String("status", string(card.Status)),
			}
			if card.TargetCompletionDate != nil {
				fields = append(fields, zap.Time("target_completion_date", *card.TargetCompletionDate))
			}
			if card.AssignedTo != nil {
				fields = append(fields, zap.String("assigned_to", *card.AssignedTo))
			}
			s.logger.Warn("job card overdue", fields...)
		}
		if result.Last || result.Empty {
			break
		}
	}
	if found > 0 {
		s.logger.Info("overdue scan complete", zap.Int("overdue", found))
	}
	return found, nil
}

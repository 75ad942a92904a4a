package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// eventPublisher queues domain events behind the current transaction.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

func newEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger, now Clock) eventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = systemClock
	}
	return eventPublisher{dispatcher: dispatcher, logger: logger, now: now}
}

// publish defers dispatch until the surrounding transaction commits.
func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.TraceID == "" {
		event.TraceID = observability.TraceIDFromContext(ctx)
	}
	repository.AfterCommit(ctx, func(ctx context.Context) {
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("event dropped",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	})
}

func transactor(tx repository.Transactor) repository.Transactor {
	if tx == nil {
		return repository.NewTransactionManager(nil)
	}
	return tx
}

// lookupError turns a missing row into a NOT_FOUND error for resource.
func lookupError(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

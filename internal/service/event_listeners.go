package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/identitysync"
	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/repository"
)

// EventListeners reacts to domain events once their transaction has committed.
type EventListeners struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	userRoles  repository.UserRoleRepository
	sync       identitysync.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ListenerDependencies bundles collaborators for EventListeners.
type ListenerDependencies struct {
	Dispatcher   events.Dispatcher
	UserRepo     repository.UserRepository
	UserRoleRepo repository.UserRoleRepository
	IdentitySync identitysync.Publisher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewEventListeners creates the listener set.
func NewEventListeners(deps ListenerDependencies) *EventListeners {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventListeners{
		dispatcher: deps.Dispatcher,
		users:      deps.UserRepo,
		userRoles:  deps.UserRoleRepo,
		sync:       deps.IdentitySync,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every event type.
func (l *EventListeners) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	l.dispatcher.Subscribe(events.EventUserRegistered, l.logged(l.handleUserRegistered))
	l.dispatcher.Subscribe(events.EventUserEmailVerified, l.logged(nil))
	l.dispatcher.Subscribe(events.EventUserApproved, l.logged(l.syncUser))
	l.dispatcher.Subscribe(events.EventUserRejected, l.logged(l.syncUser))
	l.dispatcher.Subscribe(events.EventUserStatusChanged, l.logged(l.syncUser))
	l.dispatcher.Subscribe(events.EventUserRoleAssigned, l.logged(l.syncUser))
	l.dispatcher.Subscribe(events.EventUserRoleRevoked, l.logged(l.syncUser))

	l.dispatcher.Subscribe(events.EventJobCardCreated, l.logged(nil))
	l.dispatcher.Subscribe(events.EventJobCardAssigned, l.logged(l.handleJobCardAssigned))
	l.dispatcher.Subscribe(events.EventJobCardUnassigned, l.logged(nil))
	l.dispatcher.Subscribe(events.EventJobCardStatusChanged, l.logged(nil))
	l.dispatcher.Subscribe(events.EventJobCardCompleted, l.logged(l.handleJobCardCompleted))
}

// logged records and logs every event before running next.
func (l *EventListeners) logged(next events.EventHandler) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		l.metrics.RecordEvent(string(event.Type))
		l.logger.Info("domain event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("subject_id", event.SubjectID),
			zap.String("actor", event.Actor),
			zap.String("trace_id", event.TraceID),
			zap.Any("payload", event.Payload))
		if next == nil {
			return nil
		}
		return next(ctx, event)
	}
}

func (l *EventListeners) handleUserRegistered(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return nil
	}
	if payload.EmailVerificationRequired {
		l.logger.Debug("awaiting email verification", zap.String("user_id", event.SubjectID))
	}
	return nil
}

func (l *EventListeners) handleJobCardAssigned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.JobCardAssignedPayload)
	if !ok {
		return nil
	}
	l.logger.Debug("notify assignee stub",
		zap.String("job_number", payload.JobNumber),
		zap.String("assigned_to", payload.AssignedTo))
	return nil
}

func (l *EventListeners) handleJobCardCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.JobCardCompletedPayload)
	if !ok {
		return nil
	}
	fields := []zap.Field{zap.String("job_number", payload.JobNumber), zap.Time("completed_at", payload.CompletedAt)}
	if payload.ActualDurationMinutes != nil {
		fields = append(fields, zap.Int("actual_duration_minutes", *payload.ActualDurationMinutes))
	}
	l.logger.Info("job card completed", fields...)
	return nil
}

// syncUser pushes the user's current state to the identity directory.
func (l *EventListeners) syncUser(ctx context.Context, event events.Event) error {
	if l.sync == nil || l.users == nil {
		return nil
	}
	user, err := l.users.GetByID(ctx, event.SubjectID)
	if err != nil {
		return fmt.Errorf("load user %s for identity sync: %w", event.SubjectID, err)
	}
	var roles []string
	if l.userRoles != nil {
		if roles, err = l.userRoles.ListActiveRoleNames(ctx, user.ID); err != nil {
			return fmt.Errorf("load roles for identity sync: %w", err)
		}
	}

	snapshot := identitysync.UserSnapshot{
		UserID:          user.ID,
		ExternalSubject: user.ExternalSubject,
		Email:           user.Email,
		FullName:        user.FullName(),
		Status:          user.Status,
		Roles:           roles,
		Reason:          reasonOf(event.Payload),
		Event:           string(event.Type),
		TraceID:         event.TraceID,
		OccurredAt:      event.Timestamp,
	}
	if err := l.sync.SyncUser(ctx, snapshot); err != nil {
		return fmt.Errorf("identity sync for user %s: %w", user.ID, err)
	}
	return nil
}

func reasonOf(payload any) string {
	switch p := payload.(type) {
	case events.UserRejectedPayload:
		return p.Reason
	case events.UserStatusChangedPayload:
		return p.Reason
	}
	return ""
}

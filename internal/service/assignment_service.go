package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

const reassignReason = "Reassigning to new personnel"

// AssignmentService hands job cards to technicians.
type AssignmentService struct {
	jobs        *JobCardService
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	tx          repository.Transactor
	events      eventPublisher
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	JobCards       *JobCardService
	AssignmentRepo repository.AssignmentRepository
	UserRepo       repository.UserRepository
	Tx             repository.Transactor
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Clock          Clock
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	pub := newEventPublisher(deps.Dispatcher, deps.Logger, deps.Clock)
	return &AssignmentService{
		jobs:        deps.JobCards,
		assignments: deps.AssignmentRepo,
		users:       deps.UserRepo,
		tx:          transactor(deps.Tx),
		events:      pub,
		logger:      pub.logger,
	}
}

// Assign gives a DRAFT or READY card to an active user and moves it to ASSIGNED.
func (s *AssignmentService) Assign(ctx context.Context, jobCardID, assignee, reason, actor string) (*domain.JobCard, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewFieldErrors(map[string]string{"assignedTo": "Assignee is required"})
	}

	var assigned *domain.JobCard
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := s.jobs.load(ctx, jobCardID)
		if err != nil {
			return err
		}
		if !card.CanBeAssigned() {
			return apperrors.NewBusinessError(apperrors.CodeJobCardInvalidStatus,
				fmt.Sprintf("Cannot assign job card in status %s", card.Status),
				map[string]any{"status": card.Status})
		}

		user, err := s.users.GetByID(ctx, assignee)
		if err != nil {
			return lookupError(err, "User", map[string]any{"userId": assignee})
		}
		if user.Status != domain.UserStatusActive {
			return apperrors.NewBusinessError(apperrors.CodeUserInactive, "Job cards can only be assigned to active users", map[string]any{"status": user.Status})
		}

		if err := s.closeActive(ctx, card.ID, reassignReason); err != nil {
			return err
		}
		if err := s.assignments.Create(ctx, &domain.JobCardAssignment{
			JobCardID:  card.ID,
			AssignedTo: user.ID,
			AssignedBy: actor,
			Reason:     reason,
		}); err != nil {
			return err
		}

		previous := card.AssignedTo
		card.AssignedTo = &user.ID
		if err := s.jobs.applyStatus(ctx, card, domain.JobStatusAssigned, actor, reason); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventJobCardAssigned,
			SubjectID: card.ID,
			Actor:     actor,
			Payload: events.JobCardAssignedPayload{
				JobNumber:        card.JobNumber,
				AssignedTo:       user.ID,
				PreviousAssignee: previous,
				Reason:           reason,
			},
		})
		assigned = card
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("job card assigned", zap.String("job_number", assigned.JobNumber), zap.String("assigned_to", assignee))
	return assigned, nil
}

// Unassign releases an ASSIGNED card back to READY.
func (s *AssignmentService) Unassign(ctx context.Context, jobCardID, reason, actor string) (*domain.JobCard, error) {
	var released *domain.JobCard
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := s.jobs.load(ctx, jobCardID)
		if err != nil {
			return err
		}
		if card.Status != domain.JobStatusAssigned || card.AssignedTo == nil {
			return apperrors.NewBusinessError(apperrors.CodeJobCardInvalidStatus,
				fmt.Sprintf("Cannot unassign job card in status %s", card.Status),
				map[string]any{"status": card.Status})
		}
		if err := s.closeActive(ctx, card.ID, reason); err != nil {
			return err
		}

		previous := *card.AssignedTo
		card.AssignedTo = nil
		if err := s.jobs.applyStatus(ctx, card, domain.JobStatusReady, actor, reason); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventJobCardUnassigned,
			SubjectID: card.ID,
			Actor:     actor,
			Payload: events.JobCardUnassignedPayload{
				JobNumber:        card.JobNumber,
				PreviousAssignee: previous,
				Reason:           reason,
			},
		})
		released = card
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return released, nil
}

func (s *AssignmentService) closeActive(ctx context.Context, jobCardID, reason string) error {
	current, err := s.assignments.FindActiveByJobCard(ctx, jobCardID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.assignments.Deactivate(ctx, current.ID, reason)
}

// History lists every assignment of a card, newest first.
func (s *AssignmentService) History(ctx context.Context, jobCardID string) ([]domain.JobCardAssignment, error) {
	if _, err := s.jobs.load(ctx, jobCardID); err != nil {
		return nil, err
	}
	items, err := s.assignments.ListByJobCard(ctx, jobCardID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// ActiveByUser lists the assignments userID currently holds.
func (s *AssignmentService) ActiveByUser(ctx context.Context, userID string) ([]domain.JobCardAssignment, error) {
	items, err := s.assignments.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// ActiveCountByUser counts the assignments userID currently holds.
func (s *AssignmentService) ActiveCountByUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.assignments.CountActiveByUser(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return n, nil
}

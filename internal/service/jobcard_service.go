package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/repository"
	"github.com/spec-kit/jobcard-service/internal/specification"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// JobNumberSource hands out unique job numbers.
type JobNumberSource interface {
	Next(ctx context.Context) (string, error)
	NextWithCategory(ctx context.Context, category string) (string, error)
}

// JobCardCreateInput describes a new job card.
type JobCardCreateInput struct {
	TemplateID               string
	Title                    string
	Description              string
	Priority                 domain.Priority
	EstimatedDurationMinutes *int
	TargetCompletionDate     *time.Time
	DynamicFields            map[string]any
}

// JobCardUpdateInput carries a partial update; nil fields are left alone.
// Version, when set, must match the stored version.
type JobCardUpdateInput struct {
	Title                    *string
	Description              *string
	Priority                 *domain.Priority
	EstimatedDurationMinutes *int
	TargetCompletionDate     *time.Time
	DynamicFields            map[string]any
	Version                  *int
}

// JobCardStats aggregates dashboard figures.
type JobCardStats struct {
	StatusCounts             map[domain.JobStatus]int64 `json:"statusCounts"`
	AverageCompletionMinutes *float64                   `json:"averageCompletionMinutes"`
	ExceedingEstimate        int                        `json:"exceedingEstimate"`
}

// JobCardService drives the job card lifecycle.
type JobCardService struct {
	cards          repository.JobCardRepository
	templates      repository.TemplateRepository
	history        repository.StatusHistoryRepository
	numbers        JobNumberSource
	tx             repository.Transactor
	events         eventPublisher
	logger         *zap.Logger
	now            Clock
	categoryPrefix bool
}

// JobCardDependencies bundles collaborators for JobCardService.
type JobCardDependencies struct {
	JobCardRepo    repository.JobCardRepository
	TemplateRepo   repository.TemplateRepository
	HistoryRepo    repository.StatusHistoryRepository
	Numbers        JobNumberSource
	Tx             repository.Transactor
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Clock          Clock
	CategoryPrefix bool
}

// NewJobCardService constructs the service.
func NewJobCardService(deps JobCardDependencies) *JobCardService {
	pub := newEventPublisher(deps.Dispatcher, deps.Logger, deps.Clock)
	return &JobCardService{
		cards:          deps.JobCardRepo,
		templates:      deps.TemplateRepo,
		history:        deps.HistoryRepo,
		numbers:        deps.Numbers,
		tx:             transactor(deps.Tx),
		events:         pub,
		logger:         pub.logger,
		now:            pub.now,
		categoryPrefix: deps.CategoryPrefix,
	}
}

// Create opens a DRAFT job card from an active template.
func (s *JobCardService) Create(ctx context.Context, input JobCardCreateInput, actor string) (*domain.JobCard, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	tpl, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewBusinessError("", "Template not found with ID: "+input.TemplateID, map[string]any{"templateId": input.TemplateID})
		}
		return nil, apperrors.MapError(err)
	}
	if !tpl.IsActive {
		return nil, apperrors.NewBusinessError("", "Cannot create job card from inactive template", map[string]any{"templateId": tpl.ID})
	}

	number, err := s.nextNumber(ctx, tpl.Category)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	card := &domain.JobCard{
		JobNumber:                number,
		TemplateID:               tpl.ID,
		Title:                    strings.TrimSpace(input.Title),
		Description:              strings.TrimSpace(input.Description),
		Status:                   domain.JobStatusDraft,
		Priority:                 input.Priority,
		CreatedBy:                actor,
		EstimatedDurationMinutes: input.EstimatedDurationMinutes,
		TargetCompletionDate:     input.TargetCompletionDate,
		DynamicFields:            input.DynamicFields,
	}
	if card.Priority == "" {
		card.Priority = domain.PriorityMedium
	}
	if card.DynamicFields == nil {
		card.DynamicFields = map[string]any{}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.cards.Create(ctx, card); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, card.ID, nil, card.Status, actor, "created"); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventJobCardCreated,
			SubjectID: card.ID,
			Actor:     actor,
			Payload: events.JobCardCreatedPayload{
				JobNumber:  card.JobNumber,
				Title:      card.Title,
				TemplateID: card.TemplateID,
				Priority:   card.Priority,
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("job card created", zap.String("job_number", card.JobNumber), zap.String("job_card_id", card.ID))
	return card, nil
}

func (s *JobCardService) nextNumber(ctx context.Context, category string) (string, error) {
	if s.categoryPrefix {
		return s.numbers.NextWithCategory(ctx, category)
	}
	return s.numbers.Next(ctx)
}

func validateCreate(input JobCardCreateInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.TemplateID) == "" {
		fields["templateId"] = "Template is required"
	}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = "Title is required"
	}
	if input.Priority != "" && !input.Priority.Valid() {
		fields["priority"] = "Unknown priority"
	}
	if input.EstimatedDurationMinutes != nil && *input.EstimatedDurationMinutes <= 0 {
		fields["estimatedDurationMinutes"] = "Estimated duration must be positive"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// Update edits a DRAFT job card.
func (s *JobCardService) Update(ctx context.Context, id string, input JobCardUpdateInput) (*domain.JobCard, error) {
	var updated *domain.JobCard
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if input.Version != nil && *input.Version != card.Version {
			return apperrors.NewConcurrencyConflict("Job card", card.ID)
		}
		if card.Status != domain.JobStatusDraft {
			return apperrors.NewBusinessError(apperrors.CodeJobCardInvalidStatus, "Can only update job cards in DRAFT status", map[string]any{"status": card.Status})
		}

		if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
			card.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
			card.Description = strings.TrimSpace(*input.Description)
		}
		if input.Priority != nil {
			if !input.Priority.Valid() {
				return apperrors.NewFieldErrors(map[string]string{"priority": "Unknown priority"})
			}
			card.Priority = *input.Priority
		}
		if input.EstimatedDurationMinutes != nil {
			card.EstimatedDurationMinutes = input.EstimatedDurationMinutes
		}
		if input.TargetCompletionDate != nil {
			card.TargetCompletionDate = input.TargetCompletionDate
		}
		if input.DynamicFields != nil {
			card.DynamicFields = input.DynamicFields
		}

		if err := s.save(ctx, card); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return updated, nil
}

// GetByID returns one job card.
func (s *JobCardService) GetByID(ctx context.Context, id string) (*domain.JobCard, error) {
	return s.load(ctx, id)
}

// GetByJobNumber returns the card carrying jobNumber.
func (s *JobCardService) GetByJobNumber(ctx context.Context, jobNumber string) (*domain.JobCard, error) {
	card, err := s.cards.GetByJobNumber(ctx, jobNumber)
	if err != nil {
		return nil, lookupError(err, "Job card", map[string]any{"jobNumber": jobNumber})
	}
	return card, nil
}

// List pages through job cards matching filter.
func (s *JobCardService) List(ctx context.Context, filter specification.JobCardFilter, page repository.Page) (repository.PageResult[domain.JobCard], error) {
	return s.find(ctx, filter.Spec(s.now()), page)
}

// Search matches term against job number, title and description.
func (s *JobCardService) Search(ctx context.Context, term string, page repository.Page) (repository.PageResult[domain.JobCard], error) {
	return s.find(ctx, specification.MatchesSearch(term), page)
}

// ActiveByUser pages through the cards userID is currently working on.
func (s *JobCardService) ActiveByUser(ctx context.Context, userID string, page repository.Page) (repository.PageResult[domain.JobCard], error) {
	var active []domain.JobStatus
	for _, status := range domain.AllJobStatuses {
		if status.IsActive() {
			active = append(active, status)
		}
	}
	return s.find(ctx, specification.And(specification.HasAssignedTo(userID), specification.HasStatus(active...)), page)
}

// Overdue pages through unfinished cards past their target date.
func (s *JobCardService) Overdue(ctx context.Context, page repository.Page) (repository.PageResult[domain.JobCard], error) {
	return s.find(ctx, specification.IsOverdue(s.now()), page)
}

func (s *JobCardService) find(ctx context.Context, spec specification.Spec, page repository.Page) (repository.PageResult[domain.JobCard], error) {
	items, total, err := s.cards.FindPage(ctx, spec, page)
	if err != nil {
		return repository.PageResult[domain.JobCard]{}, apperrors.MapError(err)
	}
	return repository.NewPageResult(items, page, total), nil
}

// Start moves an ASSIGNED card with an assignee to IN_PROGRESS.
func (s *JobCardService) Start(ctx context.Context, id, actor string) (*domain.JobCard, error) {
	return s.transition(ctx, id, domain.JobStatusInProgress, actor, "started", func(card *domain.JobCard) error {
		if !card.CanBeStarted() {
			return invalidStatus(fmt.Sprintf("Cannot start job card in status %s", card.Status), card.Status, domain.JobStatusInProgress)
		}
		return nil
	})
}

// Complete finishes a card that is IN_PROGRESS or PENDING_REVIEW.
func (s *JobCardService) Complete(ctx context.Context, id, actor string) (*domain.JobCard, error) {
	return s.transition(ctx, id, domain.JobStatusCompleted, actor, "completed", func(card *domain.JobCard) error {
		if card.Status != domain.JobStatusInProgress && card.Status != domain.JobStatusPendingReview {
			return invalidStatus(fmt.Sprintf("Cannot complete job card in status %s", card.Status), card.Status, domain.JobStatusCompleted)
		}
		return nil
	})
}

// Cancel stops a card that has not reached a final status.
func (s *JobCardService) Cancel(ctx context.Context, id, reason, actor string) (*domain.JobCard, error) {
	return s.transition(ctx, id, domain.JobStatusCancelled, actor, reason, func(card *domain.JobCard) error {
		if card.Status.IsFinal() {
			return invalidStatus(fmt.Sprintf("Cannot cancel job card in final status %s", card.Status), card.Status, domain.JobStatusCancelled)
		}
		return nil
	})
}

// ChangeStatus applies any transition the lifecycle table allows.
func (s *JobCardService) ChangeStatus(ctx context.Context, id string, next domain.JobStatus, reason, actor string) (*domain.JobCard, error) {
	if !next.Valid() {
		return nil, apperrors.NewFieldErrors(map[string]string{"status": "Unknown job status"})
	}
	return s.transition(ctx, id, next, actor, reason, func(card *domain.JobCard) error {
		if !card.Status.CanTransitionTo(next) {
			return apperrors.NewInvalidTransition(string(card.Status), string(next))
		}
		return nil
	})
}

func invalidStatus(msg string, from, to domain.JobStatus) error {
	return apperrors.NewDomainError(apperrors.CodeInvalidTransition, msg, http.StatusUnprocessableEntity, apperrors.KindBusiness,
		map[string]any{"from": string(from), "to": string(to)})
}

func (s *JobCardService) transition(ctx context.Context, id string, next domain.JobStatus, actor, reason string, guard func(*domain.JobCard) error) (*domain.JobCard, error) {
	var changed *domain.JobCard
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := guard(card); err != nil {
			return err
		}
		if err := s.applyStatus(ctx, card, next, actor, reason); err != nil {
			return err
		}
		changed = card
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("job card status changed",
		zap.String("job_number", changed.JobNumber),
		zap.String("status", string(next)),
		zap.String("changed_by", actor))
	return changed, nil
}

// applyStatus sets next on card, stamps timing fields, saves, records
// history and queues events. It must run inside a transaction.
func (s *JobCardService) applyStatus(ctx context.Context, card *domain.JobCard, next domain.JobStatus, actor, reason string) error {
	old := card.Status
	now := s.now()
	card.Status = next
	switch next {
	case domain.JobStatusInProgress:
		if card.StartedAt == nil {
			card.StartedAt = &now
		}
	case domain.JobStatusCompleted:
		if card.CompletedAt == nil {
			card.CompletedAt = &now
			if card.StartedAt != nil {
				minutes := int(now.Sub(*card.StartedAt).Minutes())
				card.ActualDurationMinutes = &minutes
			}
		}
	}

	if err := s.save(ctx, card); err != nil {
		return err
	}
	if err := s.recordHistory(ctx, card.ID, &old, next, actor, reason); err != nil {
		return err
	}

	s.events.publish(ctx, events.Event{
		Type:      events.EventJobCardStatusChanged,
		SubjectID: card.ID,
		Actor:     actor,
		Payload: events.JobCardStatusChangedPayload{
			JobNumber: card.JobNumber,
			OldStatus: old,
			NewStatus: next,
			Reason:    reason,
		},
	})
	if next == domain.JobStatusCompleted {
		s.events.publish(ctx, events.Event{
			Type:      events.EventJobCardCompleted,
			SubjectID: card.ID,
			Actor:     actor,
			Payload: events.JobCardCompletedPayload{
				JobNumber:             card.JobNumber,
				CompletedAt:           *card.CompletedAt,
				ActualDurationMinutes: card.ActualDurationMinutes,
			},
		})
	}
	return nil
}

// Delete removes a DRAFT job card permanently.
func (s *JobCardService) Delete(ctx context.Context, id string) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if card.Status != domain.JobStatusDraft {
			return apperrors.NewBusinessError(apperrors.CodeJobCardInvalidStatus, "Can only delete job cards in DRAFT status", map[string]any{"status": card.Status})
		}
		return s.cards.Delete(ctx, card.ID)
	})
	return apperrors.MapError(err)
}

// StatusCounts returns a count for every status, zero when absent.
func (s *JobCardService) StatusCounts(ctx context.Context) (map[domain.JobStatus]int64, error) {
	counts, err := s.cards.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make(map[domain.JobStatus]int64, len(domain.AllJobStatuses))
	for _, status := range domain.AllJobStatuses {
		out[status] = counts[status]
	}
	return out, nil
}

// AverageCompletionMinutes is nil until some card has an actual duration.
func (s *JobCardService) AverageCompletionMinutes(ctx context.Context) (*float64, error) {
	avg, err := s.cards.AverageCompletionMinutes(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return avg, nil
}

// ExceedingEstimate lists cards whose actual duration exceeded the estimate.
func (s *JobCardService) ExceedingEstimate(ctx context.Context) ([]domain.JobCard, error) {
	items, err := s.cards.ListExceedingEstimate(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Stats gathers the dashboard figures in one call.
func (s *JobCardService) Stats(ctx context.Context) (*JobCardStats, error) {
	counts, err := s.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := s.AverageCompletionMinutes(ctx)
	if err != nil {
		return nil, err
	}
	exceeding, err := s.ExceedingEstimate(ctx)
	if err != nil {
		return nil, err
	}
	return &JobCardStats{StatusCounts: counts, AverageCompletionMinutes: avg, ExceedingEstimate: len(exceeding)}, nil
}

// History returns the status audit trail, oldest first.
func (s *JobCardService) History(ctx context.Context, id string) ([]domain.JobCardStatusHistory, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.history.ListByJobCard(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

func (s *JobCardService) load(ctx context.Context, id string) (*domain.JobCard, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Job card", map[string]any{"jobCardId": id})
	}
	return card, nil
}

func (s *JobCardService) save(ctx context.Context, card *domain.JobCard) error {
	if err := s.cards.Update(ctx, card); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConcurrencyConflict("Job card", card.ID)
		}
		return lookupError(err, "Job card", map[string]any{"jobCardId": card.ID})
	}
	return nil
}

func (s *JobCardService) recordHistory(ctx context.Context, cardID string, from *domain.JobStatus, to domain.JobStatus, actor, reason string) error {
	return s.history.Create(ctx, &domain.JobCardStatusHistory{
		JobCardID:  cardID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
		Reason:     reason,
		ChangedAt:  s.now(),
	})
}

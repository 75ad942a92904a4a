package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/dto"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
	"github.com/spec-kit/jobcard-service/internal/specification"
	"github.com/spec-kit/jobcard-service/internal/service"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// JobCards is the job card lifecycle the API drives.
type JobCards interface {
	Create(ctx context.Context, input service.JobCardCreateInput, actor string) (*domain.JobCard, error)
	Update(ctx context.Context, id string, input service.JobCardUpdateInput) (*domain.JobCard, error)
	GetByID(ctx context.Context, id string) (*domain.JobCard, error)
	GetByJobNumber(ctx context.Context, jobNumber string) (*domain.JobCard, error)
	List(ctx context.Context, filter specification.JobCardFilter, page repository.Page) (repository.PageResult[domain.JobCard], error)
	Search(ctx context.Context, term string, page repository.Page) (repository.PageResult[domain.JobCard], error)
	ActiveByUser(ctx context.Context, userID string, page repository.Page) (repository.PageResult[domain.JobCard], error)
	Overdue(ctx context.Context, page repository.Page) (repository.PageResult[domain.JobCard], error)
	Start(ctx context.Context, id, actor string) (*domain.JobCard, error)
	Complete(ctx context.Context, id, actor string) (*domain.JobCard, error)
	Cancel(ctx context.Context, id, reason, actor string) (*domain.JobCard, error)
	ChangeStatus(ctx context.Context, id string, next domain.JobStatus, reason, actor string) (*domain.JobCard, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*service.JobCardStats, error)
	History(ctx context.Context, id string) ([]domain.JobCardStatusHistory, error)
}

// Assigner moves job cards between technicians.
type Assigner interface {
	Assign(ctx context.Context, jobCardID, assignee, reason, actor string) (*domain.JobCard, error)
	Unassign(ctx context.Context, jobCardID, reason, actor string) (*domain.JobCard, error)
	History(ctx context.Context, jobCardID string) ([]domain.JobCardAssignment, error)
}

// JobCardsHandler exposes the job card lifecycle.
type JobCardsHandler struct {
	cards       JobCards
	assignments Assigner
	validator   *validation.Validator
	now         func() time.Time
}

// NewJobCardsHandler constructs handler.
func NewJobCardsHandler(cards JobCards, assignments Assigner, v *validation.Validator) *JobCardsHandler {
	return &JobCardsHandler{cards: cards, assignments: assignments, validator: v, now: time.Now}
}

func (h *JobCardsHandler) one(c *fiber.Ctx, status int, card *domain.JobCard, err error) error {
	if err != nil {
		return err
	}
	return data(c, status, dto.NewJobCardResponse(card, h.now()))
}

// List GET /job-cards with optional status, priority, assignedTo, createdBy,
// templateId, search, overdue and createdFrom/createdTo/targetFrom/targetTo.
func (h *JobCardsHandler) List(c *fiber.Ctx) error {
	filter, err := jobCardFilter(c)
	if err != nil {
		return err
	}
	result, err := h.cards.List(c.UserContext(), filter, pageQuery(c))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, pageOf(result, dto.NewJobCardResponses(result.Items, h.now())))
}

func jobCardFilter(c *fiber.Ctx) (specification.JobCardFilter, error) {
	filter := specification.JobCardFilter{
		AssignedTo:  c.Query("assignedTo"),
		CreatedBy:   c.Query("createdBy"),
		TemplateID:  c.Query("templateId"),
		Search:      c.Query("search"),
		OverdueOnly: c.QueryBool("overdue"),
	}
	for _, s := range csvQuery(c, "status") {
		status := domain.JobStatus(s)
		if !status.Valid() {
			return filter, apperrors.NewFieldErrors(map[string]string{"status": "Unknown job status " + s})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, p := range csvQuery(c, "priority") {
		priority := domain.Priority(p)
		if !priority.Valid() {
			return filter, apperrors.NewFieldErrors(map[string]string{"priority": "Unknown priority " + p})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	bounds := map[string]**time.Time{
		"createdFrom": &filter.CreatedFrom,
		"createdTo":   &filter.CreatedTo,
		"targetFrom":  &filter.TargetFrom,
		"targetTo":    &filter.TargetTo,
	}
	for key, dst := range bounds {
		t, err := timeQuery(c, key)
		if err != nil {
			return filter, err
		}
		*dst = t
	}
	return filter, nil
}

// timeQuery accepts RFC 3339 timestamps or plain dates.
func timeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewFieldErrors(map[string]string{key: "Must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
}

// Search GET /job-cards/search?q=.
func (h *JobCardsHandler) Search(c *fiber.Ctx) error {
	result, err := h.cards.Search(c.UserContext(), c.Query("q"), pageQuery(c))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, pageOf(result, dto.NewJobCardResponses(result.Items, h.now())))
}

// Overdue GET /job-cards/overdue.
func (h *JobCardsHandler) Overdue(c *fiber.Ctx) error {
	result, err := h.cards.Overdue(c.UserContext(), pageQuery(c))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, pageOf(result, dto.NewJobCardResponses(result.Items, h.now())))
}

// MyActive GET /job-cards/my/active.
func (h *JobCardsHandler) MyActive(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	result, err := h.cards.ActiveByUser(c.UserContext(), actor, pageQuery(c))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, pageOf(result, dto.NewJobCardResponses(result.Items, h.now())))
}

// Stats GET /job-cards/stats.
func (h *JobCardsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.cards.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, stats)
}

// Create POST /job-cards.
func (h *JobCardsHandler) Create(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.CreateJobCardRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	card, err := h.cards.Create(c.UserContext(), service.JobCardCreateInput{
		TemplateID:               req.TemplateID,
		Title:                    req.Title,
		Description:              req.Description,
		Priority:                 req.Priority,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		TargetCompletionDate:     req.TargetCompletionDate,
		DynamicFields:            req.DynamicFields,
	}, actor)
	return h.one(c, fiber.StatusCreated, card, err)
}

// Get GET /job-cards/:id.
func (h *JobCardsHandler) Get(c *fiber.Ctx) error {
	card, err := h.cards.GetByID(c.UserContext(), c.Params("id"))
	return h.one(c, fiber.StatusOK, card, err)
}

// GetByNumber GET /job-cards/number/:jobNumber.
func (h *JobCardsHandler) GetByNumber(c *fiber.Ctx) error {
	card, err := h.cards.GetByJobNumber(c.UserContext(), c.Params("jobNumber"))
	return h.one(c, fiber.StatusOK, card, err)
}

// Update PUT /job-cards/:id.
func (h *JobCardsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateJobCardRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	card, err := h.cards.Update(c.UserContext(), c.Params("id"), service.JobCardUpdateInput{
		Title:                    req.Title,
		Description:              req.Description,
		Priority:                 req.Priority,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		TargetCompletionDate:     req.TargetCompletionDate,
		DynamicFields:            req.DynamicFields,
		Version:                  req.Version,
	})
	return h.one(c, fiber.StatusOK, card, err)
}

// Delete DELETE /job-cards/:id.
func (h *JobCardsHandler) Delete(c *fiber.Ctx) error {
	if err := h.cards.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Start POST /job-cards/:id/start.
func (h *JobCardsHandler) Start(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	card, err := h.cards.Start(c.UserContext(), c.Params("id"), actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// Complete POST /job-cards/:id/complete.
func (h *JobCardsHandler) Complete(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	card, err := h.cards.Complete(c.UserContext(), c.Params("id"), actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// Cancel POST /job-cards/:id/cancel.
func (h *JobCardsHandler) Cancel(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	card, err := h.cards.Cancel(c.UserContext(), c.Params("id"), req.Reason, actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// ChangeStatus POST /job-cards/:id/status.
func (h *JobCardsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.StatusChangeRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	card, err := h.cards.ChangeStatus(c.UserContext(), c.Params("id"), req.Status, req.Reason, actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// Assign POST /job-cards/:id/assign.
func (h *JobCardsHandler) Assign(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	card, err := h.assignments.Assign(c.UserContext(), c.Params("id"), req.AssignedTo, req.Reason, actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// Unassign POST /job-cards/:id/unassign.
func (h *JobCardsHandler) Unassign(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.OptionalReasonRequest
	if len(c.Body()) > 0 {
		if err := bind(c, h.validator, &req); err != nil {
			return err
		}
	}
	card, err := h.assignments.Unassign(c.UserContext(), c.Params("id"), req.Reason, actor)
	return h.one(c, fiber.StatusOK, card, err)
}

// History GET /job-cards/:id/history.
func (h *JobCardsHandler) History(c *fiber.Ctx) error {
	entries, err := h.cards.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewStatusHistoryResponses(entries))
}

// Assignments GET /job-cards/:id/assignments.
func (h *JobCardsHandler) Assignments(c *fiber.Ctx) error {
	items, err := h.assignments.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewAssignmentResponses(items))
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/repository"
	"github.com/spec-kit/jobcard-service/internal/specification"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type idSeq struct {
	mu sync.Mutex
	n  int
}

func (s *idSeq) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

type fakeUserRepo struct {
	ids        idSeq
	users      map[string]*domain.User
	rejections []domain.UserRejection
	logins     []string
	failCreate error
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	u.ID = r.ids.next("user")
	u.CreatedAt, u.UpdatedAt = fixedNow, fixedNow
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *fakeUserRepo) ExistsByEmployeeID(_ context.Context, employeeID string) (bool, error) {
	for _, u := range r.users {
		if u.EmployeeID != nil && *u.EmployeeID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) ListByStatus(_ context.Context, status domain.UserStatus, _ repository.Page) ([]domain.User, int64, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.Status == status {
			out = append(out, *u)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) List(_ context.Context, _ repository.Page) ([]domain.User, int64, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.Status != domain.UserStatusDeleted {
			out = append(out, *u)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) CountByStatus(ctx context.Context, status domain.UserStatus) (int64, error) {
	_, n, err := r.ListByStatus(ctx, status, repository.Page{})
	return n, err
}

func (r *fakeUserRepo) RecordRejection(_ context.Context, rej *domain.UserRejection) error {
	rej.ID = r.ids.next("rejection")
	r.rejections = append(r.rejections, *rej)
	return nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id string) error {
	r.logins = append(r.logins, id)
	return nil
}

type fakeRoleRepo struct {
	ids   idSeq
	roles map[string]*domain.Role
}

func newFakeRoleRepo(roles ...*domain.Role) *fakeRoleRepo {
	r := &fakeRoleRepo{roles: map[string]*domain.Role{}}
	for _, role := range roles {
		r.roles[role.ID] = role
	}
	return r
}

func (r *fakeRoleRepo) Create(_ context.Context, role *domain.Role) error {
	role.ID = r.ids.next("role")
	copied := *role
	r.roles[role.ID] = &copied
	return nil
}

func (r *fakeRoleRepo) GetByID(_ context.Context, id string) (*domain.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *role
	return &copied, nil
}

func (r *fakeRoleRepo) GetByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			copied := *role
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRoleRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Role, error) {
	var out []domain.Role
	for _, id := range ids {
		if role, ok := r.roles[id]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) List(_ context.Context) ([]domain.Role, error) {
	var out []domain.Role
	for _, role := range r.roles {
		out = append(out, *role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeUserRoleRepo struct {
	ids     idSeq
	roles   *fakeRoleRepo
	grants  []*domain.UserRole
	lookups int
}

func (r *fakeUserRoleRepo) Assign(_ context.Context, grant *domain.UserRole) error {
	grant.ID = r.ids.next("grant")
	copied := *grant
	r.grants = append(r.grants, &copied)
	return nil
}

func (r *fakeUserRoleRepo) FindActive(_ context.Context, userID, roleID string) (*domain.UserRole, error) {
	for _, g := range r.grants {
		if g.UserID == userID && g.RoleID == roleID && g.Status == domain.UserRoleStatusActive {
			copied := *g
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRoleRepo) UpdateStatus(_ context.Context, id string, status domain.UserRoleStatus) error {
	for _, g := range r.grants {
		if g.ID == id {
			g.Status = status
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeUserRoleRepo) ListActiveRoleNames(_ context.Context, userID string) ([]string, error) {
	r.lookups++
	var names []string
	for _, g := range r.grants {
		if g.UserID != userID || g.Status != domain.UserRoleStatusActive {
			continue
		}
		if role, ok := r.roles.roles[g.RoleID]; ok {
			names = append(names, role.Name)
		}
	}
	return names, nil
}

func (r *fakeUserRoleRepo) ListByUser(_ context.Context, userID string) ([]domain.UserRole, error) {
	var out []domain.UserRole
	for _, g := range r.grants {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

type fakeVerificationRepo struct {
	ids   idSeq
	codes []*domain.EmailVerification
}

func (r *fakeVerificationRepo) Create(_ context.Context, v *domain.EmailVerification) error {
	v.ID = r.ids.next("code")
	v.CreatedAt = fixedNow
	copied := *v
	r.codes = append(r.codes, &copied)
	return nil
}

func (r *fakeVerificationRepo) GetLatestForUser(_ context.Context, userID string) (*domain.EmailVerification, error) {
	for i := len(r.codes) - 1; i >= 0; i-- {
		if r.codes[i].UserID == userID && r.codes[i].UsedAt == nil {
			copied := *r.codes[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeVerificationRepo) MarkUsed(_ context.Context, id string) error {
	for _, c := range r.codes {
		if c.ID == id {
			now := fixedNow
			c.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeJobCardRepo struct {
	ids       idSeq
	cards     map[string]*domain.JobCard
	lastSpec  specification.Spec
	counts    map[domain.JobStatus]int64
	avg       *float64
	exceeding []domain.JobCard
	conflict  bool
}

func newFakeJobCardRepo(cards ...*domain.JobCard) *fakeJobCardRepo {
	r := &fakeJobCardRepo{cards: map[string]*domain.JobCard{}}
	for _, c := range cards {
		if c.Version == 0 {
			c.Version = 1
		}
		r.cards[c.ID] = c
	}
	return r
}

func (r *fakeJobCardRepo) Create(_ context.Context, c *domain.JobCard) error {
	c.ID = r.ids.next("card")
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = fixedNow, fixedNow
	copied := *c
	r.cards[c.ID] = &copied
	return nil
}

func (r *fakeJobCardRepo) Update(_ context.Context, c *domain.JobCard) error {
	stored, ok := r.cards[c.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if r.conflict || stored.Version != c.Version {
		return repository.ErrVersionConflict
	}
	c.Version++
	copied := *c
	r.cards[c.ID] = &copied
	return nil
}

func (r *fakeJobCardRepo) GetByID(_ context.Context, id string) (*domain.JobCard, error) {
	c, ok := r.cards[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r *fakeJobCardRepo) GetByJobNumber(_ context.Context, number string) (*domain.JobCard, error) {
	for _, c := range r.cards {
		if c.JobNumber == number {
			copied := *c
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeJobCardRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.cards[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.cards, id)
	return nil
}

func (r *fakeJobCardRepo) FindPage(_ context.Context, spec specification.Spec, _ repository.Page) ([]domain.JobCard, int64, error) {
	r.lastSpec = spec
	var out []domain.JobCard
	for _, c := range r.cards {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeJobCardRepo) CountByStatus(_ context.Context) (map[domain.JobStatus]int64, error) {
	return r.counts, nil
}

func (r *fakeJobCardRepo) AverageCompletionMinutes(_ context.Context) (*float64, error) {
	return r.avg, nil
}

func (r *fakeJobCardRepo) ListExceedingEstimate(_ context.Context) ([]domain.JobCard, error) {
	return r.exceeding, nil
}

func (r *fakeJobCardRepo) MaxJobSequence(_ context.Context, prefix string, year int) (int64, error) {
	marker := fmt.Sprintf("%s-%d-", prefix, year)
	var seq int64
	for _, c := range r.cards {
		i := strings.LastIndex(c.JobNumber, marker)
		if i < 0 || (i > 0 && c.JobNumber[i-1] != '-') {
			continue
		}
		if n, err := strconv.ParseInt(c.JobNumber[i+len(marker):], 10, 64); err == nil && n > seq {
			seq = n
		}
	}
	return seq, nil
}

type fakeTemplateRepo struct {
	ids       idSeq
	templates map[string]*domain.JobCardTemplate
}

func newFakeTemplateRepo(tpls ...*domain.JobCardTemplate) *fakeTemplateRepo {
	r := &fakeTemplateRepo{templates: map[string]*domain.JobCardTemplate{}}
	for _, t := range tpls {
		r.templates[t.ID] = t
	}
	return r
}

func (r *fakeTemplateRepo) Create(_ context.Context, t *domain.JobCardTemplate) error {
	t.ID = r.ids.next("tpl")
	copied := *t
	r.templates[t.ID] = &copied
	return nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id string) (*domain.JobCardTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTemplateRepo) List(_ context.Context, activeOnly bool) ([]domain.JobCardTemplate, error) {
	var out []domain.JobCardTemplate
	for _, t := range r.templates {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type fakeHistoryRepo struct {
	rows []domain.JobCardStatusHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *domain.JobCardStatusHistory) error {
	h.ID = fmt.Sprintf("hist-%d", len(r.rows)+1)
	r.rows = append(r.rows, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByJobCard(_ context.Context, id string) ([]domain.JobCardStatusHistory, error) {
	var out []domain.JobCardStatusHistory
	for _, h := range r.rows {
		if h.JobCardID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeAssignmentRepo struct {
	ids  idSeq
	rows []*domain.JobCardAssignment
}

func (r *fakeAssignmentRepo) Create(_ context.Context, a *domain.JobCardAssignment) error {
	a.ID = r.ids.next("asg")
	a.IsActive = true
	a.AssignedAt = fixedNow
	copied := *a
	r.rows = append(r.rows, &copied)
	return nil
}

func (r *fakeAssignmentRepo) FindActiveByJobCard(_ context.Context, jobCardID string) (*domain.JobCardAssignment, error) {
	for _, a := range r.rows {
		if a.JobCardID == jobCardID && a.IsActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) Deactivate(_ context.Context, id, reason string) error {
	for _, a := range r.rows {
		if a.ID == id && a.IsActive {
			now := fixedNow
			a.IsActive, a.UnassignedAt, a.UnassignmentReason = false, &now, reason
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) ListByJobCard(_ context.Context, jobCardID string) ([]domain.JobCardAssignment, error) {
	var out []domain.JobCardAssignment
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].JobCardID == jobCardID {
			out = append(out, *r.rows[i])
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) ListActiveByUser(_ context.Context, userID string) ([]domain.JobCardAssignment, error) {
	var out []domain.JobCardAssignment
	for _, a := range r.rows {
		if a.AssignedTo == userID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	items, _ := r.ListActiveByUser(ctx, userID)
	return int64(len(items)), nil
}

// eventRecorder is a synchronous dispatcher that remembers what was published.
type eventRecorder struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{Dispatcher: events.NewInMemoryDispatcher(zap.NewNop())}
}

func (r *eventRecorder) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	r.published = append(r.published, event)
	r.mu.Unlock()
	return r.Dispatcher.Publish(ctx, event)
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.published))
	for _, e := range r.published {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) last(t events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.published) - 1; i >= 0; i-- {
		if r.published[i].Type == t {
			return r.published[i], true
		}
	}
	return events.Event{}, false
}

type stubNumbers struct {
	n int
}

func (s *stubNumbers) Next(context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("JC-2026-%04d", s.n), nil
}

func (s *stubNumbers) NextWithCategory(ctx context.Context, category string) (string, error) {
	n, _ := s.Next(ctx)
	return categoryPrefix(category) + "-" + n, nil
}

func strPtr(s string) *string { return &s }

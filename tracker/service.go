/*
service.go - Validated mutation services for the upper tree levels

PURPOSE:
  All writes to the tree go through the Service. Each mutation:
  1. Resolves the referenced parent (a dangling reference FAILS the field;
     the engine does not silently skip dependent validation)
  2. Validates shape (enums, names) and dates against the resolved window
  3. Runs the weight-budget check INSIDE a store transaction, so the
     read-validate-write on the shared 100.00 ceiling serializes per parent
  4. Stamps audit fields from the acting principal

REQUEST FLOW:
  api handler -> Service method -> hierarchy validators -> Store

ERROR CONTRACT:
  - hierarchy.FieldErrors: per-field validation failures (400)
  - *PermissionError: role-based action denial (403)
  - ErrNotFound: missing or out-of-scope rows (404)
  - ErrInUse: delete blocked by children (409)

SEE ALSO:
  - tasks.go: MajorActivity and Task mutations
  - completion.go: The read-side completion pass
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
)

// PermissionError is a role-based action denial: distinct from row-level
// scoping, which reads as NotFound.
type PermissionError struct {
	Detail string
}

func (e *PermissionError) Error() string { return e.Detail }

// Service executes validated mutations and completion reads against a Store.
type Service struct {
	store   Store
	overdue hierarchy.OverduePolicy
	now     func() hierarchy.Date
}

// Option configures a Service.
type Option func(*Service)

// WithOverduePolicy overrides the default past-due policy (for example
// with hierarchy.LegacyFutureOverdue).
func WithOverduePolicy(p hierarchy.OverduePolicy) Option {
	return func(s *Service) { s.overdue = p }
}

// WithClock overrides the "today" source, for tests.
func WithClock(now func() hierarchy.Date) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service with the corrected overdue policy.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		overdue: hierarchy.OverdueWhenPastDue,
		now:     hierarchy.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for transport-level reads that need
// no domain logic (demo seeding, health checks).
func (s *Service) Store() Store { return s.store }

// =============================================================================
// SHARED VALIDATION HELPERS
// =============================================================================

func validateNodeName(fields hierarchy.FieldErrors, name string) {
	if strings.TrimSpace(name) == "" {
		fields.Add("name", "Name is required.")
	}
}

func validateStatus(fields hierarchy.FieldErrors, status hierarchy.Status) {
	if !status.Valid() {
		fields.Add("status", fmt.Sprintf("'%s' is not a valid status.", status))
	}
}

func mergeFields(dst, src hierarchy.FieldErrors) {
	for field, msgs := range src {
		for _, m := range msgs {
			dst.Add(field, m)
		}
	}
}

func toSiblingWeights[T any](items []T, id func(T) uuid.UUID, weight func(T) decimal.Decimal) []hierarchy.SiblingWeight {
	out := make([]hierarchy.SiblingWeight, 0, len(items))
	for _, it := range items {
		out = append(out, hierarchy.SiblingWeight{ID: id(it), Weight: weight(it)})
	}
	return out
}

func milestoneSiblings(ms []Milestone) []hierarchy.SiblingWeight {
	return toSiblingWeights(ms,
		func(m Milestone) uuid.UUID { return m.ID },
		func(m Milestone) decimal.Decimal { return m.Weight })
}

func activitySiblings(as []MajorActivity) []hierarchy.SiblingWeight {
	return toSiblingWeights(as,
		func(a MajorActivity) uuid.UUID { return a.ID },
		func(a MajorActivity) decimal.Decimal { return a.Weight })
}

func taskSiblings(ts []Task) []hierarchy.SiblingWeight {
	return toSiblingWeights(ts,
		func(t Task) uuid.UUID { return t.ID },
		func(t Task) decimal.Decimal { return t.Weight })
}

// =============================================================================
// KSI
// =============================================================================

// KSIInput is a full KSI payload for create.
type KSIInput struct {
	Name        string
	Description string
	StartDate   hierarchy.Date
	EndDate     hierarchy.Date
	Status      hierarchy.Status
}

// KSIPatch is a partial update; nil fields keep their current values.
type KSIPatch struct {
	Name        *string
	Description *string
	StartDate   *hierarchy.Date
	EndDate     *hierarchy.Date
	Status      *hierarchy.Status
}

// GetKSI returns a KSI visible to the actor, or ErrNotFound.
func (s *Service) GetKSI(ctx context.Context, actor Actor, id uuid.UUID) (*KSI, error) {
	ksi, err := s.store.GetKSI(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.ksiInScope(ksi, ResolveScope(hierarchy.LevelKSI, actor)) {
		return nil, ErrNotFound
	}
	return ksi, nil
}

// ListKSIs returns the KSIs in the actor's scope.
func (s *Service) ListKSIs(ctx context.Context, actor Actor, q Query) ([]KSI, error) {
	q.Scope = ResolveScope(hierarchy.LevelKSI, actor)
	return s.store.ListKSIs(ctx, q)
}

// CreateKSI creates a root node owned by the actor's own department. An
// actor without a position/department may not create KSIs at all.
func (s *Service) CreateKSI(ctx context.Context, actor Actor, in KSIInput) (*KSI, error) {
	if actor.DepartmentID() == nil {
		return nil, &PermissionError{Detail: "You are not authorized to perform this action, no associated department."}
	}

	if in.Status == "" {
		in.Status = hierarchy.StatusNotStarted
	}

	fields := hierarchy.FieldErrors{}
	validateNodeName(fields, in.Name)
	validateStatus(fields, in.Status)
	mergeFields(fields, hierarchy.ValidateRange(in.StartDate, in.EndDate, nil, 0))
	if !fields.Empty() {
		return nil, fields
	}

	ksi := &KSI{
		ID:           uuid.New(),
		DepartmentID: *actor.DepartmentID(),
		Name:         in.Name,
		Description:  in.Description,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Status:       in.Status,
		Audit:        Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}
	if err := s.store.CreateKSI(ctx, ksi); err != nil {
		return nil, err
	}
	return ksi, nil
}

// UpdateKSI applies a partial update to a KSI in the actor's scope.
func (s *Service) UpdateKSI(ctx context.Context, actor Actor, id uuid.UUID, patch KSIPatch) (*KSI, error) {
	ksi, err := s.GetKSI(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *ksi
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.StartDate != nil {
		next.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		next.EndDate = *patch.EndDate
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}

	fields := hierarchy.FieldErrors{}
	validateNodeName(fields, next.Name)
	validateStatus(fields, next.Status)
	// Both sides validate against each other's FINAL values.
	mergeFields(fields, hierarchy.ValidateRange(next.StartDate, next.EndDate, nil, 0))
	if !fields.Empty() {
		return nil, fields
	}

	next.UpdatedBy = actor.ID
	if err := s.store.UpdateKSI(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteKSI removes a KSI; blocked while milestones reference it.
func (s *Service) DeleteKSI(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetKSI(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteKSI(ctx, id)
}

func ksiWindow(k *KSI) *hierarchy.ParentWindow {
	return &hierarchy.ParentWindow{
		Bounds: hierarchy.Bounds{Start: k.StartDate, End: k.EndDate},
		Kind:   "KSI",
		Name:   k.Name,
	}
}

// =============================================================================
// MILESTONE
// =============================================================================

type MilestoneInput struct {
	KSIID       uuid.UUID
	Name        string
	Description string
	StartDate   hierarchy.Date
	EndDate     hierarchy.Date
	Weight      decimal.Decimal
	Status      hierarchy.Status
}

type MilestonePatch struct {
	KSIID       *uuid.UUID
	Name        *string
	Description *string
	StartDate   *hierarchy.Date
	EndDate     *hierarchy.Date
	Weight      *decimal.Decimal
	Status      *hierarchy.Status
}

func (s *Service) GetMilestone(ctx context.Context, actor Actor, id uuid.UUID) (*Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.milestoneInScope(ctx, m, ResolveScope(hierarchy.LevelMilestone, actor))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *Service) ListMilestones(ctx context.Context, actor Actor, q Query) ([]Milestone, error) {
	q.Scope = ResolveScope(hierarchy.LevelMilestone, actor)
	return s.store.ListMilestones(ctx, q)
}

func (s *Service) CreateMilestone(ctx context.Context, actor Actor, in MilestoneInput) (*Milestone, error) {
	if in.Status == "" {
		in.Status = hierarchy.StatusNotStarted
	}

	fields := hierarchy.FieldErrors{}

	ksi, err := s.store.GetKSI(ctx, in.KSIID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("ksi", (&hierarchy.ParentNotFoundError{ParentKind: "KSI"}).Error())
		return nil, fields
	}
	if err != nil {
		return nil, err
	}

	validateNodeName(fields, in.Name)
	validateStatus(fields, in.Status)
	mergeFields(fields, hierarchy.ValidateRange(in.StartDate, in.EndDate, ksiWindow(ksi), 0))
	if err := hierarchy.ValidateWeightRange(in.Weight); err != nil {
		fields.Add("weight", err.Error())
	}
	if !fields.Empty() {
		return nil, fields
	}

	m := &Milestone{
		ID:          uuid.New(),
		KSIID:       ksi.ID,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Weight:      in.Weight,
		Status:      in.Status,
		Audit:       Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		siblings, err := tx.ListMilestonesByKSI(ctx, ksi.ID)
		if err != nil {
			return err
		}
		msgPart := fmt.Sprintf("milestones under the KSI '%s'", ksi.Name)
		if err := hierarchy.ValidateWeightBudget(in.Weight, milestoneSiblings(siblings), uuid.Nil, hierarchy.MaxWeight, msgPart); err != nil {
			fe := hierarchy.FieldErrors{}
			fe.Add("weight", err.Error())
			return fe
		}
		return tx.CreateMilestone(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) UpdateMilestone(ctx context.Context, actor Actor, id uuid.UUID, patch MilestonePatch) (*Milestone, error) {
	m, err := s.GetMilestone(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *m
	if patch.KSIID != nil {
		next.KSIID = *patch.KSIID
	}
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.StartDate != nil {
		next.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		next.EndDate = *patch.EndDate
	}
	if patch.Weight != nil {
		next.Weight = *patch.Weight
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}

	fields := hierarchy.FieldErrors{}
	ksi, err := s.store.GetKSI(ctx, next.KSIID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("ksi", (&hierarchy.ParentNotFoundError{ParentKind: "KSI"}).Error())
		return nil, fields
	}
	if err != nil {
		return nil, err
	}

	validateNodeName(fields, next.Name)
	validateStatus(fields, next.Status)
	mergeFields(fields, hierarchy.ValidateRange(next.StartDate, next.EndDate, ksiWindow(ksi), 0))
	if err := hierarchy.ValidateWeightRange(next.Weight); err != nil {
		fields.Add("weight", err.Error())
	}
	if !fields.Empty() {
		return nil, fields
	}

	next.UpdatedBy = actor.ID
	err = s.store.WithTx(ctx, func(tx Store) error {
		siblings, err := tx.ListMilestonesByKSI(ctx, ksi.ID)
		if err != nil {
			return err
		}
		msgPart := fmt.Sprintf("milestones under the KSI '%s'", ksi.Name)
		if err := hierarchy.ValidateWeightBudget(next.Weight, milestoneSiblings(siblings), next.ID, hierarchy.MaxWeight, msgPart); err != nil {
			fe := hierarchy.FieldErrors{}
			fe.Add("weight", err.Error())
			return fe
		}
		return tx.UpdateMilestone(ctx, &next)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) DeleteMilestone(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetMilestone(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteMilestone(ctx, id)
}

// =============================================================================
// KPI
// =============================================================================

type KPIInput struct {
	MilestoneID uuid.UUID
	Name        string
	Description string
	StartDate   *hierarchy.Date
	EndDate     *hierarchy.Date
	Status      hierarchy.KPIStatus
	PlannedKPI  int
}

type KPIPatch struct {
	MilestoneID *uuid.UUID
	Name        *string
	Description *string
	StartDate   *hierarchy.Date
	EndDate     *hierarchy.Date
	Status      *hierarchy.KPIStatus
	PlannedKPI  *int
}

func (s *Service) GetKPI(ctx context.Context, actor Actor, id uuid.UUID) (*KPI, error) {
	k, err := s.store.GetKPI(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.kpiInScope(ctx, k, ResolveScope(hierarchy.LevelKPI, actor))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (s *Service) ListKPIs(ctx context.Context, actor Actor, q Query) ([]KPI, error) {
	q.Scope = ResolveScope(hierarchy.LevelKPI, actor)
	return s.store.ListKPIs(ctx, q)
}

// validateKPIDates checks whichever of the optional dates are present
// against each other and the milestone window.
func validateKPIDates(fields hierarchy.FieldErrors, start, end *hierarchy.Date, m *Milestone) {
	if start != nil && end != nil && end.Before(*start) {
		fields.Add("end_date", (&hierarchy.DateOutOfRangeError{Kind: "inverted"}).Error())
	}
	if start != nil && start.Before(m.StartDate) {
		fields.Add("start_date", (&hierarchy.DateOutOfRangeError{
			Kind: "too_early", Limit: m.StartDate, ParentKind: "milestone", ParentName: m.Name,
		}).Error())
	}
	if end != nil && end.After(m.EndDate) {
		fields.Add("end_date", (&hierarchy.DateOutOfRangeError{
			Kind: "too_late", Limit: m.EndDate, ParentKind: "milestone", ParentName: m.Name,
		}).Error())
	}
}

func (s *Service) CreateKPI(ctx context.Context, actor Actor, in KPIInput) (*KPI, error) {
	if in.Status == "" {
		in.Status = hierarchy.KPIPending
	}
	if in.PlannedKPI == 0 {
		in.PlannedKPI = 1
	}

	fields := hierarchy.FieldErrors{}
	m, err := s.store.GetMilestone(ctx, in.MilestoneID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("milestone", (&hierarchy.ParentNotFoundError{ParentKind: "milestone"}).Error())
		return nil, fields
	}
	if err != nil {
		return nil, err
	}

	validateNodeName(fields, in.Name)
	if !in.Status.Valid() {
		fields.Add("status", fmt.Sprintf("'%s' is not a valid KPI status.", in.Status))
	}
	validateKPIDates(fields, in.StartDate, in.EndDate, m)
	if !fields.Empty() {
		return nil, fields
	}

	k := &KPI{
		ID:          uuid.New(),
		MilestoneID: m.ID,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      in.Status,
		PlannedKPI:  in.PlannedKPI,
		Audit:       Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}
	if err := s.store.CreateKPI(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) UpdateKPI(ctx context.Context, actor Actor, id uuid.UUID, patch KPIPatch) (*KPI, error) {
	k, err := s.GetKPI(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *k
	if patch.MilestoneID != nil {
		next.MilestoneID = *patch.MilestoneID
	}
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.StartDate != nil {
		next.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		next.EndDate = patch.EndDate
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.PlannedKPI != nil {
		next.PlannedKPI = *patch.PlannedKPI
	}

	fields := hierarchy.FieldErrors{}
	m, err := s.store.GetMilestone(ctx, next.MilestoneID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("milestone", (&hierarchy.ParentNotFoundError{ParentKind: "milestone"}).Error())
		return nil, fields
	}
	if err != nil {
		return nil, err
	}

	validateNodeName(fields, next.Name)
	if !next.Status.Valid() {
		fields.Add("status", fmt.Sprintf("'%s' is not a valid KPI status.", next.Status))
	}
	validateKPIDates(fields, next.StartDate, next.EndDate, m)
	if !fields.Empty() {
		return nil, fields
	}

	next.UpdatedBy = actor.ID
	if err := s.store.UpdateKPI(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) DeleteKPI(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetKPI(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteKPI(ctx, id)
}

// kpiWindow returns the containment window for children of a KPI, or nil
// when the KPI has no dates of its own (containment is then skipped).
func kpiWindow(k *KPI) *hierarchy.ParentWindow {
	if k.StartDate == nil || k.EndDate == nil {
		return nil
	}
	return &hierarchy.ParentWindow{
		Bounds: hierarchy.Bounds{Start: *k.StartDate, End: *k.EndDate},
		Kind:   "KPI",
		Name:   k.Name,
	}
}

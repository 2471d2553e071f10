package tracker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/tracker"
	"github.com/warp/initiative-engine/tracker/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

func day(s string) hierarchy.Date {
	d, err := hierarchy.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	t     *testing.T
	svc   *tracker.Service
	admin tracker.Actor
	dept  uuid.UUID
	ctx   context.Context
}

// newFixture wires a Service over the memory store with a pinned clock and
// one department-holding admin actor.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := tracker.NewService(store.NewMemory(),
		tracker.WithClock(func() hierarchy.Date { return day("2026-06-15") }))

	dept, err := svc.CreateDepartment(ctx, tracker.DepartmentInput{Name: "Engineering"})
	require.NoError(t, err)

	pos, err := svc.CreatePosition(ctx, tracker.PositionInput{
		DepartmentID: dept.ID,
		Name:         "Head of Engineering",
	})
	require.NoError(t, err)

	admin := tracker.Actor{
		ID:        uuid.New(),
		Superuser: true,
		Position:  pos,
	}

	return &fixture{t: t, svc: svc, admin: admin, dept: dept.ID, ctx: ctx}
}

func (f *fixture) ksi(name string) *tracker.KSI {
	f.t.Helper()
	k, err := f.svc.CreateKSI(f.ctx, f.admin, tracker.KSIInput{
		Name:      name,
		StartDate: day("2026-01-01"),
		EndDate:   day("2026-12-31"),
	})
	require.NoError(f.t, err)
	return k
}

func (f *fixture) milestone(ksiID uuid.UUID, name, weight string) *tracker.Milestone {
	f.t.Helper()
	m, err := f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     ksiID,
		Name:      name,
		StartDate: day("2026-02-01"),
		EndDate:   day("2026-11-30"),
		Weight:    dec(weight),
	})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) kpi(milestoneID uuid.UUID, name string) *tracker.KPI {
	f.t.Helper()
	k, err := f.svc.CreateKPI(f.ctx, f.admin, tracker.KPIInput{
		MilestoneID: milestoneID,
		Name:        name,
	})
	require.NoError(f.t, err)
	return k
}

func (f *fixture) activity(kpiID uuid.UUID, name, weight string) *tracker.MajorActivity {
	f.t.Helper()
	a, err := f.svc.CreateActivity(f.ctx, f.admin, tracker.ActivityInput{
		KPIID:     kpiID,
		Name:      name,
		StartDate: day("2026-03-01"),
		EndDate:   day("2026-03-28"),
		Weight:    dec(weight),
	})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) task(activityID uuid.UUID, name, weight string) *tracker.Task {
	f.t.Helper()
	tk, err := f.svc.CreateTask(f.ctx, f.admin, tracker.TaskInput{
		MajorActivityID: activityID,
		Name:            name,
		StartDate:       day("2026-03-01"),
		EndDate:         day("2026-03-14"),
		Weight:          dec(weight),
	})
	require.NoError(f.t, err)
	return tk
}

func (f *fixture) subtask(activityID, parentID uuid.UUID, name, weight string) *tracker.Task {
	f.t.Helper()
	tk, err := f.svc.CreateTask(f.ctx, f.admin, tracker.TaskInput{
		MajorActivityID: activityID,
		ParentTaskID:    &parentID,
		Name:            name,
		StartDate:       day("2026-03-01"),
		EndDate:         day("2026-03-10"),
		Weight:          dec(weight),
	})
	require.NoError(f.t, err)
	return tk
}

// leadActor builds a Leads actor holding a fresh position in dept.
func (f *fixture) leadActor(dept uuid.UUID, posName string) tracker.Actor {
	f.t.Helper()
	pos, err := f.svc.CreatePosition(f.ctx, tracker.PositionInput{
		DepartmentID: dept,
		Name:         posName,
	})
	require.NoError(f.t, err)
	return tracker.Actor{ID: uuid.New(), Roles: []string{tracker.RoleLeads}, Position: pos}
}

func (f *fixture) expertActor(dept uuid.UUID, posName string) tracker.Actor {
	f.t.Helper()
	pos, err := f.svc.CreatePosition(f.ctx, tracker.PositionInput{
		DepartmentID: dept,
		Name:         posName,
	})
	require.NoError(f.t, err)
	return tracker.Actor{ID: uuid.New(), Roles: []string{tracker.RoleExperts}, Position: pos}
}

func requireFieldError(t *testing.T, err error, field string) hierarchy.FieldErrors {
	t.Helper()
	fe, ok := hierarchy.AsFieldErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	require.NotEmpty(t, fe[field], "expected an error on field %q, got %v", field, fe)
	return fe
}

// =============================================================================
// WEIGHT BUDGET
// =============================================================================

func TestMilestoneWeightBudget(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Expand platform")

	// GIVEN a milestone holding 50.00 of the KSI's budget
	f.milestone(ksi.ID, "Phase one", "50.00")

	// WHEN a sibling claiming 51.00 is created
	_, err := f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "Phase two",
		StartDate: day("2026-02-01"),
		EndDate:   day("2026-11-30"),
		Weight:    dec("51.00"),
	})

	// THEN the write is rejected on the weight field
	fe := requireFieldError(t, err, "weight")
	assert.Contains(t, fe["weight"][0], "cannot exceed")
	assert.Contains(t, fe["weight"][0], "Expand platform")

	// AND an exact fill to 100.00 is accepted (boundary inclusive)
	f.milestone(ksi.ID, "Phase two", "50.00")
}

func TestMilestoneWeightUpdateExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Quality drive")
	f.milestone(ksi.ID, "Audit", "60.00")
	m := f.milestone(ksi.ID, "Remediation", "40.00")

	// Re-saving the same weight must not double-count the row itself.
	w := dec("40.00")
	_, err := f.svc.UpdateMilestone(f.ctx, f.admin, m.ID, tracker.MilestonePatch{Weight: &w})
	require.NoError(t, err)

	// Growing beyond the remainder still fails.
	w = dec("41.00")
	_, err = f.svc.UpdateMilestone(f.ctx, f.admin, m.ID, tracker.MilestonePatch{Weight: &w})
	requireFieldError(t, err, "weight")
}

func TestTaskWeightBudgetPerParent(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Rollout")
	m := f.milestone(ksi.ID, "Pilot", "100.00")
	kpi := f.kpi(m.ID, "Sites live")
	a := f.activity(kpi.ID, "Site setup", "100.00")

	parent := f.task(a.ID, "Install", "100.00")

	// Subtasks budget against the parent task, not the activity: the
	// parent already holding 100.00 of the activity does not block them.
	f.subtask(a.ID, parent.ID, "Rack hardware", "70.00")
	_, err := f.svc.CreateTask(f.ctx, f.admin, tracker.TaskInput{
		MajorActivityID: a.ID,
		ParentTaskID:    &parent.ID,
		Name:            "Cabling",
		StartDate:       day("2026-03-01"),
		EndDate:         day("2026-03-10"),
		Weight:          dec("31.00"),
	})
	fe := requireFieldError(t, err, "weight")
	assert.Contains(t, fe["weight"][0], "Install")
}

// =============================================================================
// DATE VALIDATION
// =============================================================================

func TestMilestoneDatesMustNestInKSI(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Annual plan")

	_, err := f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "Early start",
		StartDate: day("2025-12-01"), // before the KSI opens
		EndDate:   day("2026-06-30"),
		Weight:    dec("10.00"),
	})
	requireFieldError(t, err, "start_date")

	_, err = f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "Late finish",
		StartDate: day("2026-02-01"),
		EndDate:   day("2027-01-15"), // past the KSI close
		Weight:    dec("10.00"),
	})
	requireFieldError(t, err, "end_date")
}

func TestInvertedDatesRejected(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Ordering")

	_, err := f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "Backwards",
		StartDate: day("2026-06-01"),
		EndDate:   day("2026-05-01"),
		Weight:    dec("10.00"),
	})
	requireFieldError(t, err, "end_date")
}

func TestActivitySpanCappedAtThirtyDays(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Ops")
	m := f.milestone(ksi.ID, "Q2", "100.00")
	kpi := f.kpi(m.ID, "Throughput")

	// 45 days end to end
	_, err := f.svc.CreateActivity(f.ctx, f.admin, tracker.ActivityInput{
		KPIID:     kpi.ID,
		Name:      "Marathon",
		StartDate: day("2026-03-01"),
		EndDate:   day("2026-04-15"),
		Weight:    dec("10.00"),
	})
	requireFieldError(t, err, "end_date")
}

func TestMissingParentFailsTheField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMilestone(f.ctx, f.admin, tracker.MilestoneInput{
		KSIID:     uuid.New(),
		Name:      "Orphan",
		StartDate: day("2026-02-01"),
		EndDate:   day("2026-03-01"),
		Weight:    dec("10.00"),
	})
	requireFieldError(t, err, "ksi")
}

// =============================================================================
// COMPLETION
// =============================================================================

func TestLeafTaskCompletion(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Leaves")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "Done things")
	a := f.activity(kpi.ID, "Work", "100.00")
	tk := f.task(a.ID, "Do it", "100.00")

	c, err := f.svc.TaskCompletion(f.ctx, tk)
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("0.00")), "got %s", c)

	st := hierarchy.StatusCompleted
	tk, err = f.svc.UpdateTask(f.ctx, f.admin, tk.ID, tracker.TaskPatch{Status: &st})
	require.NoError(t, err)

	c, err = f.svc.TaskCompletion(f.ctx, tk)
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("100.00")), "got %s", c)
}

func TestSubtaskWeightedAverage(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Averages")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "Numbers")
	a := f.activity(kpi.ID, "Work", "100.00")
	parent := f.task(a.ID, "Parent", "100.00")
	sub1 := f.subtask(a.ID, parent.ID, "Half one", "50.00")
	f.subtask(a.ID, parent.ID, "Half two", "50.00")

	st := hierarchy.StatusCompleted
	_, err := f.svc.UpdateTask(f.ctx, f.admin, sub1.ID, tracker.TaskPatch{Status: &st})
	require.NoError(t, err)

	c, err := f.svc.TaskCompletion(f.ctx, parent)
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("50.00")), "got %s", c)
}

func TestCompletionPropagatesToKSI(t *testing.T) {
	f := newFixture(t)

	// GIVEN a single full-weight chain down to one task
	ksi := f.ksi("Single chain")
	m := f.milestone(ksi.ID, "Only milestone", "100.00")
	kpi := f.kpi(m.ID, "Only KPI")
	a := f.activity(kpi.ID, "Only activity", "100.00")
	tk := f.task(a.ID, "Only task", "100.00")

	// WHEN the task completes
	st := hierarchy.StatusCompleted
	_, err := f.svc.UpdateTask(f.ctx, f.admin, tk.ID, tracker.TaskPatch{Status: &st})
	require.NoError(t, err)

	// THEN the root reads 100.00 and is promoted to completed
	c, err := f.svc.KSICompletion(f.ctx, ksi)
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("100.00")), "got %s", c)
	assert.Equal(t, hierarchy.StatusCompleted, ksi.Status)

	// AND the promotion was persisted, not just returned
	stored, err := f.svc.GetKSI(f.ctx, f.admin, ksi.ID)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusCompleted, stored.Status)
}

func TestOverdueDerivation(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Late work")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	// clock is pinned to 2026-06-15; this task ended in March
	tk := f.task(a.ID, "Past due", "100.00")

	_, err := f.svc.TaskCompletion(f.ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusOverdue, tk.Status)
}

// =============================================================================
// ROLE GATES
// =============================================================================

func TestOnlyLeadsCompleteTasks(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Gates")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	tk := f.task(a.ID, "Guarded", "100.00")

	expert := f.expertActor(f.dept, "Engineer")
	_, err := f.svc.AddPositions(f.ctx, f.admin, tk.ID, []uuid.UUID{expert.Position.ID})
	require.NoError(t, err)

	st := hierarchy.StatusCompleted
	_, err = f.svc.UpdateTask(f.ctx, expert, tk.ID, tracker.TaskPatch{Status: &st})
	var perm *tracker.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Contains(t, perm.Detail, "Leads")

	lead := f.leadActor(f.dept, "Team lead")
	_, err = f.svc.UpdateTask(f.ctx, lead, tk.ID, tracker.TaskPatch{Status: &st})
	require.NoError(t, err)
}

func TestOnlyOperationTeamChangesApproval(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Approvals")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	tk := f.task(a.ID, "Reviewed", "100.00")

	approved := hierarchy.ApprovalApproved
	lead := f.leadActor(f.dept, "Team lead")
	_, err := f.svc.UpdateTask(f.ctx, lead, tk.ID, tracker.TaskPatch{ApprovalStatus: &approved})
	var perm *tracker.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Contains(t, perm.Detail, "Operation-Team")

	ops := tracker.Actor{ID: uuid.New(), Roles: []string{tracker.RoleOperationTeam}}
	got, err := f.svc.UpdateTask(f.ctx, ops, tk.ID, tracker.TaskPatch{ApprovalStatus: &approved})
	require.NoError(t, err)
	assert.Equal(t, hierarchy.ApprovalApproved, got.ApprovalStatus)
}

func TestKSICreationRequiresDepartment(t *testing.T) {
	f := newFixture(t)
	nobody := tracker.Actor{ID: uuid.New(), Roles: []string{tracker.RoleLeads}}

	_, err := f.svc.CreateKSI(f.ctx, nobody, tracker.KSIInput{
		Name:      "Unowned",
		StartDate: day("2026-01-01"),
		EndDate:   day("2026-12-31"),
	})
	var perm *tracker.PermissionError
	require.ErrorAs(t, err, &perm)
}

// =============================================================================
// SCOPING
// =============================================================================

func TestLeadScopedToOwnDepartment(t *testing.T) {
	f := newFixture(t)

	// GIVEN KSIs in two departments
	ownKSI := f.ksi("Ours")
	other, err := f.svc.CreateDepartment(f.ctx, tracker.DepartmentInput{Name: "Finance"})
	require.NoError(t, err)
	finLead := f.leadActor(other.ID, "Head of Finance")
	finActor := tracker.Actor{ID: uuid.New(), Superuser: true, Position: finLead.Position}
	otherKSI, err := f.svc.CreateKSI(f.ctx, finActor, tracker.KSIInput{
		Name:      "Theirs",
		StartDate: day("2026-01-01"),
		EndDate:   day("2026-12-31"),
	})
	require.NoError(t, err)

	lead := f.leadActor(f.dept, "Eng lead")

	// Leads list only their department's KSIs
	ksis, err := f.svc.ListKSIs(f.ctx, lead, tracker.Query{})
	require.NoError(t, err)
	require.Len(t, ksis, 1)
	assert.Equal(t, ownKSI.ID, ksis[0].ID)

	// Out-of-scope reads are NotFound, not Forbidden
	_, err = f.svc.GetKSI(f.ctx, lead, otherKSI.ID)
	assert.True(t, errors.Is(err, tracker.ErrNotFound))
}

func TestExpertScopedToAssignedTasks(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Assignments")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	assigned := f.task(a.ID, "Assigned", "40.00")
	unassigned := f.task(a.ID, "Unassigned", "40.00")

	expert := f.expertActor(f.dept, "Engineer")
	_, err := f.svc.AddPositions(f.ctx, f.admin, assigned.ID, []uuid.UUID{expert.Position.ID})
	require.NoError(t, err)

	tasks, err := f.svc.ListTasks(f.ctx, expert, tracker.Query{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, assigned.ID, tasks[0].ID)

	_, err = f.svc.GetTask(f.ctx, expert, unassigned.ID)
	assert.True(t, errors.Is(err, tracker.ErrNotFound))

	// Assignment on the parent extends to its subtasks
	sub := f.subtask(a.ID, assigned.ID, "Child", "50.00")
	got, err := f.svc.GetTask(f.ctx, expert, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

func TestAssignmentIdempotent(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Idempotency")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	tk := f.task(a.ID, "Shared", "100.00")

	pos, err := f.svc.CreatePosition(f.ctx, tracker.PositionInput{
		DepartmentID: f.dept,
		Name:         "Analyst",
	})
	require.NoError(t, err)

	// Adding twice leaves one assignment
	_, err = f.svc.AddPositions(f.ctx, f.admin, tk.ID, []uuid.UUID{pos.ID})
	require.NoError(t, err)
	got, err := f.svc.AddPositions(f.ctx, f.admin, tk.ID, []uuid.UUID{pos.ID})
	require.NoError(t, err)
	assert.Len(t, got.PositionIDs, 1)

	// Removing an absent position is a no-op
	got, err = f.svc.RemovePositions(f.ctx, f.admin, tk.ID, []uuid.UUID{pos.ID})
	require.NoError(t, err)
	assert.Empty(t, got.PositionIDs)
	_, err = f.svc.RemovePositions(f.ctx, f.admin, tk.ID, []uuid.UUID{pos.ID})
	require.NoError(t, err)

	// Unknown positions fail the field
	_, err = f.svc.AddPositions(f.ctx, f.admin, tk.ID, []uuid.UUID{uuid.New()})
	requireFieldError(t, err, "positions")
}

// =============================================================================
// DELETE PROTECTION AND CYCLES
// =============================================================================

func TestDeleteBlockedByChildren(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Protected")
	f.milestone(ksi.ID, "Child", "10.00")

	err := f.svc.DeleteKSI(f.ctx, f.admin, ksi.ID)
	assert.True(t, errors.Is(err, tracker.ErrInUse))
}

func TestSubtaskCycleRejected(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Cycles")
	m := f.milestone(ksi.ID, "Only", "100.00")
	kpi := f.kpi(m.ID, "K")
	a := f.activity(kpi.ID, "A", "100.00")
	parent := f.task(a.ID, "Top", "100.00")
	child := f.subtask(a.ID, parent.ID, "Middle", "100.00")

	// Re-parenting the top under its own descendant must fail.
	_, err := f.svc.UpdateTask(f.ctx, f.admin, parent.ID, tracker.TaskPatch{ParentTaskID: &child.ID})
	requireFieldError(t, err, "parent_task")
}

// =============================================================================
// STRUCTURE
// =============================================================================

func TestStructureTree(t *testing.T) {
	f := newFixture(t)
	ksi := f.ksi("Tree")
	m := f.milestone(ksi.ID, "Branch", "100.00")
	kpi := f.kpi(m.ID, "Twig")
	f.activity(kpi.ID, "Leaf", "100.00")

	nodes, err := f.svc.Structure(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Tree", nodes[0].Name)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "Branch", nodes[0].Children[0].Name)
	require.Len(t, nodes[0].Children[0].Children, 1)
	assert.Equal(t, "Twig", nodes[0].Children[0].Children[0].Name)
	require.Len(t, nodes[0].Children[0].Children[0].Children, 1)
	assert.Equal(t, "Leaf", nodes[0].Children[0].Children[0].Children[0].Name)
}

package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
	"github.com/warp/initiative-engine/tracker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustDate(t *testing.T, s string) hierarchy.Date {
	t.Helper()
	d, err := hierarchy.ParseDate(s)
	require.NoError(t, err)
	return d
}

func seedKSI(t *testing.T, s *Store, deptID uuid.UUID, name string) *tracker.KSI {
	t.Helper()
	k := &tracker.KSI{
		ID:           uuid.New(),
		DepartmentID: deptID,
		Name:         name,
		StartDate:    mustDate(t, "2026-01-01"),
		EndDate:      mustDate(t, "2026-12-31"),
		Status:       hierarchy.StatusNotStarted,
		Audit:        tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateKSI(context.Background(), k))
	return k
}

func TestDepartmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &orgdata.Department{ID: uuid.New(), Name: "Engineering", Description: "builds things"}
	require.NoError(t, s.CreateDepartment(ctx, d))

	got, err := s.GetDepartment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", got.Name)
	assert.False(t, got.CreatedDate.IsZero())

	// unique name
	dup := &orgdata.Department{ID: uuid.New(), Name: "Engineering"}
	err = s.CreateDepartment(ctx, dup)
	assert.True(t, errors.Is(err, orgdata.ErrDuplicateName))

	// missing row
	_, err = s.GetDepartment(ctx, uuid.New())
	assert.True(t, errors.Is(err, tracker.ErrNotFound))
}

func TestMilestoneRoundTripPreservesDecimals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &orgdata.Department{ID: uuid.New(), Name: "Ops"}
	require.NoError(t, s.CreateDepartment(ctx, d))
	k := seedKSI(t, s, d.ID, "Root")

	m := &tracker.Milestone{
		ID:        uuid.New(),
		KSIID:     k.ID,
		Name:      "Phase",
		StartDate: mustDate(t, "2026-02-01"),
		EndDate:   mustDate(t, "2026-03-01"),
		Weight:    decimal.RequireFromString("33.34"),
		Status:    hierarchy.StatusOngoing,
		Audit:     tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateMilestone(ctx, m))

	got, err := s.GetMilestone(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Weight.Equal(decimal.RequireFromString("33.34")))
	assert.Equal(t, "2026-02-01", got.StartDate.String())
	assert.Equal(t, hierarchy.StatusOngoing, got.Status)
}

func TestDeleteRestrictedByChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &orgdata.Department{ID: uuid.New(), Name: "Ops"}
	require.NoError(t, s.CreateDepartment(ctx, d))
	k := seedKSI(t, s, d.ID, "Root")

	// department referenced by the KSI
	err := s.DeleteDepartment(ctx, d.ID)
	assert.True(t, errors.Is(err, tracker.ErrInUse))

	// after the KSI goes, the department can go too
	require.NoError(t, s.DeleteKSI(ctx, k.ID))
	require.NoError(t, s.DeleteDepartment(ctx, d.ID))
}

func TestLeadScopeFilterInSQL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eng := &orgdata.Department{ID: uuid.New(), Name: "Engineering"}
	fin := &orgdata.Department{ID: uuid.New(), Name: "Finance"}
	require.NoError(t, s.CreateDepartment(ctx, eng))
	require.NoError(t, s.CreateDepartment(ctx, fin))

	ours := seedKSI(t, s, eng.ID, "Ours")
	seedKSI(t, s, fin.ID, "Theirs")

	got, err := s.ListKSIs(ctx, tracker.Query{Scope: tracker.Scope{LeadDepartment: &eng.ID}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ours.ID, got[0].ID)
}

func TestAssignmentsIdempotentInSQL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &orgdata.Department{ID: uuid.New(), Name: "Ops"}
	require.NoError(t, s.CreateDepartment(ctx, d))
	p := &orgdata.Position{ID: uuid.New(), DepartmentID: d.ID, Name: "Analyst"}
	require.NoError(t, s.CreatePosition(ctx, p))

	k := seedKSI(t, s, d.ID, "Root")
	m := &tracker.Milestone{
		ID: uuid.New(), KSIID: k.ID, Name: "M",
		StartDate: mustDate(t, "2026-02-01"), EndDate: mustDate(t, "2026-03-01"),
		Weight: decimal.RequireFromString("100.00"), Status: hierarchy.StatusNotStarted,
		Audit: tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateMilestone(ctx, m))
	kpi := &tracker.KPI{
		ID: uuid.New(), MilestoneID: m.ID, Name: "K",
		Status: hierarchy.KPIPending, PlannedKPI: 1,
		Audit: tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateKPI(ctx, kpi))
	a := &tracker.MajorActivity{
		ID: uuid.New(), KPIID: kpi.ID, Name: "A",
		StartDate: mustDate(t, "2026-02-01"), EndDate: mustDate(t, "2026-02-20"),
		Weight: decimal.RequireFromString("100.00"), Status: hierarchy.StatusNotStarted,
		Audit: tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateActivity(ctx, a))
	task := &tracker.Task{
		ID: uuid.New(), MajorActivityID: a.ID, Name: "T",
		StartDate: mustDate(t, "2026-02-01"), EndDate: mustDate(t, "2026-02-10"),
		Weight: decimal.RequireFromString("100.00"),
		Status: hierarchy.StatusNotStarted, ApprovalStatus: hierarchy.ApprovalPending,
		Audit: tracker.Audit{CreatedBy: uuid.New(), UpdatedBy: uuid.New()},
	}
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.AddTaskPositions(ctx, task.ID, []uuid.UUID{p.ID}))
	require.NoError(t, s.AddTaskPositions(ctx, task.ID, []uuid.UUID{p.ID}))
	positions, err := s.ListTaskPositions(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	require.NoError(t, s.RemoveTaskPositions(ctx, task.ID, []uuid.UUID{p.ID}))
	require.NoError(t, s.RemoveTaskPositions(ctx, task.ID, []uuid.UUID{p.ID}))
	positions, err = s.ListTaskPositions(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &orgdata.Department{ID: uuid.New(), Name: "Ops"}
	require.NoError(t, s.CreateDepartment(ctx, d))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx tracker.Store) error {
		if err := tx.CreateDepartment(ctx, &orgdata.Department{ID: uuid.New(), Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	all, err := s.ListDepartments(ctx, tracker.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

/*
scope.go - Row-level access scope resolution

PURPOSE:
  One resolver decides, per entity level and actor, which rows are visible
  and mutable, replacing per-endpoint filter logic. Two roles scope rows:

  Lead:   restricted to the actor's own department, resolved through the
          chain up to the KSI (or the activity's direct department tag,
          which may diverge from its KPI lineage).
  Expert: restricted to tasks where the task or its parent task carries
          the actor's position among assignees; list actions additionally
          restrict to top-level tasks so subtasks embed in the parents.

  Everyone else falls back to model-level permission checks only: the
  scope stays empty and the base queryset applies.

DENIAL SEMANTICS:
  Row-level denial reads as NotFound, never Forbidden, so out-of-scope
  resources are not confirmed to exist. Role-based action denial (e.g. a
  non-Lead completing a task) is the Forbidden case and lives in
  service.go.
*/
package tracker

import (
	"context"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
)

// Scope is the resolved row filter list queries apply. Zero value means
// no row-level restriction.
type Scope struct {
	// LeadDepartment restricts rows to those whose resolved department
	// matches. Nil disables the restriction.
	LeadDepartment *uuid.UUID

	// ExpertPosition restricts tasks to those assigned (directly or via
	// the parent task) to this position. Nil disables the restriction.
	ExpertPosition *uuid.UUID

	// TopLevelOnly restricts task lists to tasks without a parent task.
	TopLevelOnly bool
}

// Empty reports whether the scope imposes no row-level restriction.
func (s Scope) Empty() bool {
	return s.LeadDepartment == nil && s.ExpertPosition == nil && !s.TopLevelOnly
}

// ResolveScope computes the row filter for one entity level and actor.
// Superusers are never row-scoped.
func ResolveScope(level hierarchy.Level, actor Actor) Scope {
	if actor.Superuser {
		return Scope{}
	}

	scope := Scope{}
	if actor.IsLead() {
		scope.LeadDepartment = actor.DepartmentID()
	}
	if level == hierarchy.LevelTask && actor.IsExpert() {
		id := actor.Position.ID
		scope.ExpertPosition = &id
	}
	return scope
}

// =============================================================================
// SINGLE-ROW SCOPE CHECKS
// =============================================================================
// List queries push the scope into SQL; path-addressed reads resolve the
// department chain here and report out-of-scope rows as ErrNotFound.

// resolveKSIDepartment walks no chain: the KSI owns its department.
func (s *Service) ksiInScope(k *KSI, scope Scope) bool {
	return scope.LeadDepartment == nil || k.DepartmentID == *scope.LeadDepartment
}

func (s *Service) milestoneInScope(ctx context.Context, m *Milestone, scope Scope) (bool, error) {
	if scope.LeadDepartment == nil {
		return true, nil
	}
	ksi, err := s.store.GetKSI(ctx, m.KSIID)
	if err != nil {
		return false, err
	}
	return ksi.DepartmentID == *scope.LeadDepartment, nil
}

func (s *Service) kpiInScope(ctx context.Context, k *KPI, scope Scope) (bool, error) {
	if scope.LeadDepartment == nil {
		return true, nil
	}
	m, err := s.store.GetMilestone(ctx, k.MilestoneID)
	if err != nil {
		return false, err
	}
	return s.milestoneInScope(ctx, m, scope)
}

// activityInScope honors the activity's own department tag OR its KPI
// lineage: an activity tagged with the lead's department is visible even
// when its KSI belongs elsewhere.
func (s *Service) activityInScope(ctx context.Context, a *MajorActivity, scope Scope) (bool, error) {
	if scope.LeadDepartment == nil {
		return true, nil
	}
	if a.DepartmentID != nil && *a.DepartmentID == *scope.LeadDepartment {
		return true, nil
	}
	kpi, err := s.store.GetKPI(ctx, a.KPIID)
	if err != nil {
		return false, err
	}
	return s.kpiInScope(ctx, kpi, scope)
}

func (s *Service) taskInScope(ctx context.Context, t *Task, scope Scope) (bool, error) {
	if scope.LeadDepartment != nil {
		activity, err := s.store.GetActivity(ctx, t.MajorActivityID)
		if err != nil {
			return false, err
		}
		ok, err := s.activityInScope(ctx, activity, scope)
		if err != nil || !ok {
			return ok, err
		}
	}

	if scope.ExpertPosition != nil {
		assigned, err := s.taskAssignedTo(ctx, t, *scope.ExpertPosition)
		if err != nil || !assigned {
			return assigned, err
		}
	}

	return true, nil
}

// taskAssignedTo checks the task's own assignees, then the parent task's.
func (s *Service) taskAssignedTo(ctx context.Context, t *Task, positionID uuid.UUID) (bool, error) {
	positions, err := s.store.ListTaskPositions(ctx, t.ID)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.ID == positionID {
			return true, nil
		}
	}

	if t.ParentTaskID == nil {
		return false, nil
	}
	parentPositions, err := s.store.ListTaskPositions(ctx, *t.ParentTaskID)
	if err != nil {
		return false, err
	}
	for _, p := range parentPositions {
		if p.ID == positionID {
			return true, nil
		}
	}
	return false, nil
}

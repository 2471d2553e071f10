/*
tasks.go - MajorActivity and Task mutations

The two span-capped levels. Tasks add three wrinkles the upper levels
don't have:
  - the sibling-parent override: a task under a parent task takes its
    containment window and weight budget from the parent task, not the
    major activity
  - role-gated transitions: only Leads may set status to completed, only
    Operation-Team may change approval_status
  - cycle prevention: a task may never become its own ancestor through
    parent_task
*/
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
)

// =============================================================================
// MAJOR ACTIVITY
// =============================================================================

type ActivityInput struct {
	KPIID        uuid.UUID
	DepartmentID *uuid.UUID
	Name         string
	Description  string
	StartDate    hierarchy.Date
	EndDate      hierarchy.Date
	Weight       decimal.Decimal
	Status       hierarchy.Status
}

type ActivityPatch struct {
	KPIID        *uuid.UUID
	DepartmentID *uuid.UUID
	Name         *string
	Description  *string
	StartDate    *hierarchy.Date
	EndDate      *hierarchy.Date
	Weight       *decimal.Decimal
	Status       *hierarchy.Status
}

func (s *Service) GetActivity(ctx context.Context, actor Actor, id uuid.UUID) (*MajorActivity, error) {
	a, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.activityInScope(ctx, a, ResolveScope(hierarchy.LevelMajorActivity, actor))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) ListActivities(ctx context.Context, actor Actor, q Query) ([]MajorActivity, error) {
	q.Scope = ResolveScope(hierarchy.LevelMajorActivity, actor)
	return s.store.ListActivities(ctx, q)
}

// AssignedActivities lists activities tagged directly with the actor's
// own department. The KPI lineage does not count here, unlike Lead
// scoping. An actor without a department sees nothing.
func (s *Service) AssignedActivities(ctx context.Context, actor Actor) ([]MajorActivity, error) {
	dept := actor.DepartmentID()
	if dept == nil {
		return []MajorActivity{}, nil
	}
	all, err := s.store.ListActivities(ctx, Query{})
	if err != nil {
		return nil, err
	}
	out := make([]MajorActivity, 0)
	for _, a := range all {
		if a.DepartmentID != nil && *a.DepartmentID == *dept {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) validateActivity(ctx context.Context, fields hierarchy.FieldErrors, kpiID uuid.UUID, departmentID *uuid.UUID, name string, start, end hierarchy.Date, weight decimal.Decimal, status hierarchy.Status) (*KPI, error) {
	kpi, err := s.store.GetKPI(ctx, kpiID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("kpi", (&hierarchy.ParentNotFoundError{ParentKind: "KPI"}).Error())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if departmentID != nil {
		if _, err := s.store.GetDepartment(ctx, *departmentID); errors.Is(err, ErrNotFound) {
			fields.Add("department", (&hierarchy.ParentNotFoundError{ParentKind: "department"}).Error())
		} else if err != nil {
			return nil, err
		}
	}

	validateNodeName(fields, name)
	validateStatus(fields, status)
	mergeFields(fields, hierarchy.ValidateRange(start, end, kpiWindow(kpi), hierarchy.MaxActivityTaskSpanDays))
	if err := hierarchy.ValidateWeightRange(weight); err != nil {
		fields.Add("weight", err.Error())
	}
	return kpi, nil
}

func (s *Service) CreateActivity(ctx context.Context, actor Actor, in ActivityInput) (*MajorActivity, error) {
	if in.Status == "" {
		in.Status = hierarchy.StatusNotStarted
	}

	fields := hierarchy.FieldErrors{}
	kpi, err := s.validateActivity(ctx, fields, in.KPIID, in.DepartmentID, in.Name, in.StartDate, in.EndDate, in.Weight, in.Status)
	if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	a := &MajorActivity{
		ID:           uuid.New(),
		KPIID:        kpi.ID,
		DepartmentID: in.DepartmentID,
		Name:         in.Name,
		Description:  in.Description,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Weight:       in.Weight,
		Status:       in.Status,
		Audit:        Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		siblings, err := tx.ListActivitiesByKPI(ctx, kpi.ID)
		if err != nil {
			return err
		}
		msgPart := fmt.Sprintf("major activities under the KPI '%s'", kpi.Name)
		if err := hierarchy.ValidateWeightBudget(in.Weight, activitySiblings(siblings), uuid.Nil, hierarchy.MaxWeight, msgPart); err != nil {
			fe := hierarchy.FieldErrors{}
			fe.Add("weight", err.Error())
			return fe
		}
		return tx.CreateActivity(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) UpdateActivity(ctx context.Context, actor Actor, id uuid.UUID, patch ActivityPatch) (*MajorActivity, error) {
	a, err := s.GetActivity(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *a
	if patch.KPIID != nil {
		next.KPIID = *patch.KPIID
	}
	if patch.DepartmentID != nil {
		next.DepartmentID = patch.DepartmentID
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
	kpi, err := s.validateActivity(ctx, fields, next.KPIID, next.DepartmentID, next.Name, next.StartDate, next.EndDate, next.Weight, next.Status)
	if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	next.UpdatedBy = actor.ID
	err = s.store.WithTx(ctx, func(tx Store) error {
		siblings, err := tx.ListActivitiesByKPI(ctx, kpi.ID)
		if err != nil {
			return err
		}
		msgPart := fmt.Sprintf("major activities under the KPI '%s'", kpi.Name)
		if err := hierarchy.ValidateWeightBudget(next.Weight, activitySiblings(siblings), next.ID, hierarchy.MaxWeight, msgPart); err != nil {
			fe := hierarchy.FieldErrors{}
			fe.Add("weight", err.Error())
			return fe
		}
		return tx.UpdateActivity(ctx, &next)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) DeleteActivity(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetActivity(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteActivity(ctx, id)
}

func activityWindow(a *MajorActivity) *hierarchy.ParentWindow {
	return &hierarchy.ParentWindow{
		Bounds: hierarchy.Bounds{Start: a.StartDate, End: a.EndDate},
		Kind:   "major activity",
		Name:   a.Name,
	}
}

func taskWindow(t *Task) *hierarchy.ParentWindow {
	return &hierarchy.ParentWindow{
		Bounds: hierarchy.Bounds{Start: t.StartDate, End: t.EndDate},
		Kind:   "parent task",
		Name:   t.Name,
	}
}

// =============================================================================
// TASK
// =============================================================================

type TaskInput struct {
	MajorActivityID uuid.UUID
	ParentTaskID    *uuid.UUID
	Name            string
	Description     string
	StartDate       hierarchy.Date
	EndDate         hierarchy.Date
	ActualStartDate *hierarchy.Date
	ActualEndDate   *hierarchy.Date
	Weight          decimal.Decimal
	Status          hierarchy.Status
	ApprovalStatus  hierarchy.ApprovalStatus
	Feedback        string
	OtherChallenge  string
	Link            string
	ChallengeGroups []uuid.UUID
}

type TaskPatch struct {
	MajorActivityID *uuid.UUID
	ParentTaskID    *uuid.UUID
	Name            *string
	Description     *string
	StartDate       *hierarchy.Date
	EndDate         *hierarchy.Date
	ActualStartDate *hierarchy.Date
	ActualEndDate   *hierarchy.Date
	Weight          *decimal.Decimal
	Status          *hierarchy.Status
	ApprovalStatus  *hierarchy.ApprovalStatus
	Feedback        *string
	OtherChallenge  *string
	Link            *string
	ChallengeGroups *[]uuid.UUID
}

func (s *Service) GetTask(ctx context.Context, actor Actor, id uuid.UUID) (*Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.taskInScope(ctx, t, ResolveScope(hierarchy.LevelTask, actor))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// ListTasks returns top-level tasks in the actor's scope; subtasks are
// embedded in the representation, not listed.
func (s *Service) ListTasks(ctx context.Context, actor Actor, q Query) ([]Task, error) {
	q.Scope = ResolveScope(hierarchy.LevelTask, actor)
	q.Scope.TopLevelOnly = true
	return s.store.ListTasks(ctx, q)
}

// Subtasks returns the immediate children of a task.
func (s *Service) Subtasks(ctx context.Context, taskID uuid.UUID) ([]Task, error) {
	return s.store.ListSubtasks(ctx, taskID)
}

// taskParent resolves the window + budget source: the parent task when
// set, otherwise the major activity.
type taskParent struct {
	activity *MajorActivity
	parent   *Task // nil for top-level tasks
}

func (p taskParent) window() *hierarchy.ParentWindow {
	if p.parent != nil {
		return taskWindow(p.parent)
	}
	return activityWindow(p.activity)
}

func (s *Service) resolveTaskParent(ctx context.Context, fields hierarchy.FieldErrors, activityID uuid.UUID, parentTaskID *uuid.UUID) (*taskParent, error) {
	activity, err := s.store.GetActivity(ctx, activityID)
	if errors.Is(err, ErrNotFound) {
		fields.Add("major_activity", (&hierarchy.ParentNotFoundError{ParentKind: "major activity"}).Error())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p := &taskParent{activity: activity}
	if parentTaskID != nil {
		parent, err := s.store.GetTask(ctx, *parentTaskID)
		if errors.Is(err, ErrNotFound) {
			fields.Add("parent_task", (&hierarchy.ParentNotFoundError{ParentKind: "parent task"}).Error())
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		p.parent = parent
	}
	return p, nil
}

// checkTaskCycle rejects a parent assignment that would make the task its
// own ancestor. Walks the parent chain; depth is bounded by the tree.
func (s *Service) checkTaskCycle(ctx context.Context, taskID uuid.UUID, parent *Task) error {
	for cur := parent; cur != nil; {
		if cur.ID == taskID {
			fe := hierarchy.FieldErrors{}
			fe.Add("parent_task", "A task cannot be its own ancestor.")
			return fe
		}
		if cur.ParentTaskID == nil {
			break
		}
		next, err := s.store.GetTask(ctx, *cur.ParentTaskID)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

func (s *Service) validateTaskFields(ctx context.Context, fields hierarchy.FieldErrors, t *Task, parent *taskParent) error {
	validateNodeName(fields, t.Name)
	validateStatus(fields, t.Status)
	if !t.ApprovalStatus.Valid() {
		fields.Add("approval_status", fmt.Sprintf("'%s' is not a valid approval status.", t.ApprovalStatus))
	}
	mergeFields(fields, hierarchy.ValidateRange(t.StartDate, t.EndDate, parent.window(), hierarchy.MaxActivityTaskSpanDays))
	mergeFields(fields, hierarchy.ValidateActuals(t.ActualStartDate, t.ActualEndDate))
	if err := hierarchy.ValidateWeightRange(t.Weight); err != nil {
		fields.Add("weight", err.Error())
	}

	for _, gid := range t.ChallengeGroups {
		if _, err := s.store.GetChallengeGroup(ctx, gid); errors.Is(err, ErrNotFound) {
			fields.Add("challenge_groups", fmt.Sprintf("Challenge group '%s' does not exist.", gid))
		} else if err != nil {
			return err
		}
	}
	return nil
}

// taskBudget validates the weight budget inside tx: against the parent
// task's subtasks, or the activity's top-level tasks.
func taskBudget(ctx context.Context, tx Store, t *Task, parent *taskParent, excluding uuid.UUID) error {
	var siblings []Task
	var msgPart string
	var err error

	if parent.parent != nil {
		siblings, err = tx.ListSubtasks(ctx, parent.parent.ID)
		msgPart = fmt.Sprintf("subtasks under the task '%s'", parent.parent.Name)
	} else {
		siblings, err = tx.ListTasksByActivity(ctx, parent.activity.ID, true)
		msgPart = fmt.Sprintf("tasks under the major activity '%s'", parent.activity.Name)
	}
	if err != nil {
		return err
	}

	if err := hierarchy.ValidateWeightBudget(t.Weight, taskSiblings(siblings), excluding, hierarchy.MaxWeight, msgPart); err != nil {
		fe := hierarchy.FieldErrors{}
		fe.Add("weight", err.Error())
		return fe
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, actor Actor, in TaskInput) (*Task, error) {
	if in.Status == "" {
		in.Status = hierarchy.StatusNotStarted
	}
	if in.ApprovalStatus == "" {
		in.ApprovalStatus = hierarchy.ApprovalPending
	}

	fields := hierarchy.FieldErrors{}
	parent, err := s.resolveTaskParent(ctx, fields, in.MajorActivityID, in.ParentTaskID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fields
	}

	t := &Task{
		ID:              uuid.New(),
		MajorActivityID: parent.activity.ID,
		ParentTaskID:    in.ParentTaskID,
		Name:            in.Name,
		Description:     in.Description,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		ActualStartDate: in.ActualStartDate,
		ActualEndDate:   in.ActualEndDate,
		Weight:          in.Weight,
		Status:          in.Status,
		ApprovalStatus:  in.ApprovalStatus,
		Feedback:        in.Feedback,
		OtherChallenge:  in.OtherChallenge,
		Link:            in.Link,
		ChallengeGroups: in.ChallengeGroups,
		Audit:           Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}

	if err := s.validateTaskFields(ctx, fields, t, parent); err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := taskBudget(ctx, tx, t, parent, uuid.Nil); err != nil {
			return err
		}
		if err := tx.CreateTask(ctx, t); err != nil {
			return err
		}
		if len(t.ChallengeGroups) > 0 {
			return tx.SetTaskChallengeGroups(ctx, t.ID, t.ChallengeGroups)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// checkTaskTransitions enforces the role-gated transitions: Leads for
// completion, Operation-Team for approval changes. Superusers bypass
// both; system-initiated transitions (the completion pass) bypass this
// by writing through SetStatus directly.
func checkTaskTransitions(actor Actor, old, next *Task) error {
	if actor.Superuser {
		return nil
	}
	if next.Status == hierarchy.StatusCompleted && old.Status != next.Status && !actor.HasRole(RoleLeads) {
		return &PermissionError{
			Detail: "You do not have permission to perform this action, only users with role 'Leads' can mark tasks 'completed'.",
		}
	}
	if next.ApprovalStatus != old.ApprovalStatus && !actor.HasRole(RoleOperationTeam) {
		return &PermissionError{
			Detail: "You do not have permission to perform this action, only users with role 'Operation-Team' can change approval status.",
		}
	}
	return nil
}

func (s *Service) UpdateTask(ctx context.Context, actor Actor, id uuid.UUID, patch TaskPatch) (*Task, error) {
	t, err := s.GetTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *t
	if patch.MajorActivityID != nil {
		next.MajorActivityID = *patch.MajorActivityID
	}
	if patch.ParentTaskID != nil {
		next.ParentTaskID = patch.ParentTaskID
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
	if patch.ActualStartDate != nil {
		next.ActualStartDate = patch.ActualStartDate
	}
	if patch.ActualEndDate != nil {
		next.ActualEndDate = patch.ActualEndDate
	}
	if patch.Weight != nil {
		next.Weight = *patch.Weight
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.ApprovalStatus != nil {
		next.ApprovalStatus = *patch.ApprovalStatus
	}
	if patch.Feedback != nil {
		next.Feedback = *patch.Feedback
	}
	if patch.OtherChallenge != nil {
		next.OtherChallenge = *patch.OtherChallenge
	}
	if patch.Link != nil {
		next.Link = *patch.Link
	}
	if patch.ChallengeGroups != nil {
		next.ChallengeGroups = *patch.ChallengeGroups
	}

	if err := checkTaskTransitions(actor, t, &next); err != nil {
		return nil, err
	}

	fields := hierarchy.FieldErrors{}
	parent, err := s.resolveTaskParent(ctx, fields, next.MajorActivityID, next.ParentTaskID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fields
	}
	if parent.parent != nil {
		if err := s.checkTaskCycle(ctx, next.ID, parent.parent); err != nil {
			return nil, err
		}
	}

	if err := s.validateTaskFields(ctx, fields, &next, parent); err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	next.UpdatedBy = actor.ID
	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := taskBudget(ctx, tx, &next, parent, next.ID); err != nil {
			return err
		}
		if err := tx.UpdateTask(ctx, &next); err != nil {
			return err
		}
		if patch.ChallengeGroups != nil {
			return tx.SetTaskChallengeGroups(ctx, next.ID, next.ChallengeGroups)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) DeleteTask(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetTask(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, id)
}

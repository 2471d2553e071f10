/*
Package tracker implements the initiative-tracking domain on top of the
hierarchy engine.

PURPOSE:
  Models the five-level tree (KSI -> Milestone -> KPI -> MajorActivity ->
  Task/Subtask) and the operations on it: validated mutation, recursive
  weighted completion, role-based access scoping, and task assignment.

KEY CONCEPTS IN THIS FILE (types.go):
  - The five node entities, every one carrying audit fields
  - Actor: the authenticated principal the services act on behalf of
  - Role names recognized by the scoping rules

WHO VALIDATES WHAT:
  Shape-level checks (enum values, name presence) live here and in the
  API layer; the cross-entity rules (weight budget, date containment)
  are delegated to the hierarchy package and always run inside a store
  transaction so sibling weight mutations serialize per parent.

SEE ALSO:
  - service.go: Validated create/update/delete per level
  - completion.go: Recursive completion with explicit status persistence
  - scope.go: Lead/Expert visibility resolution
  - store.go: Persistence contracts
*/
package tracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
)

// =============================================================================
// TREE ENTITIES
// =============================================================================

// Audit is the shared created/updated bookkeeping on every entity.
// CreatedBy/UpdatedBy reference the external user principal; timestamps
// are server-set.
type Audit struct {
	CreatedBy   uuid.UUID
	UpdatedBy   uuid.UUID
	CreatedDate time.Time
	UpdatedDate time.Time
}

// KSI is the tree root, owned by a department. It carries no weight of its
// own; its completion is the weighted average of its milestones.
type KSI struct {
	ID           uuid.UUID
	DepartmentID uuid.UUID
	Name         string
	Description  string
	StartDate    hierarchy.Date
	EndDate      hierarchy.Date
	Status       hierarchy.Status
	Audit
}

// Milestone nests inside a KSI and holds a share of its 100.00 budget.
type Milestone struct {
	ID          uuid.UUID
	KSIID       uuid.UUID
	Name        string
	Description string
	StartDate   hierarchy.Date
	EndDate     hierarchy.Date
	Weight      decimal.Decimal
	Status      hierarchy.Status
	Audit
}

// KPI is the status gate between Milestone and MajorActivity. No weight,
// no computed completion, optional dates, its own three-state status.
type KPI struct {
	ID          uuid.UUID
	MilestoneID uuid.UUID
	Name        string
	Description string
	StartDate   *hierarchy.Date
	EndDate     *hierarchy.Date
	Status      hierarchy.KPIStatus
	PlannedKPI  int
	Audit
}

// MajorActivity nests inside a KPI, optionally tagged with its own
// department independent of the KPI's lineage. Span capped at 30 days.
type MajorActivity struct {
	ID           uuid.UUID
	KPIID        uuid.UUID
	DepartmentID *uuid.UUID
	Name         string
	Description  string
	StartDate    hierarchy.Date
	EndDate      hierarchy.Date
	Weight       decimal.Decimal
	Status       hierarchy.Status
	Audit
}

// Task is the leaf level. A task with a ParentTaskID is a subtask; a task
// without subtasks is a completion leaf. Positions are the assignee set.
type Task struct {
	ID              uuid.UUID
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
	PositionIDs     []uuid.UUID
	ChallengeGroups []uuid.UUID
	Audit
}

// IsSubtask reports whether t hangs under a parent task.
func (t *Task) IsSubtask() bool { return t.ParentTaskID != nil }

// =============================================================================
// ACTOR - The authenticated principal
// =============================================================================

// Role names recognized by the scoping and transition rules. Roles are
// assigned by the external identity system; the engine only reads them.
const (
	RoleLeads         = "Leads"
	RoleExperts       = "Experts"
	RoleOperationTeam = "Operation-Team"
)

// Actor is the resolved principal a request acts as. Position is resolved
// from the principal's claims before the services run; a nil Position means
// the user holds no job slot and gets no row-level scoping benefits.
type Actor struct {
	ID        uuid.UUID
	Superuser bool
	Roles     []string
	Position  *orgdata.Position
}

func (a Actor) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// IsLead reports whether the actor gets Lead department scoping: the role
// plus an actual position in a department.
func (a Actor) IsLead() bool {
	return a.HasRole(RoleLeads) && a.Position != nil
}

// IsExpert reports whether the actor gets Expert task scoping.
func (a Actor) IsExpert() bool {
	return a.HasRole(RoleExperts) && a.Position != nil
}

// DepartmentID returns the actor's department, if any.
func (a Actor) DepartmentID() *uuid.UUID {
	if a.Position == nil {
		return nil
	}
	id := a.Position.DepartmentID
	return &id
}

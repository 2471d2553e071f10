/*
store.go - Persistence contracts for the tracker domain

PURPOSE:
  Defines the interface between the domain services and the database.
  Implementations: store/sqlite (production) and tracker/store (in-memory,
  tests/dev).

SHAPE:
  The interface is split by concern and embedded into one Store, the same
  way the resource ledger splits transaction, assignment and snapshot
  stores. Two query shapes matter for the engine and appear explicitly:

  - "siblings under the same parent" feeds the weight-budget check
    (ListMilestonesByKSI, ListActivitiesByKPI, ListTasksByActivity with
    topLevelOnly, ListSubtasks)
  - "immediate weighted children" feeds the completion calculator; the
    only asymmetric case is ListActivitiesByMilestone, which skips the
    unweighted KPI layer

TRANSACTIONS:
  WithTx runs fn against a Store bound to one database transaction and
  serializes weight mutations: implementations must guarantee that two
  concurrent WithTx bodies touching the same parent's weight budget do
  not interleave between read and write (sqlite does this with a write
  lock; the memory store with a mutex). This closes the check-then-write
  race on the shared 100.00 ceiling.

ERRORS:
  ErrNotFound for missing rows; ErrInUse when referential integrity blocks
  a delete (surfaced as a conflict, never a cascade);
  orgdata.ErrDuplicateName for unique-name violations.
*/
package tracker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInUse is returned when a delete is blocked by referencing children.
	ErrInUse = errors.New("entity is referenced by children")
)

// Query carries the common list parameters: a name substring search, a
// whitelisted ordering key (optionally "-"-prefixed for descending), and
// the resolved access scope.
type Query struct {
	Search   string
	Ordering string
	Scope    Scope
}

// OrgStore persists the supporting orgdata entities.
type OrgStore interface {
	CreateDepartment(ctx context.Context, d *orgdata.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*orgdata.Department, error)
	ListDepartments(ctx context.Context, q Query) ([]orgdata.Department, error)
	UpdateDepartment(ctx context.Context, d *orgdata.Department) error
	DeleteDepartment(ctx context.Context, id uuid.UUID) error

	CreatePosition(ctx context.Context, p *orgdata.Position) error
	GetPosition(ctx context.Context, id uuid.UUID) (*orgdata.Position, error)
	ListPositions(ctx context.Context, q Query) ([]orgdata.Position, error)
	UpdatePosition(ctx context.Context, p *orgdata.Position) error
	DeletePosition(ctx context.Context, id uuid.UUID) error

	CreateChallengeType(ctx context.Context, t *orgdata.ChallengeType) error
	GetChallengeType(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeType, error)
	ListChallengeTypes(ctx context.Context, q Query) ([]orgdata.ChallengeType, error)
	UpdateChallengeType(ctx context.Context, t *orgdata.ChallengeType) error
	DeleteChallengeType(ctx context.Context, id uuid.UUID) error

	CreateChallengeGroup(ctx context.Context, g *orgdata.ChallengeGroup) error
	GetChallengeGroup(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeGroup, error)
	ListChallengeGroups(ctx context.Context, q Query) ([]orgdata.ChallengeGroup, error)
	UpdateChallengeGroup(ctx context.Context, g *orgdata.ChallengeGroup) error
	DeleteChallengeGroup(ctx context.Context, id uuid.UUID) error
}

// TreeStore persists the five-level hierarchy and exposes the two query
// shapes the engine needs.
type TreeStore interface {
	CreateKSI(ctx context.Context, k *KSI) error
	GetKSI(ctx context.Context, id uuid.UUID) (*KSI, error)
	ListKSIs(ctx context.Context, q Query) ([]KSI, error)
	UpdateKSI(ctx context.Context, k *KSI) error
	DeleteKSI(ctx context.Context, id uuid.UUID) error

	CreateMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error)
	ListMilestones(ctx context.Context, q Query) ([]Milestone, error)
	ListMilestonesByKSI(ctx context.Context, ksiID uuid.UUID) ([]Milestone, error)
	UpdateMilestone(ctx context.Context, m *Milestone) error
	DeleteMilestone(ctx context.Context, id uuid.UUID) error

	CreateKPI(ctx context.Context, k *KPI) error
	GetKPI(ctx context.Context, id uuid.UUID) (*KPI, error)
	ListKPIs(ctx context.Context, q Query) ([]KPI, error)
	ListKPIsByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]KPI, error)
	UpdateKPI(ctx context.Context, k *KPI) error
	DeleteKPI(ctx context.Context, id uuid.UUID) error

	CreateActivity(ctx context.Context, a *MajorActivity) error
	GetActivity(ctx context.Context, id uuid.UUID) (*MajorActivity, error)
	ListActivities(ctx context.Context, q Query) ([]MajorActivity, error)
	ListActivitiesByKPI(ctx context.Context, kpiID uuid.UUID) ([]MajorActivity, error)
	// ListActivitiesByMilestone skips the KPI layer: it returns the
	// activities under every KPI of the milestone. This is the milestone's
	// weighted-children query for completion.
	ListActivitiesByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]MajorActivity, error)
	UpdateActivity(ctx context.Context, a *MajorActivity) error
	DeleteActivity(ctx context.Context, id uuid.UUID) error

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, q Query) ([]Task, error)
	// ListTasksByActivity with topLevelOnly=true returns only tasks without
	// a parent task: the activity's weighted children.
	ListTasksByActivity(ctx context.Context, activityID uuid.UUID, topLevelOnly bool) ([]Task, error)
	ListSubtasks(ctx context.Context, parentID uuid.UUID) ([]Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// SetStatus persists only the status field of one node. Used by the
	// completion service's explicit derived-status pass. Last-write-wins
	// against concurrent direct updates, by documented choice.
	SetStatus(ctx context.Context, level hierarchy.Level, id uuid.UUID, status hierarchy.Status) error
}

// AssignmentStore maintains the task assignee and challenge-group sets.
// Add and Remove are idempotent: adding a present position or removing an
// absent one is a no-op, not an error.
type AssignmentStore interface {
	AddTaskPositions(ctx context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error
	RemoveTaskPositions(ctx context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error
	ListTaskPositions(ctx context.Context, taskID uuid.UUID) ([]orgdata.Position, error)

	SetTaskChallengeGroups(ctx context.Context, taskID uuid.UUID, groupIDs []uuid.UUID) error
	ListTaskChallengeGroups(ctx context.Context, taskID uuid.UUID) ([]orgdata.ChallengeGroup, error)
}

// Store is the full persistence surface the services run on.
type Store interface {
	OrgStore
	TreeStore
	AssignmentStore

	// WithTx executes fn within one serialized transaction. Rolled back if
	// fn returns an error, committed otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

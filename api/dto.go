/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs decouple the wire
  format from the domain entities: parents are rendered as nested
  {id, name} references, dates as "YYYY-MM-DD" strings, and weights and
  completion percentages as fixed two-decimal strings.

NAMING CONVENTION:
  XxxDTO:     Response shape
  XxxRequest: Request body shape

DESIGN DECISIONS:
  - Decimal fields (weight, completion) are rendered as strings so
    clients never lose precision to float64 round-tripping.
  - Request structs carry validator tags for shape-level checks only;
    cross-entity rules (weight budget, date containment) run in the
    tracker services and come back as field-keyed validation errors.
  - Update requests use pointer fields: absent keys keep current values.

SEE ALSO:
  - handlers.go: Conversion helpers and validation plumbing
  - tracker/types.go: The domain entities behind these shapes
*/
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
)

// =============================================================================
// SHARED SHAPES
// =============================================================================

// RefDTO is a nested parent reference.
type RefDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// AuditDTO is the shared bookkeeping block on every tree entity.
type AuditDTO struct {
	CreatedBy   uuid.UUID `json:"created_by"`
	UpdatedBy   uuid.UUID `json:"updated_by"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

// ErrorResponse is the non-validation error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// =============================================================================
// TREE ENTITIES
// =============================================================================

type KSIDTO struct {
	ID          uuid.UUID        `json:"id"`
	Department  RefDTO           `json:"department"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Status      hierarchy.Status `json:"status"`
	Completion  string           `json:"completion"`
	AuditDTO
}

type MilestoneDTO struct {
	ID          uuid.UUID        `json:"id"`
	KSI         RefDTO           `json:"ksi"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Weight      string           `json:"weight"`
	Status      hierarchy.Status `json:"status"`
	Completion  string           `json:"completion"`
	AuditDTO
}

type KPIDTO struct {
	ID          uuid.UUID           `json:"id"`
	Milestone   RefDTO              `json:"milestone"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	StartDate   *hierarchy.Date     `json:"start_date"`
	EndDate     *hierarchy.Date     `json:"end_date"`
	Status      hierarchy.KPIStatus `json:"status"`
	PlannedKPI  int                 `json:"planned_kpi"`
	AuditDTO
}

type MajorActivityDTO struct {
	ID          uuid.UUID        `json:"id"`
	KPI         RefDTO           `json:"kpi"`
	Department  *RefDTO          `json:"department"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Weight      string           `json:"weight"`
	Status      hierarchy.Status `json:"status"`
	Completion  string           `json:"completion"`
	AuditDTO
}

type TaskDTO struct {
	ID              uuid.UUID                `json:"id"`
	MajorActivity   RefDTO                   `json:"major_activity"`
	ParentTask      *RefDTO                  `json:"parent_task"`
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	StartDate       hierarchy.Date           `json:"start_date"`
	EndDate         hierarchy.Date           `json:"end_date"`
	ActualStartDate *hierarchy.Date          `json:"actual_start_date"`
	ActualEndDate   *hierarchy.Date          `json:"actual_end_date"`
	Weight          string                   `json:"weight"`
	Status          hierarchy.Status         `json:"status"`
	ApprovalStatus  hierarchy.ApprovalStatus `json:"approval_status"`
	Feedback        string                   `json:"feedback"`
	OtherChallenge  string                   `json:"other_challenge"`
	Link            string                   `json:"link"`
	Completion      string                   `json:"completion"`
	Positions       []RefDTO                 `json:"positions"`
	ChallengeGroups []RefDTO                 `json:"challenge_groups"`
	SubTasks        []TaskDTO                `json:"sub_tasks"`
	AuditDTO
}

// StructureDTO is one node of the scope-filtered name tree returned by
// GET /api/ksis/structure.
type StructureDTO struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Children []StructureDTO `json:"children"`
}

// =============================================================================
// ORG DATA
// =============================================================================

type DepartmentDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

type PositionDTO struct {
	ID          uuid.UUID  `json:"id"`
	Department  RefDTO     `json:"department"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	UserID      *uuid.UUID `json:"user_id"`
	CreatedDate time.Time  `json:"created_date"`
	UpdatedDate time.Time  `json:"updated_date"`
}

type ChallengeTypeDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

type ChallengeGroupDTO struct {
	ID            uuid.UUID `json:"id"`
	ChallengeType RefDTO    `json:"challenge_type"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreatedDate   time.Time `json:"created_date"`
	UpdatedDate   time.Time `json:"updated_date"`
}

// =============================================================================
// REQUEST BODIES - tree entities
// =============================================================================

// CreateKSIRequest carries no department: the KSI's department is always
// taken from the creating actor's position.
type CreateKSIRequest struct {
	Name        string           `json:"name" validate:"required,min=2"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Status      hierarchy.Status `json:"status"`
}

type UpdateKSIRequest struct {
	Name        *string           `json:"name" validate:"omitempty,min=2"`
	Description *string           `json:"description"`
	StartDate   *hierarchy.Date   `json:"start_date"`
	EndDate     *hierarchy.Date   `json:"end_date"`
	Status      *hierarchy.Status `json:"status"`
}

type CreateMilestoneRequest struct {
	KSI         uuid.UUID        `json:"ksi" validate:"required"`
	Name        string           `json:"name" validate:"required,min=2"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Weight      decimal.Decimal  `json:"weight"`
	Status      hierarchy.Status `json:"status"`
}

type UpdateMilestoneRequest struct {
	KSI         *uuid.UUID        `json:"ksi"`
	Name        *string           `json:"name" validate:"omitempty,min=2"`
	Description *string           `json:"description"`
	StartDate   *hierarchy.Date   `json:"start_date"`
	EndDate     *hierarchy.Date   `json:"end_date"`
	Weight      *decimal.Decimal  `json:"weight"`
	Status      *hierarchy.Status `json:"status"`
}

type CreateKPIRequest struct {
	Milestone   uuid.UUID           `json:"milestone" validate:"required"`
	Name        string              `json:"name" validate:"required,min=2"`
	Description string              `json:"description"`
	StartDate   *hierarchy.Date     `json:"start_date"`
	EndDate     *hierarchy.Date     `json:"end_date"`
	Status      hierarchy.KPIStatus `json:"status"`
	PlannedKPI  int                 `json:"planned_kpi"`
}

type UpdateKPIRequest struct {
	Milestone   *uuid.UUID           `json:"milestone"`
	Name        *string              `json:"name" validate:"omitempty,min=2"`
	Description *string              `json:"description"`
	StartDate   *hierarchy.Date      `json:"start_date"`
	EndDate     *hierarchy.Date      `json:"end_date"`
	Status      *hierarchy.KPIStatus `json:"status"`
	PlannedKPI  *int                 `json:"planned_kpi"`
}

type CreateMajorActivityRequest struct {
	KPI         uuid.UUID        `json:"kpi" validate:"required"`
	Department  *uuid.UUID       `json:"department"`
	Name        string           `json:"name" validate:"required,min=2"`
	Description string           `json:"description"`
	StartDate   hierarchy.Date   `json:"start_date"`
	EndDate     hierarchy.Date   `json:"end_date"`
	Weight      decimal.Decimal  `json:"weight"`
	Status      hierarchy.Status `json:"status"`
}

type UpdateMajorActivityRequest struct {
	KPI         *uuid.UUID        `json:"kpi"`
	Department  *uuid.UUID        `json:"department"`
	Name        *string           `json:"name" validate:"omitempty,min=2"`
	Description *string           `json:"description"`
	StartDate   *hierarchy.Date   `json:"start_date"`
	EndDate     *hierarchy.Date   `json:"end_date"`
	Weight      *decimal.Decimal  `json:"weight"`
	Status      *hierarchy.Status `json:"status"`
}

type CreateTaskRequest struct {
	MajorActivity   uuid.UUID                `json:"major_activity" validate:"required"`
	ParentTask      *uuid.UUID               `json:"parent_task"`
	Name            string                   `json:"name" validate:"required,min=2"`
	Description     string                   `json:"description"`
	StartDate       hierarchy.Date           `json:"start_date"`
	EndDate         hierarchy.Date           `json:"end_date"`
	ActualStartDate *hierarchy.Date          `json:"actual_start_date"`
	ActualEndDate   *hierarchy.Date          `json:"actual_end_date"`
	Weight          decimal.Decimal          `json:"weight"`
	Status          hierarchy.Status         `json:"status"`
	ApprovalStatus  hierarchy.ApprovalStatus `json:"approval_status"`
	Feedback        string                   `json:"feedback"`
	OtherChallenge  string                   `json:"other_challenge"`
	Link            string                   `json:"link" validate:"omitempty,url"`
	ChallengeGroups []uuid.UUID              `json:"challenge_groups"`
}

type UpdateTaskRequest struct {
	MajorActivity   *uuid.UUID                `json:"major_activity"`
	ParentTask      *uuid.UUID                `json:"parent_task"`
	Name            *string                   `json:"name" validate:"omitempty,min=2"`
	Description     *string                   `json:"description"`
	StartDate       *hierarchy.Date           `json:"start_date"`
	EndDate         *hierarchy.Date           `json:"end_date"`
	ActualStartDate *hierarchy.Date           `json:"actual_start_date"`
	ActualEndDate   *hierarchy.Date           `json:"actual_end_date"`
	Weight          *decimal.Decimal          `json:"weight"`
	Status          *hierarchy.Status         `json:"status"`
	ApprovalStatus  *hierarchy.ApprovalStatus `json:"approval_status"`
	Feedback        *string                   `json:"feedback"`
	OtherChallenge  *string                   `json:"other_challenge"`
	Link            *string                   `json:"link" validate:"omitempty,url"`
	ChallengeGroups *[]uuid.UUID              `json:"challenge_groups"`
}

// PositionsRequest is the body of add_positions / remove_positions.
type PositionsRequest struct {
	Positions []uuid.UUID `json:"positions"`
}

// =============================================================================
// REQUEST BODIES - org data
// =============================================================================

type DepartmentRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description"`
}

type PositionRequest struct {
	Department  uuid.UUID  `json:"department" validate:"required"`
	Name        string     `json:"name" validate:"required,min=2"`
	Description string     `json:"description"`
	UserID      *uuid.UUID `json:"user_id"`
}

type ChallengeTypeRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description"`
}

type ChallengeGroupRequest struct {
	ChallengeType uuid.UUID `json:"challenge_type" validate:"required"`
	Name          string    `json:"name" validate:"required,min=2"`
	Description   string    `json:"description"`
}

// =============================================================================
// AUTH AND SCENARIOS
// =============================================================================

// TokenRequest is the demo login body. Production deployments mint tokens
// in the identity system; this endpoint exists so the API is explorable
// without one.
type TokenRequest struct {
	UserID     uuid.UUID  `json:"user_id" validate:"required"`
	Roles      []string   `json:"roles"`
	PositionID *uuid.UUID `json:"position_id"`
	Superuser  bool       `json:"superuser"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

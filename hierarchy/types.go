/*
Package hierarchy provides the core weighted-hierarchy engine.

PURPOSE:
  This package contains the domain-agnostic types and algorithms behind
  the initiative tree: weight-budget validation, date-range containment,
  and recursive weighted-completion calculation. It knows nothing about
  persistence or HTTP; the tracker package wires it to real entities.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: The shared lifecycle enum for weighted nodes
  - KPIStatus / ApprovalStatus: The two independent side enums
  - Weight helpers: decimal range checks, the 100.00 budget ceiling
  - WeightedChild: The (completion, weight) pair the calculator consumes

DESIGN PRINCIPLES:
  1. Purity: Nothing in this package writes anywhere. Callers persist.
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. One engine, five levels: The same validators serve every tree level,
     parametrized by a LevelSpec descriptor (see level.go)

SEE ALSO:
  - weight.go: Sibling weight-budget validation
  - dates.go: Date containment and span validation
  - completion.go: Weighted completion and derived status
  - level.go: Per-level descriptors
*/
package hierarchy

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS ENUMS
// =============================================================================

// Status is the lifecycle state shared by KSI, Milestone, MajorActivity and
// Task. Initial state is not_started; completed and terminated are terminal.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusOngoing    Status = "ongoing"
	StatusOnReview   Status = "on_review"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
	StatusTerminated Status = "terminated"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusOngoing, StatusOnReview,
		StatusCompleted, StatusOverdue, StatusTerminated:
		return true
	}
	return false
}

// Terminal reports whether s permits no further system transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// KPIStatus is the independent three-state enum for KPI nodes.
// A KPI is a status gate only: it carries no weight and its state is set
// by direct user action, never derived from children.
type KPIStatus string

const (
	KPIPending   KPIStatus = "pending"
	KPICompleted KPIStatus = "completed"
	KPIFailed    KPIStatus = "failed"
)

func (s KPIStatus) Valid() bool {
	return s == KPIPending || s == KPICompleted || s == KPIFailed
}

// ApprovalStatus tracks the review decision on a Task.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalDenied
}

// =============================================================================
// WEIGHTS
// =============================================================================

// MaxWeight is the shared budget ceiling: the weights of all siblings under
// one parent may never sum past this.
var MaxWeight = decimal.RequireFromString("100.00")

// Hundred is the completion scale. A fully complete node reports 100.00.
var Hundred = decimal.RequireFromString("100.00")

// ValidateWeightRange checks that w lies in [0.00, 100.00] inclusive.
// Budget validation against siblings is separate (see weight.go); this is
// the per-field range check only.
func ValidateWeightRange(w decimal.Decimal) error {
	if w.IsNegative() || w.GreaterThan(MaxWeight) {
		return &WeightRangeError{Weight: w}
	}
	return nil
}

// WeightedChild is the projection of a child node the completion calculator
// needs: its own (already computed) completion and its weight share.
type WeightedChild struct {
	Completion decimal.Decimal
	Weight     decimal.Decimal
}

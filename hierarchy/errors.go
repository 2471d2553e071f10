/*
errors.go - Centralized error types for the hierarchy engine

PURPOSE:
  All validation error types in one place. Validation failures are always
  field-scoped: the transport layer renders them as a per-field message map
  with a 400-equivalent status, never as opaque 500s.

ERROR CATEGORIES:
  1. Weight errors   - Range and shared-budget violations
  2. Date errors     - Inversion, containment, span ceiling
  3. Reference errors - Dangling parent references

USAGE:
  Domain code wraps these into a FieldErrors map keyed by the offending
  field name:

    var werr *hierarchy.WeightExceededError
    if errors.As(err, &werr) {
        fields.Add("weight", werr.Error())
    }

SEE ALSO:
  - weight.go: Produces WeightRangeError / WeightExceededError
  - dates.go: Produces the date error family
*/
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrWeightExceeded is returned when a candidate weight would push the
	// sibling total past the shared budget.
	ErrWeightExceeded = errors.New("weight budget exceeded")

	// ErrDateOutOfRange is returned when a child date escapes its parent window.
	ErrDateOutOfRange = errors.New("date out of range")

	// ErrDateSpanExceeded is returned when a range is longer than the level allows.
	ErrDateSpanExceeded = errors.New("date span exceeded")

	// ErrParentNotFound is returned when a referenced parent does not resolve.
	ErrParentNotFound = errors.New("referenced parent not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// WeightRangeError reports a weight outside [0.00, 100.00].
type WeightRangeError struct {
	Weight decimal.Decimal
}

func (e *WeightRangeError) Error() string {
	return "Weight must be between 0.00 and 100.00."
}

// WeightExceededError reports a shared-budget overflow. Context names the
// sibling collection, e.g. "milestones under the KSI 'Expand APAC'".
type WeightExceededError struct {
	Context      string
	CurrentTotal decimal.Decimal
	Attempted    decimal.Decimal
	Max          decimal.Decimal
}

func (e *WeightExceededError) Error() string {
	return fmt.Sprintf("The total weight for %s cannot exceed %s. Current total: %s.",
		e.Context, e.Max.StringFixed(2), e.CurrentTotal.StringFixed(2))
}

func (e *WeightExceededError) Unwrap() error { return ErrWeightExceeded }

// DateOutOfRangeError reports a start/end escaping the parent window.
// Kind is one of "too_early", "too_late", "inverted".
type DateOutOfRangeError struct {
	Kind       string
	Limit      Date
	ParentKind string // e.g. "KSI", "major activity", "parent task"
	ParentName string
}

func (e *DateOutOfRangeError) Error() string {
	switch e.Kind {
	case "too_early":
		return fmt.Sprintf("Start date can't be earlier than '%s', start date of %s '%s'",
			e.Limit, e.ParentKind, e.ParentName)
	case "too_late":
		return fmt.Sprintf("End date can't be later than '%s', end date of %s '%s'",
			e.Limit, e.ParentKind, e.ParentName)
	default:
		return "End date can't be earlier than start date."
	}
}

func (e *DateOutOfRangeError) Unwrap() error { return ErrDateOutOfRange }

// DateSpanError reports a range longer than the level's ceiling.
type DateSpanError struct {
	MaxDays int
	Limit   Date
}

func (e *DateSpanError) Error() string {
	return fmt.Sprintf("End date can't be later than '%s' as the range cannot exceed a %d-day period.",
		e.Limit, e.MaxDays)
}

func (e *DateSpanError) Unwrap() error { return ErrDateSpanExceeded }

// ParentNotFoundError reports a dangling reference on a dependent field.
// The engine fails the field instead of silently skipping validation.
type ParentNotFoundError struct {
	ParentKind string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("Referenced %s does not exist.", e.ParentKind)
}

func (e *ParentNotFoundError) Unwrap() error { return ErrParentNotFound }

// =============================================================================
// FIELD ERRORS - Per-field validation error map
// =============================================================================

// FieldErrors collects validation messages keyed by field name. It renders
// at the request boundary as {"weight": ["..."], "end_date": ["..."]}.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

func (fe FieldErrors) Error() string {
	for field, msgs := range fe {
		if len(msgs) > 0 {
			return fmt.Sprintf("%s: %s", field, msgs[0])
		}
	}
	return "validation failed"
}

// AsFieldErrors extracts a FieldErrors from an error chain, if present.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

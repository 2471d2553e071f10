/*
dates.go - Date containment, ordering and span validation

PURPOSE:
  Child date ranges must nest inside their parent's range, end must not
  precede start, and some levels (major activities, tasks) cap the span
  at 30 days. When both start and end arrive in one request, each is
  checked against the other's FINAL value, never a stale persisted one -
  the caller resolves the effective range first, then validates.

PARENT RESOLUTION:
  The parent window differs per level: a milestone nests in its KSI, an
  activity in its KPI, a task in its major activity UNLESS it has a parent
  task, in which case the parent task's window wins. The caller resolves
  the window into a ParentWindow; this file only enforces the rules.
*/
package hierarchy

// ParentWindow is the resolved containment window plus naming context for
// error messages. A nil *ParentWindow means the node is a root (KSI) or the
// parent has no dates (KPI without a window): only self-consistency applies.
type ParentWindow struct {
	Bounds Bounds
	Kind   string // "KSI", "milestone", "KPI", "major activity", "parent task"
	Name   string
}

// ValidateRange checks a candidate start/end against ordering, the parent
// window, and an optional span ceiling (maxSpanDays <= 0 disables it).
// Errors are returned in a FieldErrors map keyed by start_date/end_date so
// a single request reports every violated rule at once.
func ValidateRange(start, end Date, parent *ParentWindow, maxSpanDays int) FieldErrors {
	fields := FieldErrors{}

	if end.Before(start) {
		fields.Add("end_date", (&DateOutOfRangeError{Kind: "inverted"}).Error())
	}

	if maxSpanDays > 0 {
		limit := start.AddDays(maxSpanDays)
		if end.After(limit) {
			fields.Add("end_date", (&DateSpanError{MaxDays: maxSpanDays, Limit: limit}).Error())
		}
	}

	if parent != nil {
		if start.Before(parent.Bounds.Start) {
			fields.Add("start_date", (&DateOutOfRangeError{
				Kind:       "too_early",
				Limit:      parent.Bounds.Start,
				ParentKind: parent.Kind,
				ParentName: parent.Name,
			}).Error())
		}
		if end.After(parent.Bounds.End) {
			fields.Add("end_date", (&DateOutOfRangeError{
				Kind:       "too_late",
				Limit:      parent.Bounds.End,
				ParentKind: parent.Kind,
				ParentName: parent.Name,
			}).Error())
		}
	}

	return fields
}

// ValidateActuals checks the recorded actual range for a task: actual end
// may not precede actual start. Either side may be absent.
func ValidateActuals(actualStart, actualEnd *Date) FieldErrors {
	fields := FieldErrors{}
	if actualStart != nil && actualEnd != nil && actualEnd.Before(*actualStart) {
		fields.Add("actual_end_date", "Actual end date can't be earlier than start date.")
	}
	return fields
}

/*
tree.go - Persistence for the five tree levels

Dates are stored as YYYY-MM-DD text, weights as decimal strings, so the
values round-trip without float drift. Scope filters are pushed into SQL:
the Lead filter joins up the department chain, the Expert filter checks
the assignment table for the task or its parent.
*/
package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/tracker"
)

func dateString(d hierarchy.Date) string { return d.String() }

func parseDate(s string) (hierarchy.Date, error) {
	return hierarchy.ParseDate(s)
}

func nullDate(d *hierarchy.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*hierarchy.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := hierarchy.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanAudit(a *tracker.Audit, createdBy, updatedBy, created, updated string) error {
	var err error
	if a.CreatedBy, err = uuid.Parse(createdBy); err != nil {
		return err
	}
	if a.UpdatedBy, err = uuid.Parse(updatedBy); err != nil {
		return err
	}
	a.CreatedDate = parseStamp(created)
	a.UpdatedDate = parseStamp(updated)
	return nil
}

// =============================================================================
// KSI
// =============================================================================

const ksiCols = "id, department_id, name, description, start_date, end_date, status, created_by, updated_by, created_at, updated_at"

func scanKSI(row interface{ Scan(...any) error }) (*tracker.KSI, error) {
	var k tracker.KSI
	var id, deptID, start, end, status, createdBy, updatedBy, created, updated string
	if err := row.Scan(&id, &deptID, &k.Name, &k.Description, &start, &end, &status, &createdBy, &updatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if k.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if k.DepartmentID, err = uuid.Parse(deptID); err != nil {
		return nil, err
	}
	if k.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if k.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	k.Status = hierarchy.Status(status)
	if err := scanAudit(&k.Audit, createdBy, updatedBy, created, updated); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s session) CreateKSI(ctx context.Context, k *tracker.KSI) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ksis (id, department_id, name, description, start_date, end_date, status, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID.String(), k.DepartmentID.String(), k.Name, k.Description,
		dateString(k.StartDate), dateString(k.EndDate), string(k.Status),
		k.CreatedBy.String(), k.UpdatedBy.String(), now, now)
	if err == nil {
		k.CreatedDate = parseStamp(now)
		k.UpdatedDate = k.CreatedDate
	}
	return err
}

func (s session) GetKSI(ctx context.Context, id uuid.UUID) (*tracker.KSI, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+ksiCols+" FROM ksis WHERE id = ?", id.String())
	return scanKSI(row)
}

func (s session) ListKSIs(ctx context.Context, q tracker.Query) ([]tracker.KSI, error) {
	query := "SELECT " + ksiCols + " FROM ksis WHERE name LIKE '%' || ? || '%'"
	args := []any{q.Search}
	if q.Scope.LeadDepartment != nil {
		query += " AND department_id = ?"
		args = append(args, q.Scope.LeadDepartment.String())
	}
	query += " " + orderBy(q.Ordering)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tracker.KSI, 0)
	for rows.Next() {
		k, err := scanKSI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s session) UpdateKSI(ctx context.Context, k *tracker.KSI) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE ksis SET department_id = ?, name = ?, description = ?, start_date = ?, end_date = ?, status = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		k.DepartmentID.String(), k.Name, k.Description,
		dateString(k.StartDate), dateString(k.EndDate), string(k.Status),
		k.UpdatedBy.String(), nowStamp(), k.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteKSI(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "ksis", id)
}

// =============================================================================
// MILESTONE
// =============================================================================

const milestoneCols = "id, ksi_id, name, description, start_date, end_date, weight, status, created_by, updated_by, created_at, updated_at"

func scanMilestone(row interface{ Scan(...any) error }) (*tracker.Milestone, error) {
	var m tracker.Milestone
	var id, ksiID, start, end, weight, status, createdBy, updatedBy, created, updated string
	if err := row.Scan(&id, &ksiID, &m.Name, &m.Description, &start, &end, &weight, &status, &createdBy, &updatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if m.KSIID, err = uuid.Parse(ksiID); err != nil {
		return nil, err
	}
	if m.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if m.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	if m.Weight, err = decimal.NewFromString(weight); err != nil {
		return nil, err
	}
	m.Status = hierarchy.Status(status)
	if err := scanAudit(&m.Audit, createdBy, updatedBy, created, updated); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s session) CreateMilestone(ctx context.Context, m *tracker.Milestone) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO milestones (id, ksi_id, name, description, start_date, end_date, weight, status, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.KSIID.String(), m.Name, m.Description,
		dateString(m.StartDate), dateString(m.EndDate), m.Weight.String(), string(m.Status),
		m.CreatedBy.String(), m.UpdatedBy.String(), now, now)
	if err == nil {
		m.CreatedDate = parseStamp(now)
		m.UpdatedDate = m.CreatedDate
	}
	return err
}

func (s session) GetMilestone(ctx context.Context, id uuid.UUID) (*tracker.Milestone, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+milestoneCols+" FROM milestones WHERE id = ?", id.String())
	return scanMilestone(row)
}

func (s session) listMilestones(ctx context.Context, query string, args ...any) ([]tracker.Milestone, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tracker.Milestone, 0)
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s session) ListMilestones(ctx context.Context, q tracker.Query) ([]tracker.Milestone, error) {
	query := "SELECT " + milestoneCols + " FROM milestones WHERE name LIKE '%' || ? || '%'"
	args := []any{q.Search}
	if q.Scope.LeadDepartment != nil {
		query += " AND ksi_id IN (SELECT id FROM ksis WHERE department_id = ?)"
		args = append(args, q.Scope.LeadDepartment.String())
	}
	query += " " + orderBy(q.Ordering)
	return s.listMilestones(ctx, query, args...)
}

func (s session) ListMilestonesByKSI(ctx context.Context, ksiID uuid.UUID) ([]tracker.Milestone, error) {
	query := "SELECT " + milestoneCols + " FROM milestones WHERE ksi_id = ? ORDER BY created_at ASC, name ASC"
	return s.listMilestones(ctx, query, ksiID.String())
}

func (s session) UpdateMilestone(ctx context.Context, m *tracker.Milestone) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE milestones SET ksi_id = ?, name = ?, description = ?, start_date = ?, end_date = ?, weight = ?, status = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		m.KSIID.String(), m.Name, m.Description,
		dateString(m.StartDate), dateString(m.EndDate), m.Weight.String(), string(m.Status),
		m.UpdatedBy.String(), nowStamp(), m.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "milestones", id)
}

// =============================================================================
// KPI
// =============================================================================

const kpiCols = "id, milestone_id, name, description, start_date, end_date, status, planned_kpi, created_by, updated_by, created_at, updated_at"

func scanKPI(row interface{ Scan(...any) error }) (*tracker.KPI, error) {
	var k tracker.KPI
	var id, msID, status, createdBy, updatedBy, created, updated string
	var start, end sql.NullString
	if err := row.Scan(&id, &msID, &k.Name, &k.Description, &start, &end, &status, &k.PlannedKPI, &createdBy, &updatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if k.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if k.MilestoneID, err = uuid.Parse(msID); err != nil {
		return nil, err
	}
	if k.StartDate, err = parseNullDate(start); err != nil {
		return nil, err
	}
	if k.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	k.Status = hierarchy.KPIStatus(status)
	if err := scanAudit(&k.Audit, createdBy, updatedBy, created, updated); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s session) CreateKPI(ctx context.Context, k *tracker.KPI) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO kpis (id, milestone_id, name, description, start_date, end_date, status, planned_kpi, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID.String(), k.MilestoneID.String(), k.Name, k.Description,
		nullDate(k.StartDate), nullDate(k.EndDate), string(k.Status), k.PlannedKPI,
		k.CreatedBy.String(), k.UpdatedBy.String(), now, now)
	if err == nil {
		k.CreatedDate = parseStamp(now)
		k.UpdatedDate = k.CreatedDate
	}
	return err
}

func (s session) GetKPI(ctx context.Context, id uuid.UUID) (*tracker.KPI, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+kpiCols+" FROM kpis WHERE id = ?", id.String())
	return scanKPI(row)
}

func (s session) listKPIs(ctx context.Context, query string, args ...any) ([]tracker.KPI, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tracker.KPI, 0)
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s session) ListKPIs(ctx context.Context, q tracker.Query) ([]tracker.KPI, error) {
	query := "SELECT " + kpiCols + " FROM kpis WHERE name LIKE '%' || ? || '%'"
	args := []any{q.Search}
	if q.Scope.LeadDepartment != nil {
		query += ` AND milestone_id IN (
			SELECT m.id FROM milestones m JOIN ksis k ON k.id = m.ksi_id WHERE k.department_id = ?)`
		args = append(args, q.Scope.LeadDepartment.String())
	}
	query += " " + orderBy(q.Ordering)
	return s.listKPIs(ctx, query, args...)
}

func (s session) ListKPIsByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]tracker.KPI, error) {
	query := "SELECT " + kpiCols + " FROM kpis WHERE milestone_id = ? ORDER BY created_at ASC, name ASC"
	return s.listKPIs(ctx, query, milestoneID.String())
}

func (s session) UpdateKPI(ctx context.Context, k *tracker.KPI) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE kpis SET milestone_id = ?, name = ?, description = ?, start_date = ?, end_date = ?, status = ?, planned_kpi = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		k.MilestoneID.String(), k.Name, k.Description,
		nullDate(k.StartDate), nullDate(k.EndDate), string(k.Status), k.PlannedKPI,
		k.UpdatedBy.String(), nowStamp(), k.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteKPI(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "kpis", id)
}

// =============================================================================
// MAJOR ACTIVITY
// =============================================================================

const activityCols = "id, kpi_id, department_id, name, description, start_date, end_date, weight, status, created_by, updated_by, created_at, updated_at"

func scanActivity(row interface{ Scan(...any) error }) (*tracker.MajorActivity, error) {
	var a tracker.MajorActivity
	var id, kpiID, start, end, weight, status, createdBy, updatedBy, created, updated string
	var deptID sql.NullString
	if err := row.Scan(&id, &kpiID, &deptID, &a.Name, &a.Description, &start, &end, &weight, &status, &createdBy, &updatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if a.KPIID, err = uuid.Parse(kpiID); err != nil {
		return nil, err
	}
	if a.DepartmentID, err = parseNullUUID(deptID); err != nil {
		return nil, err
	}
	if a.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if a.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	if a.Weight, err = decimal.NewFromString(weight); err != nil {
		return nil, err
	}
	a.Status = hierarchy.Status(status)
	if err := scanAudit(&a.Audit, createdBy, updatedBy, created, updated); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s session) CreateActivity(ctx context.Context, a *tracker.MajorActivity) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO major_activities (id, kpi_id, department_id, name, description, start_date, end_date, weight, status, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.KPIID.String(), nullUUID(a.DepartmentID), a.Name, a.Description,
		dateString(a.StartDate), dateString(a.EndDate), a.Weight.String(), string(a.Status),
		a.CreatedBy.String(), a.UpdatedBy.String(), now, now)
	if err == nil {
		a.CreatedDate = parseStamp(now)
		a.UpdatedDate = a.CreatedDate
	}
	return err
}

func (s session) GetActivity(ctx context.Context, id uuid.UUID) (*tracker.MajorActivity, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+activityCols+" FROM major_activities WHERE id = ?", id.String())
	return scanActivity(row)
}

func (s session) listActivities(ctx context.Context, query string, args ...any) ([]tracker.MajorActivity, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tracker.MajorActivity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// leadActivityFilter is the Lead visibility condition for an activity:
// its own department tag, or its KPI lineage, matches the department.
const leadActivityFilter = `(
	department_id = ?
	OR kpi_id IN (
		SELECT p.id FROM kpis p
		JOIN milestones m ON m.id = p.milestone_id
		JOIN ksis k ON k.id = m.ksi_id
		WHERE k.department_id = ?))`

func (s session) ListActivities(ctx context.Context, q tracker.Query) ([]tracker.MajorActivity, error) {
	query := "SELECT " + activityCols + " FROM major_activities WHERE name LIKE '%' || ? || '%'"
	args := []any{q.Search}
	if q.Scope.LeadDepartment != nil {
		query += " AND " + leadActivityFilter
		dept := q.Scope.LeadDepartment.String()
		args = append(args, dept, dept)
	}
	query += " " + orderBy(q.Ordering)
	return s.listActivities(ctx, query, args...)
}

func (s session) ListActivitiesByKPI(ctx context.Context, kpiID uuid.UUID) ([]tracker.MajorActivity, error) {
	query := "SELECT " + activityCols + " FROM major_activities WHERE kpi_id = ? ORDER BY created_at ASC, name ASC"
	return s.listActivities(ctx, query, kpiID.String())
}

func (s session) ListActivitiesByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]tracker.MajorActivity, error) {
	query := "SELECT " + activityCols + ` FROM major_activities
		WHERE kpi_id IN (SELECT id FROM kpis WHERE milestone_id = ?)
		ORDER BY created_at ASC, name ASC`
	return s.listActivities(ctx, query, milestoneID.String())
}

func (s session) UpdateActivity(ctx context.Context, a *tracker.MajorActivity) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE major_activities SET kpi_id = ?, department_id = ?, name = ?, description = ?, start_date = ?, end_date = ?, weight = ?, status = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		a.KPIID.String(), nullUUID(a.DepartmentID), a.Name, a.Description,
		dateString(a.StartDate), dateString(a.EndDate), a.Weight.String(), string(a.Status),
		a.UpdatedBy.String(), nowStamp(), a.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "major_activities", id)
}

// =============================================================================
// TASK
// =============================================================================

const taskCols = "id, major_activity_id, parent_task_id, name, description, start_date, end_date, actual_start_date, actual_end_date, weight, status, approval_status, feedback, other_challenge, link, created_by, updated_by, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*tracker.Task, error) {
	var t tracker.Task
	var id, actID, start, end, weight, status, approval, createdBy, updatedBy, created, updated string
	var parentID, actualStart, actualEnd sql.NullString
	if err := row.Scan(&id, &actID, &parentID, &t.Name, &t.Description, &start, &end, &actualStart, &actualEnd, &weight, &status, &approval, &t.Feedback, &t.OtherChallenge, &t.Link, &createdBy, &updatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.MajorActivityID, err = uuid.Parse(actID); err != nil {
		return nil, err
	}
	if t.ParentTaskID, err = parseNullUUID(parentID); err != nil {
		return nil, err
	}
	if t.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if t.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	if t.ActualStartDate, err = parseNullDate(actualStart); err != nil {
		return nil, err
	}
	if t.ActualEndDate, err = parseNullDate(actualEnd); err != nil {
		return nil, err
	}
	if t.Weight, err = decimal.NewFromString(weight); err != nil {
		return nil, err
	}
	t.Status = hierarchy.Status(status)
	t.ApprovalStatus = hierarchy.ApprovalStatus(approval)
	if err := scanAudit(&t.Audit, createdBy, updatedBy, created, updated); err != nil {
		return nil, err
	}
	return &t, nil
}

// loadTaskJoins fills the assignment and challenge-group id sets.
func (s session) loadTaskJoins(ctx context.Context, t *tracker.Task) error {
	rows, err := s.q.QueryContext(ctx,
		"SELECT position_id FROM task_positions WHERE task_id = ? ORDER BY position_id", t.ID.String())
	if err != nil {
		return err
	}
	t.PositionIDs, err = collectIDs(rows)
	if err != nil {
		return err
	}

	rows, err = s.q.QueryContext(ctx,
		"SELECT group_id FROM task_challenge_groups WHERE task_id = ? ORDER BY group_id", t.ID.String())
	if err != nil {
		return err
	}
	t.ChallengeGroups, err = collectIDs(rows)
	return err
}

func collectIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s session) CreateTask(ctx context.Context, t *tracker.Task) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks (id, major_activity_id, parent_task_id, name, description, start_date, end_date, actual_start_date, actual_end_date, weight, status, approval_status, feedback, other_challenge, link, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.MajorActivityID.String(), nullUUID(t.ParentTaskID), t.Name, t.Description,
		dateString(t.StartDate), dateString(t.EndDate), nullDate(t.ActualStartDate), nullDate(t.ActualEndDate),
		t.Weight.String(), string(t.Status), string(t.ApprovalStatus),
		t.Feedback, t.OtherChallenge, t.Link,
		t.CreatedBy.String(), t.UpdatedBy.String(), now, now)
	if err == nil {
		t.CreatedDate = parseStamp(now)
		t.UpdatedDate = t.CreatedDate
	}
	return err
}

func (s session) GetTask(ctx context.Context, id uuid.UUID) (*tracker.Task, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+taskCols+" FROM tasks WHERE id = ?", id.String())
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTaskJoins(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s session) listTasks(ctx context.Context, query string, args ...any) ([]tracker.Task, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]tracker.Task, 0)
	func() {
		defer rows.Close()
		for rows.Next() {
			var t *tracker.Task
			if t, err = scanTask(rows); err != nil {
				return
			}
			out = append(out, *t)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadTaskJoins(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s session) ListTasks(ctx context.Context, q tracker.Query) ([]tracker.Task, error) {
	query := "SELECT " + taskCols + " FROM tasks WHERE name LIKE '%' || ? || '%'"
	args := []any{q.Search}

	if q.Scope.TopLevelOnly {
		query += " AND parent_task_id IS NULL"
	}
	if q.Scope.LeadDepartment != nil {
		query += " AND major_activity_id IN (SELECT id FROM major_activities WHERE " + leadActivityFilter + ")"
		dept := q.Scope.LeadDepartment.String()
		args = append(args, dept, dept)
	}
	if q.Scope.ExpertPosition != nil {
		// assigned directly, or through the parent task
		query += ` AND (
			id IN (SELECT task_id FROM task_positions WHERE position_id = ?)
			OR parent_task_id IN (SELECT task_id FROM task_positions WHERE position_id = ?))`
		pos := q.Scope.ExpertPosition.String()
		args = append(args, pos, pos)
	}
	query += " " + orderBy(q.Ordering)
	return s.listTasks(ctx, query, args...)
}

func (s session) ListTasksByActivity(ctx context.Context, activityID uuid.UUID, topLevelOnly bool) ([]tracker.Task, error) {
	query := "SELECT " + taskCols + " FROM tasks WHERE major_activity_id = ?"
	if topLevelOnly {
		query += " AND parent_task_id IS NULL"
	}
	query += " ORDER BY created_at ASC, name ASC"
	return s.listTasks(ctx, query, activityID.String())
}

func (s session) ListSubtasks(ctx context.Context, parentID uuid.UUID) ([]tracker.Task, error) {
	query := "SELECT " + taskCols + " FROM tasks WHERE parent_task_id = ? ORDER BY created_at ASC, name ASC"
	return s.listTasks(ctx, query, parentID.String())
}

func (s session) UpdateTask(ctx context.Context, t *tracker.Task) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET major_activity_id = ?, parent_task_id = ?, name = ?, description = ?, start_date = ?, end_date = ?, actual_start_date = ?, actual_end_date = ?, weight = ?, status = ?, approval_status = ?, feedback = ?, other_challenge = ?, link = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		t.MajorActivityID.String(), nullUUID(t.ParentTaskID), t.Name, t.Description,
		dateString(t.StartDate), dateString(t.EndDate), nullDate(t.ActualStartDate), nullDate(t.ActualEndDate),
		t.Weight.String(), string(t.Status), string(t.ApprovalStatus),
		t.Feedback, t.OtherChallenge, t.Link,
		t.UpdatedBy.String(), nowStamp(), t.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "tasks", id)
}

// SetStatus writes only the status column of one node.
func (s session) SetStatus(ctx context.Context, level hierarchy.Level, id uuid.UUID, status hierarchy.Status) error {
	table, ok := map[hierarchy.Level]string{
		hierarchy.LevelKSI:           "ksis",
		hierarchy.LevelMilestone:     "milestones",
		hierarchy.LevelMajorActivity: "major_activities",
		hierarchy.LevelTask:          "tasks",
	}[level]
	if !ok {
		return tracker.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx,
		"UPDATE "+table+" SET status = ? WHERE id = ?", string(status), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

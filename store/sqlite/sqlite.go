/*
Package sqlite provides the SQLite-backed implementation of tracker.Store.

PURPOSE:
  Persists the five-level initiative tree, the orgdata reference entities,
  and the task assignment sets. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  departments, positions:              org reference data, unique names
  challenge_types, challenge_groups:   the challenge taxonomy
  ksis .. tasks:                       the tree, one table per level
  task_positions:                      task assignee set (idempotent writes)
  task_challenge_groups:               task challenge tags

REFERENTIAL INTEGRITY:
  Opened with _foreign_keys=on; every parent reference is declared with
  ON DELETE RESTRICT so a delete with children fails at the database and
  surfaces as tracker.ErrInUse. Nothing cascades except the assignment
  rows of a deleted task.

CONCURRENCY:
  WithTx holds a mutex for the whole transaction body, so two concurrent
  weight-budget checks against the same parent cannot interleave between
  read and write. SQLite's single-writer model gives the same guarantee
  across processes.

WAL MODE:
  Opened with WAL so readers don't block during writes.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - tracker/store.go: Interface definitions
  - tracker/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/initiative-engine/orgdata"
	"github.com/warp/initiative-engine/tracker"
)

// Store implements tracker.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	session
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session carries the active querier; the same methods serve the plain
// store and the transaction-bound wrapper.
type session struct {
	q querier
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, session: session{q: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one serialized transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tracker.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{session{q: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transaction-bound view handed to WithTx bodies.
type txStore struct {
	session
}

// WithTx on an already-open transaction just runs fn in the same one.
func (t *txStore) WithTx(_ context.Context, fn func(tracker.Store) error) error {
	return fn(t)
}

// Reset deletes all rows. Used by the demo scenario loaders; child tables
// go first so the RESTRICT constraints never fire.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"task_challenge_groups", "task_positions", "tasks",
		"major_activities", "kpis", "milestones", "ksis",
		"challenge_groups", "challenge_types", "positions", "departments",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	-- Org reference data
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		department_id TEXT NOT NULL REFERENCES departments(id) ON DELETE RESTRICT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		user_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_department ON positions(department_id);
	CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id) WHERE user_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS challenge_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS challenge_groups (
		id TEXT PRIMARY KEY,
		challenge_type_id TEXT NOT NULL REFERENCES challenge_types(id) ON DELETE RESTRICT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_challenge_groups_type ON challenge_groups(challenge_type_id);

	-- The tree, one table per level
	CREATE TABLE IF NOT EXISTS ksis (
		id TEXT PRIMARY KEY,
		department_id TEXT NOT NULL REFERENCES departments(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ksis_department ON ksis(department_id);

	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		ksi_id TEXT NOT NULL REFERENCES ksis(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		weight TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_milestones_ksi ON milestones(ksi_id);

	CREATE TABLE IF NOT EXISTS kpis (
		id TEXT PRIMARY KEY,
		milestone_id TEXT NOT NULL REFERENCES milestones(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		planned_kpi INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kpis_milestone ON kpis(milestone_id);

	CREATE TABLE IF NOT EXISTS major_activities (
		id TEXT PRIMARY KEY,
		kpi_id TEXT NOT NULL REFERENCES kpis(id) ON DELETE RESTRICT,
		department_id TEXT REFERENCES departments(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		weight TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activities_kpi ON major_activities(kpi_id);
	CREATE INDEX IF NOT EXISTS idx_activities_department
		ON major_activities(department_id) WHERE department_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		major_activity_id TEXT NOT NULL REFERENCES major_activities(id) ON DELETE RESTRICT,
		parent_task_id TEXT REFERENCES tasks(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		actual_start_date TEXT,
		actual_end_date TEXT,
		weight TEXT NOT NULL,
		status TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		other_challenge TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_activity ON tasks(major_activity_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_parent
		ON tasks(parent_task_id) WHERE parent_task_id IS NOT NULL;

	-- Assignment sets
	CREATE TABLE IF NOT EXISTS task_positions (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		position_id TEXT NOT NULL REFERENCES positions(id) ON DELETE RESTRICT,
		PRIMARY KEY (task_id, position_id)
	);
	CREATE INDEX IF NOT EXISTS idx_task_positions_position ON task_positions(position_id);

	CREATE TABLE IF NOT EXISTS task_challenge_groups (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		group_id TEXT NOT NULL REFERENCES challenge_groups(id) ON DELETE RESTRICT,
		PRIMARY KEY (task_id, group_id)
	);
	CREATE INDEX IF NOT EXISTS idx_task_challenge_groups_group ON task_challenge_groups(group_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339) }

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// orderBy maps the whitelisted ordering keys onto SQL. Unrecognized keys
// fall back to creation order.
func orderBy(ordering string) string {
	dir := "ASC"
	field := ordering
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		field = ordering[1:]
	}
	switch field {
	case "name":
		return fmt.Sprintf("ORDER BY name %s, created_at %s", dir, dir)
	case "created_date":
		return fmt.Sprintf("ORDER BY created_at %s, name %s", dir, dir)
	default:
		return "ORDER BY created_at ASC, name ASC"
	}
}

// deleteRow removes one row, translating FK violations to ErrInUse.
func (s session) deleteRow(ctx context.Context, table string, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id.String())
	if isForeignKeyError(err) {
		return tracker.ErrInUse
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tracker.ErrNotFound
	}
	return nil
}

// =============================================================================
// DEPARTMENTS
// =============================================================================

const departmentCols = "id, name, description, created_at, updated_at"

func scanDepartment(row interface{ Scan(...any) error }) (*orgdata.Department, error) {
	var d orgdata.Department
	var id, created, updated string
	if err := row.Scan(&id, &d.Name, &d.Description, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	d.CreatedDate = parseStamp(created)
	d.UpdatedDate = parseStamp(updated)
	return &d, nil
}

func (s session) CreateDepartment(ctx context.Context, d *orgdata.Department) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO departments (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		d.ID.String(), d.Name, d.Description, now, now)
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err == nil {
		d.CreatedDate = parseStamp(now)
		d.UpdatedDate = d.CreatedDate
	}
	return err
}

func (s session) GetDepartment(ctx context.Context, id uuid.UUID) (*orgdata.Department, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+departmentCols+" FROM departments WHERE id = ?", id.String())
	return scanDepartment(row)
}

func (s session) ListDepartments(ctx context.Context, q tracker.Query) ([]orgdata.Department, error) {
	query := "SELECT " + departmentCols + " FROM departments WHERE name LIKE '%' || ? || '%' " + orderBy(q.Ordering)
	rows, err := s.q.QueryContext(ctx, query, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.Department, 0)
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s session) UpdateDepartment(ctx context.Context, d *orgdata.Department) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE departments SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		d.Name, d.Description, nowStamp(), d.ID.String())
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "departments", id)
}

// =============================================================================
// POSITIONS
// =============================================================================

const positionCols = "id, department_id, name, description, user_id, created_at, updated_at"

func scanPosition(row interface{ Scan(...any) error }) (*orgdata.Position, error) {
	var p orgdata.Position
	var id, deptID, created, updated string
	var userID sql.NullString
	if err := row.Scan(&id, &deptID, &p.Name, &p.Description, &userID, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if p.DepartmentID, err = uuid.Parse(deptID); err != nil {
		return nil, err
	}
	if p.UserID, err = parseNullUUID(userID); err != nil {
		return nil, err
	}
	p.CreatedDate = parseStamp(created)
	p.UpdatedDate = parseStamp(updated)
	return &p, nil
}

func (s session) CreatePosition(ctx context.Context, p *orgdata.Position) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO positions (id, department_id, name, description, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID.String(), p.DepartmentID.String(), p.Name, p.Description, nullUUID(p.UserID), now, now)
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err == nil {
		p.CreatedDate = parseStamp(now)
		p.UpdatedDate = p.CreatedDate
	}
	return err
}

func (s session) GetPosition(ctx context.Context, id uuid.UUID) (*orgdata.Position, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+positionCols+" FROM positions WHERE id = ?", id.String())
	return scanPosition(row)
}

func (s session) ListPositions(ctx context.Context, q tracker.Query) ([]orgdata.Position, error) {
	query := "SELECT " + positionCols + " FROM positions WHERE name LIKE '%' || ? || '%' " + orderBy(q.Ordering)
	rows, err := s.q.QueryContext(ctx, query, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s session) UpdatePosition(ctx context.Context, p *orgdata.Position) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE positions SET department_id = ?, name = ?, description = ?, user_id = ?, updated_at = ? WHERE id = ?",
		p.DepartmentID.String(), p.Name, p.Description, nullUUID(p.UserID), nowStamp(), p.ID.String())
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeletePosition(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "positions", id)
}

// =============================================================================
// CHALLENGE TAXONOMY
// =============================================================================

const challengeTypeCols = "id, name, description, created_at, updated_at"

func scanChallengeType(row interface{ Scan(...any) error }) (*orgdata.ChallengeType, error) {
	var t orgdata.ChallengeType
	var id, created, updated string
	if err := row.Scan(&id, &t.Name, &t.Description, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	t.CreatedDate = parseStamp(created)
	t.UpdatedDate = parseStamp(updated)
	return &t, nil
}

func (s session) CreateChallengeType(ctx context.Context, t *orgdata.ChallengeType) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO challenge_types (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		t.ID.String(), t.Name, t.Description, now, now)
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err == nil {
		t.CreatedDate = parseStamp(now)
		t.UpdatedDate = t.CreatedDate
	}
	return err
}

func (s session) GetChallengeType(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeType, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+challengeTypeCols+" FROM challenge_types WHERE id = ?", id.String())
	return scanChallengeType(row)
}

func (s session) ListChallengeTypes(ctx context.Context, q tracker.Query) ([]orgdata.ChallengeType, error) {
	query := "SELECT " + challengeTypeCols + " FROM challenge_types WHERE name LIKE '%' || ? || '%' " + orderBy(q.Ordering)
	rows, err := s.q.QueryContext(ctx, query, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.ChallengeType, 0)
	for rows.Next() {
		t, err := scanChallengeType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s session) UpdateChallengeType(ctx context.Context, t *orgdata.ChallengeType) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE challenge_types SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		t.Name, t.Description, nowStamp(), t.ID.String())
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteChallengeType(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "challenge_types", id)
}

const challengeGroupCols = "id, challenge_type_id, name, description, created_at, updated_at"

func scanChallengeGroup(row interface{ Scan(...any) error }) (*orgdata.ChallengeGroup, error) {
	var g orgdata.ChallengeGroup
	var id, typeID, created, updated string
	if err := row.Scan(&id, &typeID, &g.Name, &g.Description, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}
	var err error
	if g.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if g.ChallengeTypeID, err = uuid.Parse(typeID); err != nil {
		return nil, err
	}
	g.CreatedDate = parseStamp(created)
	g.UpdatedDate = parseStamp(updated)
	return &g, nil
}

func (s session) CreateChallengeGroup(ctx context.Context, g *orgdata.ChallengeGroup) error {
	now := nowStamp()
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO challenge_groups (id, challenge_type_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		g.ID.String(), g.ChallengeTypeID.String(), g.Name, g.Description, now, now)
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err == nil {
		g.CreatedDate = parseStamp(now)
		g.UpdatedDate = g.CreatedDate
	}
	return err
}

func (s session) GetChallengeGroup(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeGroup, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+challengeGroupCols+" FROM challenge_groups WHERE id = ?", id.String())
	return scanChallengeGroup(row)
}

func (s session) ListChallengeGroups(ctx context.Context, q tracker.Query) ([]orgdata.ChallengeGroup, error) {
	query := "SELECT " + challengeGroupCols + " FROM challenge_groups WHERE name LIKE '%' || ? || '%' " + orderBy(q.Ordering)
	rows, err := s.q.QueryContext(ctx, query, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.ChallengeGroup, 0)
	for rows.Next() {
		g, err := scanChallengeGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s session) UpdateChallengeGroup(ctx context.Context, g *orgdata.ChallengeGroup) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE challenge_groups SET challenge_type_id = ?, name = ?, description = ?, updated_at = ? WHERE id = ?",
		g.ChallengeTypeID.String(), g.Name, g.Description, nowStamp(), g.ID.String())
	if isUniqueConstraintError(err) {
		return orgdata.ErrDuplicateName
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s session) DeleteChallengeGroup(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "challenge_groups", id)
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s session) AddTaskPositions(ctx context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error {
	// INSERT OR IGNORE makes the add idempotent on the composite key.
	for _, id := range positionIDs {
		_, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_positions (task_id, position_id) VALUES (?, ?)",
			taskID.String(), id.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s session) RemoveTaskPositions(ctx context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error {
	for _, id := range positionIDs {
		_, err := s.q.ExecContext(ctx,
			"DELETE FROM task_positions WHERE task_id = ? AND position_id = ?",
			taskID.String(), id.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s session) ListTaskPositions(ctx context.Context, taskID uuid.UUID) ([]orgdata.Position, error) {
	query := `
		SELECT p.id, p.department_id, p.name, p.description, p.user_id, p.created_at, p.updated_at
		FROM positions p
		JOIN task_positions tp ON tp.position_id = p.id
		WHERE tp.task_id = ?
		ORDER BY p.name ASC`
	rows, err := s.q.QueryContext(ctx, query, taskID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s session) SetTaskChallengeGroups(ctx context.Context, taskID uuid.UUID, groupIDs []uuid.UUID) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM task_challenge_groups WHERE task_id = ?", taskID.String()); err != nil {
		return err
	}
	for _, id := range groupIDs {
		_, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_challenge_groups (task_id, group_id) VALUES (?, ?)",
			taskID.String(), id.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s session) ListTaskChallengeGroups(ctx context.Context, taskID uuid.UUID) ([]orgdata.ChallengeGroup, error) {
	query := `
		SELECT g.id, g.challenge_type_id, g.name, g.description, g.created_at, g.updated_at
		FROM challenge_groups g
		JOIN task_challenge_groups tg ON tg.group_id = g.id
		WHERE tg.task_id = ?
		ORDER BY g.name ASC`
	rows, err := s.q.QueryContext(ctx, query, taskID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgdata.ChallengeGroup, 0)
	for rows.Next() {
		g, err := scanChallengeGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

/*
Package orgdata holds the supporting organizational entities: departments,
positions, and the challenge taxonomy. These are the reference data the
initiative tree hangs off - a KSI is owned by a Department, a Position
scopes what a Lead or Expert can see, and Tasks are tagged with
ChallengeGroups.

All entities carry server-set created/updated timestamps and unique names
of at least two characters. Deletion is blocked while children reference
the entity (the store surfaces referential-integrity violations as
conflict errors, never cascades).
*/
package orgdata

import (
	"time"

	"github.com/google/uuid"
)

// Department owns KSIs and optionally tags MajorActivities. Positions
// belong to exactly one department.
type Department struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedDate time.Time
	UpdatedDate time.Time
}

// Position is a department-scoped job slot, optionally held by exactly one
// user. It drives both Lead department-scoping and Expert task assignment.
type Position struct {
	ID           uuid.UUID
	DepartmentID uuid.UUID
	Name         string
	Description  string
	UserID       *uuid.UUID // the position holder, when filled
	CreatedDate  time.Time
	UpdatedDate  time.Time
}

// ChallengeType is the root of the challenge taxonomy.
type ChallengeType struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedDate time.Time
	UpdatedDate time.Time
}

// ChallengeGroup refines a ChallengeType; tasks are tagged with groups.
type ChallengeGroup struct {
	ID              uuid.UUID
	ChallengeTypeID uuid.UUID
	Name            string
	Description     string
	CreatedDate     time.Time
	UpdatedDate     time.Time
}

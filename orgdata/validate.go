package orgdata

import (
	"errors"
	"strings"

	"github.com/warp/initiative-engine/hierarchy"
)

// MinNameLength is the floor for all orgdata entity names.
const MinNameLength = 2

// ErrDuplicateName is surfaced by stores when a unique-name index rejects
// a write.
var ErrDuplicateName = errors.New("name already in use")

// ValidateName checks the shared name constraint. Uniqueness is enforced by
// the store's unique index; this covers shape only.
func ValidateName(name string) hierarchy.FieldErrors {
	fields := hierarchy.FieldErrors{}
	if len(strings.TrimSpace(name)) < MinNameLength {
		fields.Add("name", "Name must be at least 2 characters.")
	}
	return fields
}

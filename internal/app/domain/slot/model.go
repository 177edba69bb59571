// Package slot defines the referral-tree slot model and the pure loss
// classification applied when a slot owner is expropriated.
package slot

import "time"

// OwnerType describes who holds a slot.
type OwnerType string

const (
	OwnerPlatform OwnerType = "PLATFORM"
	OwnerUser     OwnerType = "USER"
	OwnerVacant   OwnerType = "VACANT"
)

// RootLabel names the platform root slot. It is never assigned or
// expropriated.
const RootLabel = "P_ROOT"

// Slot is a node in the fixed-arity referral tree. Ownership is the only
// state that changes after tree initialization; Version increments on every
// ownership write so concurrent expropriations cannot clobber each other.
type Slot struct {
	ID          string
	Label       string
	Level       int
	Position    int
	ParentID    *string
	OwnerType   OwnerType
	OwnerUserID *string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRoot reports whether the slot is a tree root.
func (s Slot) IsRoot() bool {
	return s.ParentID == nil
}

// UserOwned reports whether the slot is held by a resolvable user.
func (s Slot) UserOwned() bool {
	return s.OwnerType == OwnerUser && s.OwnerUserID != nil && *s.OwnerUserID != ""
}

// TransferLog is an immutable audit record of a single ownership change.
// Exactly one row exists per ownership write, appended in the same
// transaction.
type TransferLog struct {
	ID              string
	SlotID          string
	SlotLabel       string
	FromOwnerType   OwnerType
	FromOwnerUserID *string
	ToOwnerType     OwnerType
	ToOwnerUserID   *string
	Reason          string
	CreatedAt       time.Time
}

// Issue is a single integrity finding.
type Issue struct {
	Code      string  `json:"code"`
	ParentID  string  `json:"parent_id,omitempty"`
	Label     string  `json:"label,omitempty"`
	SlotID    string  `json:"slot_id,omitempty"`
	Count     int     `json:"count,omitempty"`
	MissingID *string `json:"missing_id,omitempty"`
}

// Integrity issue codes. These are warnings, not errors.
const (
	IssueTooManyChildren = "TOO_MANY_CHILDREN"
	IssueMissingParent   = "MISSING_PARENT"
)

// TreeReport is the output of an integrity pass over the whole slot table.
type TreeReport struct {
	Valid       bool    `json:"valid"`
	SlotCount   int     `json:"slot_count"`
	MaxChildren int     `json:"max_children"`
	Issues      []Issue `json:"issues"`
}

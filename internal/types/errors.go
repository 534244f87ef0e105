package types

import "errors"

// Error taxonomy shared by the engine. All operational failures wrap one of
// these sentinels so callers can branch with errors.Is.
var (
	// ErrRecordNotFound is returned when a master or merge-candidate record
	// does not resolve to an active record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidThreshold is returned when a similarity threshold falls
	// outside (0, 1].
	ErrInvalidThreshold = errors.New("threshold must be in (0, 1]")

	// ErrEmptyMergeSet is returned when fewer than one valid merge candidate
	// survives validation.
	ErrEmptyMergeSet = errors.New("no valid merge candidates")

	// ErrGroupNotFound is returned when a duplicate group id is unknown.
	ErrGroupNotFound = errors.New("duplicate group not found")

	// ErrInvalidTransition is returned when a group status change is not
	// allowed by the status lifecycle.
	ErrInvalidTransition = errors.New("invalid group status transition")

	// ErrUnknownEntityType is returned for entity types outside the closed
	// enumeration.
	ErrUnknownEntityType = errors.New("unknown entity type")
)

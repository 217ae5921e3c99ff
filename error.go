// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAVoter is returned when an approval caller is not in the voter set
	ErrNotAVoter = errors.New("not a voter")

	// ErrDuplicateApproval is returned when a voter approves the same target
	// twice in one round
	ErrDuplicateApproval = errors.New("duplicate approval")

	// ErrDuplicateVoter is returned by the voter set constructor when
	// duplicates are rejected by policy
	ErrDuplicateVoter = errors.New("duplicate voter")

	// ErrUnknownToken is returned for operations on a token id that was
	// never issued
	ErrUnknownToken = errors.New("unknown token")

	// ErrAlreadyInvalid is returned when invalidating a badge twice
	ErrAlreadyInvalid = errors.New("badge already invalid")
)

// Error is a coded error surfaced across transport boundaries
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("badge error %d: %s", e.Code, e.Message)
}

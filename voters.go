// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// VoterSet is the fixed set of identities authorized to approve registry
// mutations. It is immutable after construction: voters are stored both as
// an ordered sequence for enumeration and as a membership set for O(1)
// authorization checks.
type VoterSet struct {
	ordered []ids.ShortID
	members set.Set[ids.ShortID]
}

// VoterSetOption configures voter set construction.
type VoterSetOption func(*voterSetConfig)

type voterSetConfig struct {
	rejectDuplicates bool
}

// WithRejectDuplicates makes construction fail with ErrDuplicateVoter when
// the input list contains the same identity twice. Without it, duplicate
// entries keep their slots and inflate the unanimity threshold beyond the
// number of distinct voters, which makes unanimity unreachable for the
// affected set.
func WithRejectDuplicates() VoterSetOption {
	return func(c *voterSetConfig) {
		c.rejectDuplicates = true
	}
}

// NewVoterSet creates a voter set from an ordered list of identities.
// The input order is preserved for enumeration.
func NewVoterSet(voters []ids.ShortID, opts ...VoterSetOption) (*VoterSet, error) {
	cfg := voterSetConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	ordered := make([]ids.ShortID, len(voters))
	copy(ordered, voters)

	members := set.NewSet[ids.ShortID](len(voters))
	for i, v := range voters {
		if cfg.rejectDuplicates && members.Contains(v) {
			return nil, fmt.Errorf("%w: %s at index %d", ErrDuplicateVoter, v, i)
		}
		members.Add(v)
	}

	return &VoterSet{
		ordered: ordered,
		members: members,
	}, nil
}

// Voters returns the voter identities in construction order.
func (v *VoterSet) Voters() []ids.ShortID {
	voters := make([]ids.ShortID, len(v.ordered))
	copy(voters, v.ordered)
	return voters
}

// Contains returns true if the identity is an authorized voter.
func (v *VoterSet) Contains(id ids.ShortID) bool {
	return v.members.Contains(id)
}

// Threshold returns the approval count required for unanimity: the raw slot
// count of the input list, duplicates included.
func (v *VoterSet) Threshold() int {
	return len(v.ordered)
}

// Distinct returns the number of distinct voter identities.
func (v *VoterSet) Distinct() int {
	return v.members.Len()
}

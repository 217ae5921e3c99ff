// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// tracker records, per target key, which voters approved in the current
// round. A round is the set of approvers accumulated since the last reset;
// the count is always derived from the set, never stored separately.
// Round records are created lazily and dropped on reset, so a completed
// round returns the key to its empty state for reuse.
type tracker[K comparable] struct {
	rounds map[K]set.Set[ids.ShortID]
}

func newTracker[K comparable]() *tracker[K] {
	return &tracker[K]{
		rounds: make(map[K]set.Set[ids.ShortID]),
	}
}

// approve marks the voter as having approved the key in the current round
// and returns the updated approval count. Returns ErrDuplicateApproval,
// leaving the round unchanged, if the voter already approved this key.
func (t *tracker[K]) approve(voter ids.ShortID, key K) (int, error) {
	round, ok := t.rounds[key]
	if !ok {
		round = set.NewSet[ids.ShortID](1)
		t.rounds[key] = round
	}

	if round.Contains(voter) {
		return round.Len(), ErrDuplicateApproval
	}

	round.Add(voter)
	return round.Len(), nil
}

// count returns the number of distinct approvals recorded for the key.
func (t *tracker[K]) count(key K) int {
	return t.rounds[key].Len()
}

// reset drops the round record for the key.
func (t *tracker[K]) reset(key K) {
	delete(t.rounds, key)
}

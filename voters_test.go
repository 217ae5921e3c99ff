// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestVoterSetOrderPreserved(t *testing.T) {
	voters := []ids.ShortID{
		ids.GenerateTestShortID(),
		ids.GenerateTestShortID(),
		ids.GenerateTestShortID(),
	}

	voterSet, err := NewVoterSet(voters)
	require.NoError(t, err)
	require.Equal(t, voters, voterSet.Voters())
	require.Equal(t, 3, voterSet.Threshold())
	require.Equal(t, 3, voterSet.Distinct())

	for _, v := range voters {
		require.True(t, voterSet.Contains(v))
	}
	require.False(t, voterSet.Contains(ids.GenerateTestShortID()))
}

func TestVoterSetImmutable(t *testing.T) {
	original := []ids.ShortID{ids.GenerateTestShortID(), ids.GenerateTestShortID()}
	voterSet, err := NewVoterSet(original)
	require.NoError(t, err)

	// Mutating the input or the returned slice must not affect the set
	original[0] = ids.GenerateTestShortID()
	returned := voterSet.Voters()
	returned[1] = ids.GenerateTestShortID()

	require.NotEqual(t, original[0], voterSet.Voters()[0])
	require.NotEqual(t, returned[1], voterSet.Voters()[1])
}

func TestVoterSetDuplicates(t *testing.T) {
	a := ids.GenerateTestShortID()
	b := ids.GenerateTestShortID()

	// Default policy keeps duplicate slots and inflates the threshold
	voterSet, err := NewVoterSet([]ids.ShortID{a, b, a})
	require.NoError(t, err)
	require.Equal(t, 3, voterSet.Threshold())
	require.Equal(t, 2, voterSet.Distinct())
	require.Equal(t, []ids.ShortID{a, b, a}, voterSet.Voters())

	// Opt-in policy rejects duplicates at construction
	_, err = NewVoterSet([]ids.ShortID{a, b, a}, WithRejectDuplicates())
	require.ErrorIs(t, err, ErrDuplicateVoter)
}

func TestVoterSetEmpty(t *testing.T) {
	voterSet, err := NewVoterSet(nil)
	require.NoError(t, err)
	require.Zero(t, voterSet.Threshold())
	require.Empty(t, voterSet.Voters())
	require.False(t, voterSet.Contains(ids.GenerateTestShortID()))
}

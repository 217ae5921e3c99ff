// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"github.com/stretchr/testify/require"
)

type issuance struct {
	tokenID TokenID
	owner   ids.ShortID
}

// mockRegistry records registry calls and can be programmed to fail
type mockRegistry struct {
	nextID        TokenID
	issued        []issuance
	invalidated   []TokenID
	issueErr      error
	invalidateErr error
}

func (m *mockRegistry) Issue(_ context.Context, owner ids.ShortID) (TokenID, error) {
	if m.issueErr != nil {
		return 0, m.issueErr
	}
	m.nextID++
	m.issued = append(m.issued, issuance{tokenID: m.nextID, owner: owner})
	return m.nextID, nil
}

func (m *mockRegistry) Invalidate(_ context.Context, tokenID TokenID) error {
	if m.invalidateErr != nil {
		return m.invalidateErr
	}
	m.invalidated = append(m.invalidated, tokenID)
	return nil
}

func newTestConsensus(t *testing.T, numVoters int) (*Consensus, []ids.ShortID, *mockRegistry) {
	voters := make([]ids.ShortID, numVoters)
	for i := range voters {
		voters[i] = ids.GenerateTestShortID()
	}
	voterSet, err := NewVoterSet(voters)
	require.NoError(t, err)

	registry := &mockRegistry{}
	return NewConsensus(voterSet, registry), voters, registry
}

func TestApproveMintThresholdExact(t *testing.T) {
	for _, numVoters := range []int{1, 2, 3, 5} {
		owner := ids.GenerateTestShortID()
		c, voters, registry := newTestConsensus(t, numVoters)

		for i, voter := range voters {
			tokenID, issued, err := c.ApproveMint(context.Background(), voter, owner)
			require.NoError(t, err)

			if i < numVoters-1 {
				require.False(t, issued)
				require.Zero(t, tokenID)
				require.Empty(t, registry.issued)
				require.Equal(t, i+1, c.MintApprovals(owner))
			} else {
				require.True(t, issued)
				require.Equal(t, TokenID(1), tokenID)
				require.Len(t, registry.issued, 1)
				require.Equal(t, owner, registry.issued[0].owner)
			}
		}
	}
}

func TestApproveMintScenarioThreeVoters(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 3)
	a, b, cc := voters[0], voters[1], voters[2]
	owner := ids.GenerateTestShortID()
	ctx := context.Background()

	_, issued, err := c.ApproveMint(ctx, a, owner)
	require.NoError(t, err)
	require.False(t, issued)
	require.Equal(t, 1, c.MintApprovals(owner))

	_, issued, err = c.ApproveMint(ctx, b, owner)
	require.NoError(t, err)
	require.False(t, issued)
	require.Equal(t, 2, c.MintApprovals(owner))

	// A approving again fails and leaves the count unchanged
	_, _, err = c.ApproveMint(ctx, a, owner)
	require.ErrorIs(t, err, ErrDuplicateApproval)
	require.Equal(t, 2, c.MintApprovals(owner))
	require.Empty(t, registry.issued)

	tokenID, issued, err := c.ApproveMint(ctx, cc, owner)
	require.NoError(t, err)
	require.True(t, issued)
	require.Equal(t, TokenID(1), tokenID)
	require.Len(t, registry.issued, 1)

	// The round reset, so A may approve the same owner again
	require.Zero(t, c.MintApprovals(owner))
	_, issued, err = c.ApproveMint(ctx, a, owner)
	require.NoError(t, err)
	require.False(t, issued)
	require.Equal(t, 1, c.MintApprovals(owner))
}

func TestApproveMintSingleVoter(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 1)
	owner := ids.GenerateTestShortID()

	tokenID, issued, err := c.ApproveMint(context.Background(), voters[0], owner)
	require.NoError(t, err)
	require.True(t, issued)
	require.Equal(t, TokenID(1), tokenID)
	require.Len(t, registry.issued, 1)
}

func TestNonVoterRejected(t *testing.T) {
	c, _, registry := newTestConsensus(t, 3)
	outsider := ids.GenerateTestShortID()
	ctx := context.Background()

	_, _, err := c.ApproveMint(ctx, outsider, ids.GenerateTestShortID())
	require.ErrorIs(t, err, ErrNotAVoter)

	_, err = c.ApproveInvalidate(ctx, outsider, TokenID(1))
	require.ErrorIs(t, err, ErrNotAVoter)

	require.Empty(t, registry.issued)
	require.Empty(t, registry.invalidated)
}

func TestApproveInvalidateUnanimity(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 3)
	tokenID := TokenID(7)
	ctx := context.Background()

	for i, voter := range voters[:2] {
		invalidated, err := c.ApproveInvalidate(ctx, voter, tokenID)
		require.NoError(t, err)
		require.False(t, invalidated)
		require.Equal(t, i+1, c.InvalidateApprovals(tokenID))
	}
	require.Empty(t, registry.invalidated)

	invalidated, err := c.ApproveInvalidate(ctx, voters[2], tokenID)
	require.NoError(t, err)
	require.True(t, invalidated)
	require.Equal(t, []TokenID{tokenID}, registry.invalidated)
	require.Zero(t, c.InvalidateApprovals(tokenID))
}

func TestMintInvalidateIndependence(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 2)
	owner := ids.GenerateTestShortID()
	tokenID := TokenID(3)
	ctx := context.Background()

	_, _, err := c.ApproveMint(ctx, voters[0], owner)
	require.NoError(t, err)

	_, err = c.ApproveInvalidate(ctx, voters[0], tokenID)
	require.NoError(t, err)

	// Each tracker saw exactly one approval; neither leaked into the other
	require.Equal(t, 1, c.MintApprovals(owner))
	require.Equal(t, 1, c.InvalidateApprovals(tokenID))

	_, issued, err := c.ApproveMint(ctx, voters[1], owner)
	require.NoError(t, err)
	require.True(t, issued)
	require.Len(t, registry.issued, 1)
	require.Empty(t, registry.invalidated)
	require.Equal(t, 1, c.InvalidateApprovals(tokenID))
}

func TestDuplicateVoterSlotsStuckRound(t *testing.T) {
	// The same identity listed twice keeps both slots: the threshold is 2
	// but a single voter can never approve twice, so the round can never
	// complete. This is the documented behavior, not a bug to fix here.
	a := ids.GenerateTestShortID()
	voterSet, err := NewVoterSet([]ids.ShortID{a, a})
	require.NoError(t, err)
	require.Equal(t, 2, voterSet.Threshold())
	require.Equal(t, 1, voterSet.Distinct())

	registry := &mockRegistry{}
	c := NewConsensus(voterSet, registry)
	owner := ids.GenerateTestShortID()
	ctx := context.Background()

	_, issued, err := c.ApproveMint(ctx, a, owner)
	require.NoError(t, err)
	require.False(t, issued)
	require.Equal(t, 1, c.MintApprovals(owner))

	_, _, err = c.ApproveMint(ctx, a, owner)
	require.ErrorIs(t, err, ErrDuplicateApproval)
	require.Equal(t, 1, c.MintApprovals(owner))
	require.Empty(t, registry.issued)
}

func TestIssueErrorPropagatesAfterReset(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 2)
	owner := ids.GenerateTestShortID()
	ctx := context.Background()

	_, _, err := c.ApproveMint(ctx, voters[0], owner)
	require.NoError(t, err)

	issueErr := errors.New("ledger unavailable")
	registry.issueErr = issueErr

	_, issued, err := c.ApproveMint(ctx, voters[1], owner)
	require.ErrorIs(t, err, issueErr)
	require.False(t, issued)

	// The reset happened before the registry call and is not rolled back
	require.Zero(t, c.MintApprovals(owner))
}

func TestInvalidateUnknownTokenPropagates(t *testing.T) {
	c, voters, registry := newTestConsensus(t, 1)
	registry.invalidateErr = ErrUnknownToken

	_, err := c.ApproveInvalidate(context.Background(), voters[0], TokenID(99))
	require.ErrorIs(t, err, ErrUnknownToken)
	require.Zero(t, c.InvalidateApprovals(TokenID(99)))
}

func TestRepeatedRoundsSameOwner(t *testing.T) {
	// Owners may hold many badges: back-to-back completed rounds for the
	// same owner issue distinct tokens.
	c, voters, registry := newTestConsensus(t, 2)
	owner := ids.GenerateTestShortID()
	ctx := context.Background()

	for round := 1; round <= 3; round++ {
		for _, voter := range voters {
			_, _, err := c.ApproveMint(ctx, voter, owner)
			require.NoError(t, err)
		}
		require.Len(t, registry.issued, round)
	}
	require.Equal(t, TokenID(1), registry.issued[0].tokenID)
	require.Equal(t, TokenID(2), registry.issued[1].tokenID)
	require.Equal(t, TokenID(3), registry.issued[2].tokenID)
}

type declaringRegistry struct {
	mockRegistry
}

func (d *declaringRegistry) Capabilities() set.Set[Capability] {
	return set.Of(CapRegistry, CapMetadata)
}

func TestCapabilities(t *testing.T) {
	voterSet, err := NewVoterSet([]ids.ShortID{ids.GenerateTestShortID()})
	require.NoError(t, err)

	c := NewConsensus(voterSet, &declaringRegistry{})
	require.True(t, c.Supports(CapConsensus))
	require.True(t, c.Supports(CapRegistry))
	require.True(t, c.Supports(CapMetadata))
	require.False(t, c.Supports(CapEnumeration))

	// A registry that declares nothing still leaves the extension discoverable
	plain := NewConsensus(voterSet, &mockRegistry{})
	require.True(t, plain.Supports(CapConsensus))
	require.False(t, plain.Supports(CapRegistry))
}

type recordingAcceptor struct {
	events []Event
}

func (r *recordingAcceptor) Accept(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestApprovalEvents(t *testing.T) {
	voters := []ids.ShortID{ids.GenerateTestShortID(), ids.GenerateTestShortID()}
	voterSet, err := NewVoterSet(voters)
	require.NoError(t, err)

	recorder := &recordingAcceptor{}
	group := NewAcceptorGroup()
	group.RegisterAcceptor("recorder", recorder)

	c := NewConsensus(voterSet, &mockRegistry{}, WithAcceptorGroup(group))
	ctx := context.Background()

	_, _, err = c.ApproveMint(ctx, voters[0], ids.GenerateTestShortID())
	require.NoError(t, err)
	_, err = c.ApproveInvalidate(ctx, voters[0], TokenID(1))
	require.NoError(t, err)

	require.Len(t, recorder.events, 2)
	require.Equal(t, "mint-approval", recorder.events[0].Kind())
	require.Equal(t, "invalidate-approval", recorder.events[1].Kind())

	mint, ok := recorder.events[0].(MintApprovalEvent)
	require.True(t, ok)
	require.Equal(t, voters[0], mint.Voter)
	require.Equal(t, 1, mint.Approvals)
	require.Equal(t, 2, mint.Threshold)
}

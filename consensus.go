// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"
)

// Registry is the external ledger that performs actual issuance and
// invalidation. Issue must produce a distinct token on every call, even for
// a repeated owner. Invalidate must fail for an unknown token id rather
// than silently succeeding.
type Registry interface {
	Issue(ctx context.Context, owner ids.ShortID) (TokenID, error)
	Invalidate(ctx context.Context, tokenID TokenID) error
}

// Consensus converts independent, unordered approvals from a fixed voter
// set into exactly one triggering call into the Registry. Mint approvals
// are tracked per candidate owner and invalidation approvals per token id;
// the two never interact. A target's round resets the instant its approval
// count reaches the voter set threshold, immediately before the registry
// call, so the next round starts clean regardless of the call's outcome.
type Consensus struct {
	mu               sync.Mutex
	voters           *VoterSet
	mintRounds       *tracker[ids.ShortID]
	invalidateRounds *tracker[TokenID]
	registry         Registry
	log              log.Logger
	events           *AcceptorGroup
}

// ConsensusOption configures a Consensus.
type ConsensusOption func(*Consensus)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) ConsensusOption {
	return func(c *Consensus) {
		c.log = logger
	}
}

// WithAcceptorGroup sets the group receiving informational approval events.
func WithAcceptorGroup(g *AcceptorGroup) ConsensusOption {
	return func(c *Consensus) {
		c.events = g
	}
}

// NewConsensus creates a consensus controller over the given voter set and
// registry.
func NewConsensus(voters *VoterSet, registry Registry, opts ...ConsensusOption) *Consensus {
	c := &Consensus{
		voters:           voters,
		mintRounds:       newTracker[ids.ShortID](),
		invalidateRounds: newTracker[TokenID](),
		registry:         registry,
		log:              log.NoLog{},
		events:           NewAcceptorGroup(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voters returns the voter identities in construction order.
func (c *Consensus) Voters() []ids.ShortID {
	return c.voters.Voters()
}

// Threshold returns the approval count required to trigger a registry call.
func (c *Consensus) Threshold() int {
	return c.voters.Threshold()
}

// ApproveMint records voter's approval for issuing a new badge to owner.
// When the approval completes the round it calls Registry.Issue and returns
// the new token id with issued set to true. Fails with ErrNotAVoter for
// unauthorized callers and ErrDuplicateApproval for a repeat approval in
// the current round; registry errors propagate verbatim.
func (c *Consensus) ApproveMint(ctx context.Context, voter ids.ShortID, owner ids.ShortID) (TokenID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.voters.Contains(voter) {
		return 0, false, fmt.Errorf("%w: %s", ErrNotAVoter, voter)
	}

	approvals, err := c.mintRounds.approve(voter, owner)
	if err != nil {
		return 0, false, fmt.Errorf("%w: voter %s already approved minting to %s", err, voter, owner)
	}

	c.emit(ctx, MintApprovalEvent{
		Voter:     voter,
		Owner:     owner,
		Approvals: approvals,
		Threshold: c.voters.Threshold(),
	})
	c.log.Debug("mint approval recorded",
		log.Stringer("voter", voter),
		log.Stringer("owner", owner),
		log.Int("approvals", approvals),
		log.Int("threshold", c.voters.Threshold()),
	)

	if approvals != c.voters.Threshold() {
		return 0, false, nil
	}

	// Reset before issuing so the next round for this owner starts clean
	// even if the registry call fails or re-enters a query.
	c.mintRounds.reset(owner)

	tokenID, err := c.registry.Issue(ctx, owner)
	if err != nil {
		return 0, false, fmt.Errorf("failed to issue badge to %s: %w", owner, err)
	}

	c.log.Info("badge issuance triggered",
		log.Stringer("owner", owner),
		log.Uint64("tokenID", uint64(tokenID)),
	)
	return tokenID, true, nil
}

// ApproveInvalidate records voter's approval for invalidating the given
// token. When the approval completes the round it calls Registry.Invalidate
// and returns true. Whether the token exists is the registry's concern; an
// unknown-token error surfaces only on the triggering call.
func (c *Consensus) ApproveInvalidate(ctx context.Context, voter ids.ShortID, tokenID TokenID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.voters.Contains(voter) {
		return false, fmt.Errorf("%w: %s", ErrNotAVoter, voter)
	}

	approvals, err := c.invalidateRounds.approve(voter, tokenID)
	if err != nil {
		return false, fmt.Errorf("%w: voter %s already approved invalidating token %d", err, voter, tokenID)
	}

	c.emit(ctx, InvalidateApprovalEvent{
		Voter:     voter,
		Token:     tokenID,
		Approvals: approvals,
		Threshold: c.voters.Threshold(),
	})
	c.log.Debug("invalidate approval recorded",
		log.Stringer("voter", voter),
		log.Uint64("tokenID", uint64(tokenID)),
		log.Int("approvals", approvals),
		log.Int("threshold", c.voters.Threshold()),
	)

	if approvals != c.voters.Threshold() {
		return false, nil
	}

	c.invalidateRounds.reset(tokenID)

	if err := c.registry.Invalidate(ctx, tokenID); err != nil {
		return false, fmt.Errorf("failed to invalidate token %d: %w", tokenID, err)
	}

	c.log.Info("badge invalidation triggered",
		log.Uint64("tokenID", uint64(tokenID)),
	)
	return true, nil
}

// MintApprovals returns the approval count for the owner's current round.
func (c *Consensus) MintApprovals(owner ids.ShortID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mintRounds.count(owner)
}

// InvalidateApprovals returns the approval count for the token's current round.
func (c *Consensus) InvalidateApprovals(tokenID TokenID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.invalidateRounds.count(tokenID)
}

// Capabilities returns the registry's declared capabilities, if it declares
// any, plus CapConsensus.
func (c *Consensus) Capabilities() set.Set[Capability] {
	caps := set.NewSet[Capability](4)
	if declarer, ok := c.registry.(CapabilityDeclarer); ok {
		caps.Union(declarer.Capabilities())
	}
	caps.Add(CapConsensus)
	return caps
}

// Supports returns true if the capability is advertised.
func (c *Consensus) Supports(capability Capability) bool {
	return c.Capabilities().Contains(capability)
}

func (c *Consensus) emit(ctx context.Context, e Event) {
	if err := c.events.Accept(ctx, e); err != nil {
		c.log.Warn("event delivery failed",
			log.String("kind", e.Kind()),
			log.Err(err),
		)
	}
}

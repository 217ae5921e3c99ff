// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
)

// Event is an informational notification about registry or approval
// activity. Events are not required for correctness; delivery failures
// never abort the action that produced them.
type Event interface {
	Kind() string
}

// MintApprovalEvent is emitted when a mint approval is recorded.
type MintApprovalEvent struct {
	Voter     ids.ShortID
	Owner     ids.ShortID
	Approvals int
	Threshold int
}

func (MintApprovalEvent) Kind() string { return "mint-approval" }

// InvalidateApprovalEvent is emitted when an invalidation approval is recorded.
type InvalidateApprovalEvent struct {
	Voter     ids.ShortID
	Token     TokenID
	Approvals int
	Threshold int
}

func (InvalidateApprovalEvent) Kind() string { return "invalidate-approval" }

// BadgeIssuedEvent is emitted by the ledger when a badge is issued.
type BadgeIssuedEvent struct {
	Token TokenID
	Owner ids.ShortID
}

func (BadgeIssuedEvent) Kind() string { return "badge-issued" }

// BadgeInvalidatedEvent is emitted by the ledger when a badge is invalidated.
type BadgeInvalidatedEvent struct {
	Token TokenID
	Owner ids.ShortID
}

func (BadgeInvalidatedEvent) Kind() string { return "badge-invalidated" }

// Acceptor is implemented when a struct is monitoring emitted events.
type Acceptor interface {
	Accept(ctx context.Context, e Event) error
}

// AcceptorGroup fans events out to a set of named acceptors.
type AcceptorGroup struct {
	mu        sync.RWMutex
	acceptors map[string]Acceptor
}

// NewAcceptorGroup creates an empty acceptor group.
func NewAcceptorGroup() *AcceptorGroup {
	return &AcceptorGroup{
		acceptors: make(map[string]Acceptor),
	}
}

// RegisterAcceptor adds a named acceptor. Re-registering a name replaces
// the previous acceptor.
func (g *AcceptorGroup) RegisterAcceptor(name string, acceptor Acceptor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.acceptors[name] = acceptor
}

// DeregisterAcceptor removes a named acceptor.
func (g *AcceptorGroup) DeregisterAcceptor(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.acceptors, name)
}

// Accept delivers the event to every registered acceptor and returns the
// first delivery error, if any. Callers treating events as informational
// may ignore the returned error.
func (g *AcceptorGroup) Accept(ctx context.Context, e Event) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var firstErr error
	for _, acceptor := range g.acceptors {
		if err := acceptor.Accept(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

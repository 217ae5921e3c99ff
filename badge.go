// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package badge implements a non-transferable token ("badge") registry
// extension that gates issuance and invalidation behind unanimous approval
// from a fixed voter set.
package badge

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// TokenID identifies a single badge within a registry
type TokenID uint64

// Badge is a non-transferable record owned by one identity. Badges are
// created by issuance and never deleted; invalidation flips Valid to false.
// Content lives off-system and is referenced by the opaque URI locator.
type Badge struct {
	ID            TokenID
	Owner         ids.ShortID
	URI           string
	Valid         bool
	IssuedAt      time.Time
	InvalidatedAt time.Time
}

// Capability identifies a discoverable feature set, so integrators can
// detect an extension without attempting a call first.
type Capability uint32

const (
	// CapRegistry is the base badge ledger (issue, invalidate, ownership queries)
	CapRegistry Capability = iota

	// CapMetadata is the token URI locator extension
	CapMetadata

	// CapEnumeration is the per-owner and global enumeration extension
	CapEnumeration

	// CapConsensus is the unanimous-approval gating extension
	CapConsensus
)

func (c Capability) String() string {
	switch c {
	case CapRegistry:
		return "registry"
	case CapMetadata:
		return "metadata"
	case CapEnumeration:
		return "enumeration"
	case CapConsensus:
		return "consensus"
	default:
		return "unknown"
	}
}

// CapabilityDeclarer is implemented by components that advertise their
// supported capability set.
type CapabilityDeclarer interface {
	Capabilities() set.Set[Capability]
}

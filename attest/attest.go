// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package attest provides BLS-signed approval envelopes, so a service can
// verify that an approval really originates from the claimed voter.
package attest

import (
	"errors"
	"fmt"

	"github.com/luxfi/badge"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
)

var (
	// ErrInvalidAttestation is returned when a signature does not verify
	ErrInvalidAttestation = errors.New("invalid attestation")

	// ErrUnknownVoterKey is returned when no public key is registered for
	// the claimed voter
	ErrUnknownVoterKey = errors.New("unknown voter key")
)

// Action is the registry mutation being approved
type Action uint8

const (
	ActionMint Action = iota
	ActionInvalidate
)

func (a Action) String() string {
	switch a {
	case ActionMint:
		return "mint"
	case ActionInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// Approval is the signed statement "voter approves this action on this
// target". Replay within a round is rejected by the approval tracker, and a
// re-approval after a completed round is a legitimate new vote, so the
// envelope carries no nonce.
type Approval struct {
	Action Action        `serialize:"true"`
	Voter  ids.ShortID   `serialize:"true"`
	Owner  ids.ShortID   `serialize:"true"`
	Token  badge.TokenID `serialize:"true"`
}

// MintApproval builds the approval statement for issuing a badge to owner.
func MintApproval(voter ids.ShortID, owner ids.ShortID) *Approval {
	return &Approval{
		Action: ActionMint,
		Voter:  voter,
		Owner:  owner,
	}
}

// InvalidateApproval builds the approval statement for invalidating a token.
func InvalidateApproval(voter ids.ShortID, tokenID badge.TokenID) *Approval {
	return &Approval{
		Action: ActionInvalidate,
		Voter:  voter,
		Token:  tokenID,
	}
}

// Digest returns the canonical bytes signed by the voter.
func (a *Approval) Digest() ([]byte, error) {
	b, err := badge.Codec.Marshal(badge.CodecVersion, a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal approval: %w", err)
	}
	return badge.ComputeHash256(b), nil
}

// Sign signs the approval's digest with the voter's secret key.
func Sign(sk *bls.SecretKey, a *Approval) ([]byte, error) {
	digest, err := a.Digest()
	if err != nil {
		return nil, err
	}
	sig, err := sk.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign approval: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// Verify checks the signature over the approval's digest against the given
// public key.
func Verify(pk *bls.PublicKey, a *Approval, sigBytes []byte) error {
	digest, err := a.Digest()
	if err != nil {
		return err
	}
	sig, err := bls.SignatureFromBytes(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAttestation, err)
	}
	if !bls.Verify(pk, sig, digest) {
		return ErrInvalidAttestation
	}
	return nil
}

// KeyRing maps voter identities to their BLS public keys.
type KeyRing struct {
	keys map[ids.ShortID]*bls.PublicKey
}

// NewKeyRing parses a map of voter identity to compressed public key bytes.
func NewKeyRing(compressed map[ids.ShortID][]byte) (*KeyRing, error) {
	keys := make(map[ids.ShortID]*bls.PublicKey, len(compressed))
	for voter, pkBytes := range compressed {
		pk, err := bls.PublicKeyFromCompressedBytes(pkBytes)
		if err != nil {
			return nil, fmt.Errorf("malformed public key for voter %s: %w", voter, err)
		}
		keys[voter] = pk
	}
	return &KeyRing{keys: keys}, nil
}

// Verify checks the signature against the key registered for the claimed
// voter.
func (k *KeyRing) Verify(a *Approval, sigBytes []byte) error {
	pk, ok := k.keys[a.Voter]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoterKey, a.Voter)
	}
	return Verify(pk, a, sigBytes)
}

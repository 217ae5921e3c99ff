// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package attest

import (
	"testing"

	"github.com/luxfi/badge"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	pk := bls.PublicFromSecretKey(sk)

	voter := ids.GenerateTestShortID()
	approval := MintApproval(voter, ids.GenerateTestShortID())

	sig, err := Sign(sk, approval)
	require.NoError(t, err)
	require.NoError(t, Verify(pk, approval, sig))
}

func TestVerifyWrongKey(t *testing.T) {
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	otherSK, err := bls.NewSecretKey()
	require.NoError(t, err)

	approval := InvalidateApproval(ids.GenerateTestShortID(), badge.TokenID(5))
	sig, err := Sign(sk, approval)
	require.NoError(t, err)

	err = Verify(bls.PublicFromSecretKey(otherSK), approval, sig)
	require.ErrorIs(t, err, ErrInvalidAttestation)
}

func TestVerifyTamperedApproval(t *testing.T) {
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	pk := bls.PublicFromSecretKey(sk)

	voter := ids.GenerateTestShortID()
	approval := InvalidateApproval(voter, badge.TokenID(5))
	sig, err := Sign(sk, approval)
	require.NoError(t, err)

	// Same signature over a different target must not verify
	tampered := InvalidateApproval(voter, badge.TokenID(6))
	require.ErrorIs(t, Verify(pk, tampered, sig), ErrInvalidAttestation)

	// Nor over a different action on the same voter
	crossAction := MintApproval(voter, ids.ShortEmpty)
	require.ErrorIs(t, Verify(pk, crossAction, sig), ErrInvalidAttestation)
}

func TestKeyRing(t *testing.T) {
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	voter := ids.GenerateTestShortID()

	ring, err := NewKeyRing(map[ids.ShortID][]byte{
		voter: bls.PublicKeyToCompressedBytes(bls.PublicFromSecretKey(sk)),
	})
	require.NoError(t, err)

	approval := MintApproval(voter, ids.GenerateTestShortID())
	sig, err := Sign(sk, approval)
	require.NoError(t, err)
	require.NoError(t, ring.Verify(approval, sig))

	// A claimed voter with no registered key is rejected
	stranger := MintApproval(ids.GenerateTestShortID(), ids.GenerateTestShortID())
	require.ErrorIs(t, ring.Verify(stranger, sig), ErrUnknownVoterKey)
}

func TestKeyRingMalformedKey(t *testing.T) {
	_, err := NewKeyRing(map[ids.ShortID][]byte{
		ids.GenerateTestShortID(): []byte("not a key"),
	})
	require.Error(t, err)
}

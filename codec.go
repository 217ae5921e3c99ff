// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package badge

import (
	"crypto/sha256"

	"github.com/luxfi/geth/rlp"
)

// CodecVersion is the current serialization version
const CodecVersion = 0

// CodecImpl is used for serializing/deserializing badge records and
// approval digests
type CodecImpl struct{}

// Codec is the default codec instance
var Codec = &CodecImpl{}

// Marshal serializes the value
func (c *CodecImpl) Marshal(version uint16, v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// Unmarshal deserializes the bytes
func (c *CodecImpl) Unmarshal(b []byte, v interface{}) (uint16, error) {
	err := rlp.DecodeBytes(b, v)
	return CodecVersion, err
}

// ComputeHash256 computes SHA256 hash
func ComputeHash256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

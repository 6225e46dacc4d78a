package analyzer

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
)

// extractSelectors scans raw bytecode for PUSH4 followed by exactly four
// bytes and collects the pushed values as candidate selectors, unique, in
// first-seen order.
//
// This is a heuristic, not a disassembler: the scan does not track
// instruction boundaries, so a 0x63 inside push data or the metadata trailer
// can produce a false positive. That trade-off is accepted; callers filter
// candidates against the signature registry.
func extractSelectors(code []byte) [][4]byte {
	var (
		out  [][4]byte
		seen = make(map[[4]byte]struct{})
	)
	for i := 0; i+4 < len(code); i++ {
		if vm.OpCode(code[i]) != vm.PUSH4 {
			continue
		}
		var sel [4]byte
		copy(sel[:], code[i+1:i+5])
		if _, ok := seen[sel]; ok {
			continue
		}
		seen[sel] = struct{}{}
		out = append(out, sel)
	}
	return out
}

// containsOpcode reports whether the opcode byte occurs anywhere in the code.
// Like the selector scan this ignores instruction boundaries.
func containsOpcode(code []byte, op vm.OpCode) bool {
	return bytes.IndexByte(code, byte(op)) >= 0
}

// cborMetadataMarker is the start of the Solidity-appended CBOR trailer:
// a2 64 'i' 'p' 'f' 's' 58 22 — a 2-entry map whose first key is "ipfs"
// followed by a 34-byte hash.
const cborMetadataMarker = "a264697066735822"

const metadataHashHexLen = 64

// extractMetadata looks for the CBOR metadata trailer and returns the
// embedded content hash (hex, without multihash prefix) when present.
func extractMetadata(code []byte) (bool, string) {
	h := strings.ToLower(hex.EncodeToString(code))
	idx := strings.LastIndex(h, cborMetadataMarker)
	if idx < 0 {
		return false, ""
	}
	start := idx + len(cborMetadataMarker)
	if start+metadataHashHexLen > len(h) {
		return false, ""
	}
	return true, h[start : start+metadataHashHexLen]
}

// Local complexity tiers. The detector's 0..100 score supersedes this
// estimate in the merged record.
const (
	estimateMediumFloor = 10
	estimateHighFloor   = 50

	scoreMediumFloor = 30
	scoreHighFloor   = 70
)

func complexityEstimate(codeSize, functionCount int) int {
	est := codeSize/200 + functionCount
	if est < 1 {
		est = 1
	}
	return est
}

func levelFromEstimate(estimate int) string {
	switch {
	case estimate < estimateMediumFloor:
		return "Low"
	case estimate < estimateHighFloor:
		return "Medium"
	default:
		return "High"
	}
}

func levelFromScore(score int) string {
	switch {
	case score < scoreMediumFloor:
		return "Low"
	case score < scoreHighFloor:
		return "Medium"
	default:
		return "High"
	}
}

package analyzer

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// PatternDetector supplies higher-confidence structural findings for a piece
// of bytecode. The analyzer merges its output over the local scan, so it can
// be stubbed in tests and swapped for a richer engine.
type PatternDetector interface {
	AnalyzePatterns(code []byte) (*types.DetectorResult, error)
}

// HeuristicDetector is the in-process PatternDetector. Its selector detection
// is anchored to the dispatcher idiom (DUP1 PUSH4 <sel> EQ ... JUMPI), which
// cuts most of the false positives the raw PUSH4 scan accepts.
type HeuristicDetector struct{}

func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

// EIP-1967 implementation slot constant; a proxy reading its implementation
// address has to push it. The second value is the pre-EIP-1967 OpenZeppelin
// slot still live in older deployments.
var (
	eip1967ImplementationSlot  = hexutil.MustDecode("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	legacyOZImplementationSlot = hexutil.MustDecode("0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3")
)

// EIP-1167 minimal proxy shape, split around the variable-length pushed
// implementation address.
var (
	minimalProxyPrefix = [9]byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d}
	minimalProxySuffix = [15]byte{0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60, 0x2b, 0x57, 0xfd, 0x5b, 0xf3}
)

func (d *HeuristicDetector) AnalyzePatterns(code []byte) (*types.DetectorResult, error) {
	selectors := anchoredSelectors(code)

	var detected []types.DetectedFunction
	selSet := make(map[[4]byte]struct{}, len(selectors))
	for _, sel := range selectors {
		selSet[sel] = struct{}{}
		if fn, ok := lookupSelector(sel); ok {
			detected = append(detected, fn)
		}
	}

	result := &types.DetectorResult{
		DetectedPatterns:        detected,
		StandardsCompliance:     complianceReport(selSet),
		SecurityFeatures:        securityFeatureNames(selSet),
		ProxyType:               detectProxyType(code, selSet),
		ComplexityScore:         complexityScore(code, len(detected)),
		GasOptimizationFeatures: gasOptimizationFlags(code, len(selectors)),
	}
	return result, nil
}

// anchoredSelectors keeps only PUSH4 occurrences that sit inside a dispatcher
// comparison: preceded by DUP1 or followed by EQ.
func anchoredSelectors(code []byte) [][4]byte {
	var (
		out  [][4]byte
		seen = make(map[[4]byte]struct{})
	)
	for i := 0; i+4 < len(code); i++ {
		if vm.OpCode(code[i]) != vm.PUSH4 {
			continue
		}
		anchoredBefore := i > 0 && vm.OpCode(code[i-1]) == vm.DUP1
		anchoredAfter := i+5 < len(code) && vm.OpCode(code[i+5]) == vm.EQ
		if !anchoredBefore && !anchoredAfter {
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

func complianceReport(selSet map[[4]byte]struct{}) []types.StandardCompliance {
	var out []types.StandardCompliance
	for _, spec := range standards {
		var (
			matchedRequired int
			missing         []string
			extra           []string
		)
		for i, sig := range spec.Sigs {
			_, present := selSet[selectorOf(sig)]
			switch {
			case i < spec.Required && present:
				matchedRequired++
			case i < spec.Required:
				missing = append(missing, sig)
			case present:
				extra = append(extra, sig)
			}
		}
		if matchedRequired == 0 && len(extra) == 0 {
			continue
		}
		out = append(out, types.StandardCompliance{
			Standard:         spec.Standard,
			Compliance:       float64(matchedRequired) / float64(spec.Required) * 100,
			MissingFunctions: missing,
			ExtraFunctions:   extra,
		})
	}
	return out
}

func securityFeatureNames(selSet map[[4]byte]struct{}) []string {
	var out []string
	for _, sig := range securitySignatures {
		if _, ok := selSet[selectorOf(sig)]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// detectProxyType types the proxy shape. Bytecode-level templates are checked
// first, selector rules after; the UUPS rule runs last and overrides.
func detectProxyType(code []byte, selSet map[[4]byte]struct{}) string {
	proxyType := ""
	if isMinimalProxy(code) {
		proxyType = "Minimal Proxy (EIP-1167)"
	}
	if bytes.Contains(code, eip1967ImplementationSlot) || bytes.Contains(code, legacyOZImplementationSlot) {
		proxyType = "Transparent Proxy"
	}
	if _, ok := selSet[selImplementation]; ok {
		proxyType = "Transparent Proxy"
	}
	if _, ok := selSet[selUpgradeTo]; ok {
		proxyType = "UUPS Proxy"
	}
	return proxyType
}

// isMinimalProxy matches the EIP-1167 runtime template, tolerating the
// shortened-address push optimization (PUSH1..PUSH20).
func isMinimalProxy(code []byte) bool {
	if len(code) < 10 || !bytes.HasPrefix(code, minimalProxyPrefix[:]) {
		return false
	}
	push := code[9]
	if push < byte(vm.PUSH1) || push > byte(vm.PUSH20) {
		return false
	}
	addrLen := int(push-byte(vm.PUSH1)) + 1
	if 10+addrLen+len(minimalProxySuffix) > len(code) {
		return false
	}
	return bytes.HasPrefix(code[10+addrLen:], minimalProxySuffix[:])
}

// complexityScore maps structural signals onto 0..100: code size, dispatcher
// entries, jump density, and deployment patterns each contribute a capped
// share.
func complexityScore(code []byte, functionCount int) int {
	score := 0

	sizeScore := len(code) / 150
	if sizeScore > 40 {
		sizeScore = 40
	}
	score += sizeScore

	fnScore := functionCount * 3
	if fnScore > 30 {
		fnScore = 30
	}
	score += fnScore

	jdScore := bytes.Count(code, []byte{byte(vm.JUMPDEST)}) / 8
	if jdScore > 20 {
		jdScore = 20
	}
	score += jdScore

	if containsOpcode(code, vm.CREATE2) || containsOpcode(code, vm.DELEGATECALL) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

func gasOptimizationFlags(code []byte, selectorCount int) []string {
	var out []string
	if containsOpcode(code, vm.PUSH0) {
		out = append(out, "PUSH0 Usage")
	}
	// Large dispatchers compiled by solc with optimization split the selector
	// comparison into a GT-guarded binary search.
	if selectorCount >= 8 && containsOpcode(code, vm.GT) {
		out = append(out, "Binary Selector Dispatch")
	}
	return out
}

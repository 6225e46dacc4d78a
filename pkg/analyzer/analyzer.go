package analyzer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"go.uber.org/zap"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

var logger *zap.SugaredLogger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger = l.Sugar()
}

// Validation errors for raw bytecode input.
var (
	ErrEmptyBytecode     = errors.New("empty bytecode")
	ErrMalformedBytecode = errors.New("malformed bytecode")
	ErrBytecodeTooShort  = errors.New("bytecode too short")
)

// minBytecodeSize is the smallest code we analyze; anything shorter cannot
// hold a dispatcher.
const minBytecodeSize = 4

// Analyzer builds one BytecodeAnalysis per contract by composing the local
// scans with a PatternDetector's findings.
type Analyzer struct {
	detector PatternDetector
}

// NewAnalyzer creates an Analyzer. A nil detector falls back to the built-in
// HeuristicDetector.
func NewAnalyzer(detector PatternDetector) *Analyzer {
	if detector == nil {
		detector = NewHeuristicDetector()
	}
	return &Analyzer{detector: detector}
}

// Analyze fingerprints one contract's deployed bytecode. The bytecode is a
// hex string, with or without the 0x prefix. An empty name defaults to
// "Contract (<shortened address>)".
func (a *Analyzer) Analyze(bytecode string, address common.Address, name string) (*types.BytecodeAnalysis, error) {
	code, err := decodeBytecode(bytecode)
	if err != nil {
		return nil, err
	}

	selectors := extractSelectors(code)
	selSet := make(map[[4]byte]struct{}, len(selectors))
	functions := make(map[string]types.DetectedFunction)
	for _, sel := range selectors {
		selSet[sel] = struct{}{}
		if fn, ok := lookupSelector(sel); ok {
			functions[fn.Signature] = fn
		}
	}

	det, detErr := a.detector.AnalyzePatterns(code)
	if detErr != nil {
		logger.Warnw("pattern detector failed, keeping local findings only",
			"address", address.Hex(), "error", detErr)
		det = &types.DetectorResult{}
	}

	// Merge: detector entries overwrite local entries on selector collision.
	for _, fn := range det.DetectedPatterns {
		functions[fn.Signature] = fn
	}
	fns := make([]types.DetectedFunction, 0, len(functions))
	for _, fn := range functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Category != fns[j].Category {
			return fns[i].Category < fns[j].Category
		}
		return fns[i].Name < fns[j].Name
	})

	standardsSet := tagStandards(selSet)
	for _, sc := range det.StandardsCompliance {
		if sc.Compliance >= 100 {
			standardsSet[sc.Standard] = struct{}{}
		}
	}
	standardNames := make([]string, 0, len(standardsSet))
	for s := range standardsSet {
		standardNames = append(standardNames, s)
	}
	sort.Strings(standardNames)

	securityFeatures := mergeStrings(localSecurityFeatures(fns), det.SecurityFeatures)

	proxy := localProxyInfo(fns)
	if det.ProxyType != "" {
		proxy = types.ProxyInfo{IsProxy: true, Type: det.ProxyType}
	}

	hasMetadata, ipfsHash := extractMetadata(code)

	// The detector's 0..100 score supersedes the local estimate for the
	// reported level; the local tiers only apply when the detector failed.
	estimate := complexityEstimate(len(code), len(fns))
	complexity := types.ComplexityInfo{
		Estimate: estimate,
		Level:    levelFromScore(det.ComplexityScore),
		Score:    det.ComplexityScore,
	}
	if detErr != nil {
		complexity.Level = levelFromEstimate(estimate)
	}

	if name == "" {
		name = fmt.Sprintf("Contract (%s)", shortenAddress(address))
	}

	return &types.BytecodeAnalysis{
		Address:             address,
		Name:                name,
		CodeSize:            len(code),
		Standards:           standardNames,
		Functions:           fns,
		Patterns:            detectPatterns(code, fns),
		Complexity:          complexity,
		Security:            types.SecurityInfo{HasControls: len(securityFeatures) > 0, Features: securityFeatures},
		Proxy:               proxy,
		Metadata:            types.MetadataInfo{HasMetadata: hasMetadata, IPFSHash: ipfsHash},
		GasOptimizations:    det.GasOptimizationFeatures,
		StandardsCompliance: det.StandardsCompliance,
	}, nil
}

func decodeBytecode(bytecode string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(bytecode), "0x")
	if s == "" {
		return nil, ErrEmptyBytecode
	}
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBytecode, err)
	}
	if len(code) < minBytecodeSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBytecodeTooShort, len(code))
	}
	return code, nil
}

// tagStandards applies the hard threshold cutoffs over the raw selector set.
func tagStandards(selSet map[[4]byte]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, spec := range standards {
		matched := 0
		for _, sig := range spec.Sigs {
			if _, ok := selSet[selectorOf(sig)]; ok {
				matched++
			}
		}
		if matched >= spec.Threshold {
			out[spec.Standard] = struct{}{}
		}
	}
	return out
}

// detectPatterns flags structural idioms over the full code and the merged
// function set.
func detectPatterns(code []byte, fns []types.DetectedFunction) []string {
	var patterns []string
	if containsOpcode(code, vm.CREATE2) {
		patterns = append(patterns, "CREATE2 Usage")
	}
	if containsOpcode(code, vm.SELFDESTRUCT) {
		patterns = append(patterns, "Self-Destruct")
	}
	var hasProxy, hasPause, hasOwner bool
	for _, fn := range fns {
		if fn.Category == types.CategoryProxy {
			hasProxy = true
		}
		if strings.Contains(fn.Name, "pause") {
			hasPause = true
		}
		if strings.Contains(fn.Name, "owner") {
			hasOwner = true
		}
	}
	if hasProxy {
		patterns = append(patterns, "Proxy Pattern")
	}
	if hasPause {
		patterns = append(patterns, "Pausable")
	}
	if hasOwner {
		patterns = append(patterns, "Ownable")
	}
	return patterns
}

func localSecurityFeatures(fns []types.DetectedFunction) []string {
	var out []string
	for _, fn := range fns {
		if fn.Category == types.CategorySecurity {
			out = append(out, fn.Name)
		}
	}
	return out
}

// localProxyInfo applies the selector-based typing rules; the UUPS check runs
// last and overrides.
func localProxyInfo(fns []types.DetectedFunction) types.ProxyInfo {
	info := types.ProxyInfo{}
	for _, fn := range fns {
		if fn.Category == types.CategoryProxy {
			info.IsProxy = true
		}
	}
	if !info.IsProxy {
		return info
	}
	for _, fn := range fns {
		if fn.Signature == selectorHex(selImplementation) {
			info.Type = "Transparent Proxy"
		}
	}
	for _, fn := range fns {
		if fn.Signature == selectorHex(selUpgradeTo) {
			info.Type = "UUPS Proxy"
		}
	}
	return info
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// shortenAddress keeps 0x plus the first and last four hex characters.
func shortenAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

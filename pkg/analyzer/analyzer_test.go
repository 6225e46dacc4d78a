package analyzer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

var testAddress = common.HexToAddress("0x36e6309aa7a923fb111ae50b56bfb3cfb2256f89")

// stubDetector returns a canned result so analyzer merge semantics can be
// tested without the heuristics.
type stubDetector struct {
	result types.DetectorResult
	err    error
}

func (s *stubDetector) AnalyzePatterns([]byte) (*types.DetectorResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	return &r, nil
}

func analyzeWithStub(t *testing.T, bytecode string, det *stubDetector) *types.BytecodeAnalysis {
	t.Helper()
	a := NewAnalyzer(det)
	got, err := a.Analyze(bytecode, testAddress, "")
	require.NoError(t, err)
	return got
}

func bytecodeOf(sigs ...string) string {
	return "0x" + hex.EncodeToString(push4(sigs...))
}

func TestAnalyze_TransferSelector(t *testing.T) {
	got := analyzeWithStub(t, "0x63a9059cbb", &stubDetector{})

	require.Len(t, got.Functions, 1)
	assert.Equal(t, "transfer(address,uint256)", got.Functions[0].Name)
	assert.Equal(t, types.CategoryERC20, got.Functions[0].Category)
	assert.Equal(t, "0xa9059cbb", got.Functions[0].Signature)
}

func TestAnalyze_ERC20Threshold(t *testing.T) {
	five := bytecodeOf(
		"totalSupply()",
		"balanceOf(address)",
		"transfer(address,uint256)",
		"allowance(address,address)",
		"approve(address,uint256)",
	)
	got := analyzeWithStub(t, five, &stubDetector{})
	assert.Contains(t, got.Standards, "ERC20")

	four := bytecodeOf(
		"totalSupply()",
		"balanceOf(address)",
		"transfer(address,uint256)",
		"allowance(address,address)",
	)
	got = analyzeWithStub(t, four, &stubDetector{})
	assert.NotContains(t, got.Standards, "ERC20")
}

func TestAnalyze_ERC721Threshold(t *testing.T) {
	got := analyzeWithStub(t, bytecodeOf(
		"ownerOf(uint256)",
		"safeTransferFrom(address,address,uint256)",
		"setApprovalForAll(address,bool)",
		"getApproved(uint256)",
	), &stubDetector{})
	assert.Contains(t, got.Standards, "ERC721")

	got = analyzeWithStub(t, bytecodeOf(
		"ownerOf(uint256)",
		"safeTransferFrom(address,address,uint256)",
		"setApprovalForAll(address,bool)",
	), &stubDetector{})
	assert.NotContains(t, got.Standards, "ERC721")
}

func TestAnalyze_SelectorUniquePerAnalysis(t *testing.T) {
	// The same selector twice in the code and once from the detector must
	// yield one entry, with the detector's categorization winning.
	code := bytecodeOf("transfer(address,uint256)", "transfer(address,uint256)")
	det := &stubDetector{result: types.DetectorResult{
		DetectedPatterns: []types.DetectedFunction{{
			Signature: "0xa9059cbb",
			Name:      "transfer(address,uint256)",
			Category:  types.CategoryUnknown,
		}},
	}}

	got := analyzeWithStub(t, code, det)
	require.Len(t, got.Functions, 1)
	assert.Equal(t, types.CategoryUnknown, got.Functions[0].Category)
}

func TestAnalyze_PatternsAndSecurity(t *testing.T) {
	code := bytecodeOf("pause()", "owner()", "implementation()") + "f5ff" // CREATE2, SELFDESTRUCT
	got := analyzeWithStub(t, code, &stubDetector{})

	assert.ElementsMatch(t, []string{
		"CREATE2 Usage", "Self-Destruct", "Proxy Pattern", "Pausable", "Ownable",
	}, got.Patterns)
	assert.True(t, got.Security.HasControls)
	assert.ElementsMatch(t, []string{"pause()", "owner()"}, got.Security.Features)
}

func TestAnalyze_SecurityFeaturesUnion(t *testing.T) {
	det := &stubDetector{result: types.DetectorResult{
		SecurityFeatures: []string{"owner()", "hasRole(bytes32,address)"},
	}}
	got := analyzeWithStub(t, bytecodeOf("owner()"), det)

	assert.ElementsMatch(t, []string{"owner()", "hasRole(bytes32,address)"}, got.Security.Features)
}

func TestAnalyze_ProxyTypeUUPSOverridesTransparent(t *testing.T) {
	got := analyzeWithStub(t, bytecodeOf("implementation()", "upgradeTo(address)"), &stubDetector{})
	assert.True(t, got.Proxy.IsProxy)
	assert.Equal(t, "UUPS Proxy", got.Proxy.Type)

	got = analyzeWithStub(t, bytecodeOf("implementation()"), &stubDetector{})
	assert.True(t, got.Proxy.IsProxy)
	assert.Equal(t, "Transparent Proxy", got.Proxy.Type)
}

func TestAnalyze_DetectorProxyPreferred(t *testing.T) {
	det := &stubDetector{result: types.DetectorResult{ProxyType: "Minimal Proxy (EIP-1167)"}}
	got := analyzeWithStub(t, "0x60806040", det)

	assert.True(t, got.Proxy.IsProxy)
	assert.Equal(t, "Minimal Proxy (EIP-1167)", got.Proxy.Type)
}

func TestAnalyze_ComplexityScoreSupersedesEstimate(t *testing.T) {
	tests := []struct {
		score int
		level string
	}{
		{10, "Low"},
		{45, "Medium"},
		{75, "High"},
	}
	for _, tt := range tests {
		det := &stubDetector{result: types.DetectorResult{ComplexityScore: tt.score}}
		got := analyzeWithStub(t, "0x60806040", det)
		assert.Equal(t, tt.level, got.Complexity.Level)
		assert.Equal(t, tt.score, got.Complexity.Score)
		assert.GreaterOrEqual(t, got.Complexity.Estimate, 1)
	}
}

func TestAnalyze_DetectorFailureKeepsLocalFindings(t *testing.T) {
	det := &stubDetector{err: errors.New("boom")}
	got, err := NewAnalyzer(det).Analyze(bytecodeOf("transfer(address,uint256)"), testAddress, "Token")
	require.NoError(t, err)

	assert.Len(t, got.Functions, 1)
	// local estimate tiers apply when the detector gave no score
	assert.Equal(t, levelFromEstimate(got.Complexity.Estimate), got.Complexity.Level)
}

func TestAnalyze_DefaultName(t *testing.T) {
	got := analyzeWithStub(t, "0x60806040", &stubDetector{})

	h := testAddress.Hex()
	want := fmt.Sprintf("Contract (%s...%s)", h[:6], h[len(h)-4:])
	assert.Equal(t, want, got.Name)
}

func TestAnalyze_ExplicitNameKept(t *testing.T) {
	a := NewAnalyzer(&stubDetector{})
	got, err := a.Analyze("0x60806040", testAddress, "MyToken")
	require.NoError(t, err)
	assert.Equal(t, "MyToken", got.Name)
}

func TestAnalyze_Validation(t *testing.T) {
	a := NewAnalyzer(&stubDetector{})

	_, err := a.Analyze("", testAddress, "")
	assert.ErrorIs(t, err, ErrEmptyBytecode)

	_, err = a.Analyze("0x", testAddress, "")
	assert.ErrorIs(t, err, ErrEmptyBytecode)

	_, err = a.Analyze("0xzz", testAddress, "")
	assert.ErrorIs(t, err, ErrMalformedBytecode)

	_, err = a.Analyze("0x6080", testAddress, "")
	assert.ErrorIs(t, err, ErrBytecodeTooShort)
}

func TestAnalyze_Metadata(t *testing.T) {
	hash := "a1b2c3d4e5f67890a1b2c3d4e5f67890a1b2c3d4e5f67890a1b2c3d4e5f67890"
	got := analyzeWithStub(t, "0x60806040"+cborMetadataMarker+hash, &stubDetector{})

	assert.True(t, got.Metadata.HasMetadata)
	assert.Equal(t, hash, got.Metadata.IPFSHash)
}

package analyzer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

func fingerprint(addr byte, codeSize int, isProxy bool, selectors ...string) *types.BytecodeAnalysis {
	a := &types.BytecodeAnalysis{
		Address:  common.BytesToAddress([]byte{addr}),
		Name:     common.BytesToAddress([]byte{addr}).Hex(),
		CodeSize: codeSize,
		Proxy:    types.ProxyInfo{IsProxy: isProxy},
	}
	for _, sel := range selectors {
		a.Functions = append(a.Functions, types.DetectedFunction{
			Signature: sel,
			Name:      sel,
			Category:  types.CategoryUnknown,
		})
	}
	return a
}

func TestSimilarity_JaccardValue(t *testing.T) {
	a := fingerprint(1, 100, false, "a", "b", "c")
	b := fingerprint(2, 100, false, "b", "c", "d")

	m := similarity(a, b)
	assert.Equal(t, 50.0, m.Similarity) // 2 shared / 4 union
	assert.Equal(t, 2, m.SharedFunctions)
	assert.Equal(t, 4, m.TotalFunctions)
}

func TestSimilarity_Symmetric(t *testing.T) {
	a := fingerprint(1, 100, false, "a", "b", "c", "e")
	b := fingerprint(2, 100, false, "b", "c", "d")

	ab := similarity(a, b)
	ba := similarity(b, a)
	assert.Equal(t, ab.Similarity, ba.Similarity)
	assert.Equal(t, ab.SharedFunctions, ba.SharedFunctions)
	assert.Equal(t, ab.TotalFunctions, ba.TotalFunctions)

	// labels preserve input order
	assert.Equal(t, a.Address, ab.ContractA)
	assert.Equal(t, a.Address, ba.ContractB)
}

func TestSimilarity_Identical(t *testing.T) {
	a := fingerprint(1, 100, false, "a", "b")
	b := fingerprint(2, 100, false, "a", "b")
	assert.Equal(t, 100.0, similarity(a, b).Similarity)
}

func TestSimilarity_EmptyUnion(t *testing.T) {
	a := fingerprint(1, 100, false)
	b := fingerprint(2, 100, false)
	assert.Equal(t, 0.0, similarity(a, b).Similarity)
}

func TestSimilarity_Rounding(t *testing.T) {
	// 1 shared / 3 union = 33.333... -> 33.33
	a := fingerprint(1, 100, false, "a", "b")
	b := fingerprint(2, 100, false, "b", "c")
	assert.Equal(t, 33.33, similarity(a, b).Similarity)
}

func TestCompare_SimilaritiesSortedDescending(t *testing.T) {
	a := fingerprint(1, 100, false, "a", "b", "c")
	b := fingerprint(2, 100, false, "a", "b", "c")
	c := fingerprint(3, 100, false, "x")

	got := Compare([]*types.BytecodeAnalysis{a, b, c})
	require.Len(t, got.Similarities, 3)
	for i := 1; i < len(got.Similarities); i++ {
		assert.GreaterOrEqual(t, got.Similarities[i-1].Similarity, got.Similarities[i].Similarity)
	}
}

func TestCompare_ProxyRelationshipBeatsSimilar(t *testing.T) {
	// a small proxy and a large implementation with low overlap: the proxy
	// rule must fire even though similarity is below the threshold
	proxy := fingerprint(1, 45, true, "a")
	impl := fingerprint(2, 9000, false, "a", "b", "c", "d", "e")

	got := Compare([]*types.BytecodeAnalysis{impl, proxy})
	require.Len(t, got.Relationships, 1)
	rel := got.Relationships[0]
	assert.Equal(t, types.RelationshipProxyImplementation, rel.Type)
	assert.Equal(t, proxy.Address, rel.Contracts[0]) // oriented proxy first
	assert.Equal(t, impl.Address, rel.Contracts[1])
	assert.Equal(t, 0.95, rel.Confidence)
}

func TestCompare_ProxyNotSmallerFallsThrough(t *testing.T) {
	proxy := fingerprint(1, 9000, true, "a", "b", "c")
	other := fingerprint(2, 45, false, "a", "b", "c")

	got := Compare([]*types.BytecodeAnalysis{proxy, other})
	// proxy is not strictly smaller, so the pair falls through to the
	// similarity rule (100 > 80)
	require.Len(t, got.Relationships, 1)
	assert.Equal(t, types.RelationshipSimilar, got.Relationships[0].Type)
}

func TestCompare_SimilarRelationship(t *testing.T) {
	// 5 shared / 6 union = 83.33 > 80
	a := fingerprint(1, 100, false, "a", "b", "c", "d", "e")
	b := fingerprint(2, 100, false, "a", "b", "c", "d", "e", "f")

	got := Compare([]*types.BytecodeAnalysis{a, b})
	require.Len(t, got.Relationships, 1)
	rel := got.Relationships[0]
	assert.Equal(t, types.RelationshipSimilar, rel.Type)
	assert.InDelta(t, got.Similarities[0].Similarity/100, rel.Confidence, 1e-9)
}

func TestCompare_NoRelationshipBelowThreshold(t *testing.T) {
	a := fingerprint(1, 100, false, "a", "b")
	b := fingerprint(2, 100, false, "b", "c")

	got := Compare([]*types.BytecodeAnalysis{a, b})
	assert.Empty(t, got.Relationships)
}

func TestCompare_SingleContract(t *testing.T) {
	a := fingerprint(1, 100, false, "a")
	got := Compare([]*types.BytecodeAnalysis{a})
	assert.Len(t, got.Contracts, 1)
	assert.Empty(t, got.Similarities)
	assert.Empty(t, got.Relationships)
}

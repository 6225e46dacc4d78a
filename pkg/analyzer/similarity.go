package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// similarityThreshold is the cutoff above which two non-proxy contracts are
// reported as Similar.
const similarityThreshold = 80.0

// Compare runs the pairwise similarity and relationship inference over a set
// of analyses. Similarities come back sorted descending; relationships stay
// in discovery order, at most one per pair.
func Compare(analyses []*types.BytecodeAnalysis) *types.ContractComparison {
	comparison := &types.ContractComparison{
		Contracts:    analyses,
		Similarities: []types.SimilarityMetric{},
	}

	for i := 0; i < len(analyses); i++ {
		for j := i + 1; j < len(analyses); j++ {
			a, b := analyses[i], analyses[j]
			metric := similarity(a, b)
			comparison.Similarities = append(comparison.Similarities, metric)

			if rel, ok := inferRelationship(a, b, metric.Similarity); ok {
				comparison.Relationships = append(comparison.Relationships, rel)
			}
		}
	}

	sort.SliceStable(comparison.Similarities, func(i, j int) bool {
		return comparison.Similarities[i].Similarity > comparison.Similarities[j].Similarity
	})
	return comparison
}

// similarity is the Jaccard index over the two selector sets, scaled to
// 0..100 and rounded to two decimals. An empty union scores zero.
func similarity(a, b *types.BytecodeAnalysis) types.SimilarityMetric {
	setA := make(map[string]struct{}, len(a.Functions))
	for _, fn := range a.Functions {
		setA[fn.Signature] = struct{}{}
	}

	shared := 0
	union := len(setA)
	seenB := make(map[string]struct{}, len(b.Functions))
	for _, fn := range b.Functions {
		if _, dup := seenB[fn.Signature]; dup {
			continue
		}
		seenB[fn.Signature] = struct{}{}
		if _, ok := setA[fn.Signature]; ok {
			shared++
		} else {
			union++
		}
	}

	value := 0.0
	if union > 0 {
		value = math.Round(float64(shared)/float64(union)*100*100) / 100
	}
	return types.SimilarityMetric{
		ContractA:       a.Address,
		ContractB:       b.Address,
		Similarity:      value,
		SharedFunctions: shared,
		TotalFunctions:  union,
	}
}

// inferRelationship applies the priority rules: a proxy strictly smaller than
// its non-proxy counterpart wins over plain similarity.
func inferRelationship(a, b *types.BytecodeAnalysis, sim float64) (types.ContractRelationship, bool) {
	if a.Proxy.IsProxy != b.Proxy.IsProxy {
		proxy, impl := a, b
		if b.Proxy.IsProxy {
			proxy, impl = b, a
		}
		if proxy.CodeSize < impl.CodeSize {
			return types.ContractRelationship{
				Type:        types.RelationshipProxyImplementation,
				Contracts:   [2]common.Address{proxy.Address, impl.Address},
				Description: fmt.Sprintf("%s looks like a proxy in front of %s", proxy.Name, impl.Name),
				Confidence:  0.95,
			}, true
		}
	}
	if sim > similarityThreshold {
		return types.ContractRelationship{
			Type:        types.RelationshipSimilar,
			Contracts:   [2]common.Address{a.Address, b.Address},
			Description: fmt.Sprintf("%s and %s share %.2f%% of their function surface", a.Name, b.Name, sim),
			Confidence:  sim / 100,
		}, true
	}
	return types.ContractRelationship{}, false
}

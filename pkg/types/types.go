package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Category tags a detected function with the signature table it came from.
type Category string

const (
	CategoryERC20    Category = "ERC20"
	CategoryERC721   Category = "ERC721"
	CategoryProxy    Category = "Proxy"
	CategorySecurity Category = "Security"
	CategoryUnknown  Category = "Unknown"
)

// ContractRef identifies a contract to analyze. Name is optional.
type ContractRef struct {
	Address common.Address `csv:"address" json:"address"`
	Name    string         `csv:"name,omitempty" json:"name,omitempty"`
}

// DetectedFunction is a selector matched against the signature registry.
type DetectedFunction struct {
	Signature string   `json:"signature"` // 4-byte selector, 0x-prefixed hex
	Name      string   `json:"name"`      // canonical signature, e.g. transfer(address,uint256)
	Category  Category `json:"category"`
}

// ComplexityInfo carries both the local size-based estimate and the detector
// score. Level is bucketed from Score when a detector score is present.
type ComplexityInfo struct {
	Estimate int    `json:"estimate"`
	Level    string `json:"level"` // Low | Medium | High
	Score    int    `json:"score"` // 0..100
}

type SecurityInfo struct {
	HasControls bool     `json:"hasControls"`
	Features    []string `json:"features,omitempty"`
}

type ProxyInfo struct {
	IsProxy bool   `json:"isProxy"`
	Type    string `json:"type,omitempty"`
}

type MetadataInfo struct {
	HasMetadata bool   `json:"hasMetadata"`
	IPFSHash    string `json:"ipfsHash,omitempty"`
}

// StandardCompliance reports how close a contract comes to one token standard.
type StandardCompliance struct {
	Standard         string   `json:"standard"`
	Compliance       float64  `json:"compliance"` // percentage 0..100
	MissingFunctions []string `json:"missingFunctions,omitempty"`
	ExtraFunctions   []string `json:"extraFunctions,omitempty"`
}

// BytecodeAnalysis is the structural fingerprint of one deployed contract at
// one block tag. Immutable once produced.
type BytecodeAnalysis struct {
	Address             common.Address       `json:"address"`
	Name                string               `json:"name"`
	CodeSize            int                  `json:"codeSize"` // bytes
	Standards           []string             `json:"standards,omitempty"`
	Functions           []DetectedFunction   `json:"functions,omitempty"`
	Patterns            []string             `json:"patterns,omitempty"`
	Complexity          ComplexityInfo       `json:"complexity"`
	Security            SecurityInfo         `json:"security"`
	Proxy               ProxyInfo            `json:"proxy"`
	Metadata            MetadataInfo         `json:"metadata"`
	GasOptimizations    []string             `json:"gasOptimizations,omitempty"`
	StandardsCompliance []StandardCompliance `json:"standardsCompliance,omitempty"`
}

// SimilarityMetric is the Jaccard similarity of two contracts' selector sets.
// Symmetric: swapping A and B changes the labels, not the value.
type SimilarityMetric struct {
	ContractA       common.Address `json:"contractA"`
	ContractB       common.Address `json:"contractB"`
	Similarity      float64        `json:"similarity"` // 0..100, 2 decimals
	SharedFunctions int            `json:"sharedFunctions"`
	TotalFunctions  int            `json:"totalFunctions"`
}

type RelationshipType string

const (
	RelationshipProxyImplementation RelationshipType = "ProxyImplementation"
	RelationshipSimilar             RelationshipType = "Similar"
	RelationshipRelated             RelationshipType = "Related"
)

// ContractRelationship is an inferred link between two analyzed contracts.
// For ProxyImplementation the pair is oriented proxy first.
type ContractRelationship struct {
	Type        RelationshipType  `json:"type"`
	Contracts   [2]common.Address `json:"contracts"`
	Description string            `json:"description"`
	Confidence  float64           `json:"confidence"` // 0..1
}

// ContractComparison is the result of one pairwise comparison run.
type ContractComparison struct {
	Contracts     []*BytecodeAnalysis    `json:"contracts"`
	Similarities  []SimilarityMetric     `json:"similarities"`
	Relationships []ContractRelationship `json:"relationships,omitempty"`
}

// DetectorResult is the output contract of a PatternDetector.
type DetectorResult struct {
	DetectedPatterns        []DetectedFunction   `json:"detectedPatterns,omitempty"`
	StandardsCompliance     []StandardCompliance `json:"standardsCompliance,omitempty"`
	SecurityFeatures        []string             `json:"securityFeatures,omitempty"`
	ProxyType               string               `json:"proxyType,omitempty"`
	ComplexityScore         int                  `json:"complexityScore"` // 0..100
	GasOptimizationFeatures []string             `json:"gasOptimizationFeatures,omitempty"`
}

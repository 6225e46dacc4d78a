// Package export renders analysis results into downloadable artifacts.
// JSON round-trips losslessly; CSV emits three logical tables (contract
// summaries, detected functions, similarities).
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Metadata describes the export itself, not the contracts.
type Metadata struct {
	Network      string    `json:"network"`
	ExportedAt   time.Time `json:"exportedAt"`
	AnalysisType string    `json:"analysisType"`
}

type comparisonDocument struct {
	Metadata   Metadata                  `json:"metadata"`
	Comparison *types.ContractComparison `json:"comparison"`
}

type analysisDocument struct {
	Metadata Metadata                `json:"metadata"`
	Analysis *types.BytecodeAnalysis `json:"analysis"`
}

// WriteComparison renders a full comparison run.
func WriteComparison(w io.Writer, c *types.ContractComparison, format Format, meta Metadata) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(comparisonDocument{Metadata: meta, Comparison: c})
	case FormatCSV:
		return writeComparisonCSV(w, c)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteAnalysis renders a single contract's fingerprint.
func WriteAnalysis(w io.Writer, a *types.BytecodeAnalysis, format Format, meta Metadata) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(analysisDocument{Metadata: meta, Analysis: a})
	case FormatCSV:
		single := &types.ContractComparison{Contracts: []*types.BytecodeAnalysis{a}}
		return writeComparisonCSV(w, single)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadComparison loads a JSON artifact produced by WriteComparison.
func ReadComparison(r io.Reader) (*types.ContractComparison, Metadata, error) {
	var doc comparisonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, Metadata{}, err
	}
	return doc.Comparison, doc.Metadata, nil
}

type contractSummaryRow struct {
	Address         string  `csv:"address"`
	Name            string  `csv:"name"`
	CodeSize        int     `csv:"code_size"`
	Standards       string  `csv:"standards"`
	FunctionCount   int     `csv:"function_count"`
	ComplexityLevel string  `csv:"complexity_level"`
	ComplexityScore int     `csv:"complexity_score"`
	IsProxy         bool    `csv:"is_proxy"`
	ProxyType       string  `csv:"proxy_type"`
	HasControls     bool    `csv:"has_security_controls"`
	Patterns        string  `csv:"patterns"`
}

type functionRow struct {
	Contract string `csv:"contract"`
	Selector string `csv:"selector"`
	Name     string `csv:"name"`
	Category string `csv:"category"`
}

type similarityRow struct {
	ContractA       string  `csv:"contract_a"`
	ContractB       string  `csv:"contract_b"`
	Similarity      float64 `csv:"similarity"`
	SharedFunctions int     `csv:"shared_functions"`
	TotalFunctions  int     `csv:"total_functions"`
}

func writeComparisonCSV(w io.Writer, c *types.ContractComparison) error {
	summaries := make([]contractSummaryRow, 0, len(c.Contracts))
	var functions []functionRow
	for _, a := range c.Contracts {
		summaries = append(summaries, contractSummaryRow{
			Address:         a.Address.Hex(),
			Name:            a.Name,
			CodeSize:        a.CodeSize,
			Standards:       strings.Join(a.Standards, "|"),
			FunctionCount:   len(a.Functions),
			ComplexityLevel: a.Complexity.Level,
			ComplexityScore: a.Complexity.Score,
			IsProxy:         a.Proxy.IsProxy,
			ProxyType:       a.Proxy.Type,
			HasControls:     a.Security.HasControls,
			Patterns:        strings.Join(a.Patterns, "|"),
		})
		for _, fn := range a.Functions {
			functions = append(functions, functionRow{
				Contract: a.Address.Hex(),
				Selector: fn.Signature,
				Name:     fn.Name,
				Category: string(fn.Category),
			})
		}
	}
	similarities := make([]similarityRow, 0, len(c.Similarities))
	for _, s := range c.Similarities {
		similarities = append(similarities, similarityRow{
			ContractA:       s.ContractA.Hex(),
			ContractB:       s.ContractB.Hex(),
			Similarity:      s.Similarity,
			SharedFunctions: s.SharedFunctions,
			TotalFunctions:  s.TotalFunctions,
		})
	}

	sections := []struct {
		header string
		rows   interface{}
	}{
		{"# contracts", &summaries},
		{"# functions", &functions},
		{"# similarities", &similarities},
	}
	for i, sec := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, sec.header); err != nil {
			return err
		}
		if err := gocsv.Marshal(sec.rows, w); err != nil {
			return err
		}
	}
	return nil
}

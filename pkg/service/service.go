package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/analyzer"
	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/cache"
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

var (
	// ErrNoContracts means a batch produced zero successful analyses.
	ErrNoContracts = errors.New("no contracts could be analyzed successfully")
	// ErrNoContractsInTransaction means a transaction touched nothing with code.
	ErrNoContractsInTransaction = errors.New("transaction touched no contracts with bytecode")
)

// ChainReader is the RPC surface the service depends on.
type ChainReader interface {
	// GetCode returns the deployed bytecode as a 0x-prefixed hex string.
	GetCode(ctx context.Context, address common.Address, blockTag string) (string, error)
	GetCodeSize(ctx context.Context, address common.Address, blockTag string) (int, error)
	IsContract(ctx context.Context, address common.Address, blockTag string) (bool, error)
	// ContractsFromTransaction resolves the contracts a transaction touched.
	ContractsFromTransaction(ctx context.Context, txHash common.Hash) ([]types.ContractRef, error)
}

// Result is the per-contract outcome of a batch run. Exactly one of Analysis
// and Err is set.
type Result struct {
	Ref      types.ContractRef
	Analysis *types.BytecodeAnalysis
	Err      error
}

// Service orchestrates fetch, cache and analysis. The cache instance is
// injected so callers can run independent caches per network.
type Service struct {
	chain    ChainReader
	cache    *cache.Cache
	analyzer *analyzer.Analyzer
}

func NewService(chain ChainReader, c *cache.Cache, a *analyzer.Analyzer) (*Service, error) {
	if c == nil {
		var err error
		c, err = cache.New(cache.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}
	if a == nil {
		a = analyzer.NewAnalyzer(nil)
	}
	return &Service{chain: chain, cache: c, analyzer: a}, nil
}

// Cache exposes the injected cache (counters, explicit invalidation).
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// AnalyzeContract returns the fingerprint of one contract, hitting the cache
// before the chain. An empty blockTag means "latest".
func (s *Service) AnalyzeContract(ctx context.Context, address common.Address, name, blockTag string) (*types.BytecodeAnalysis, error) {
	if blockTag == "" {
		blockTag = "latest"
	}
	if cached, ok := s.cache.Get(address, blockTag); ok {
		return cached, nil
	}

	code, err := s.chain.GetCode(ctx, address, blockTag)
	if err != nil {
		return nil, fmt.Errorf("could not fetch bytecode for %s: %w", address.Hex(), err)
	}
	result, err := s.analyzer.Analyze(code, address, name)
	if err != nil {
		return nil, fmt.Errorf("could not analyze %s: %w", address.Hex(), err)
	}
	s.cache.Set(address, blockTag, result)
	return result, nil
}

// AnalyzeEach analyzes the contracts strictly sequentially and reports the
// outcome per contract. Failures do not stop the batch.
func (s *Service) AnalyzeEach(ctx context.Context, refs []types.ContractRef, blockTag string) []Result {
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		a, err := s.AnalyzeContract(ctx, ref.Address, ref.Name, blockTag)
		results = append(results, Result{Ref: ref, Analysis: a, Err: err})
	}
	return results
}

// AnalyzeMultipleContracts analyzes a set and feeds the successes into the
// pairwise comparison. Individual failures are logged and skipped; zero
// successes is a hard failure.
func (s *Service) AnalyzeMultipleContracts(ctx context.Context, refs []types.ContractRef) (*types.ContractComparison, error) {
	var analyses []*types.BytecodeAnalysis
	for _, r := range s.AnalyzeEach(ctx, refs, "latest") {
		if r.Err != nil {
			logger.Warnw("skipping contract", "address", r.Ref.Address.Hex(), "error", r.Err)
			continue
		}
		analyses = append(analyses, r.Analysis)
	}
	if len(analyses) == 0 {
		return nil, ErrNoContracts
	}
	return analyzer.Compare(analyses), nil
}

// AnalyzeFromTransaction resolves the contracts a transaction touched and
// compares them.
func (s *Service) AnalyzeFromTransaction(ctx context.Context, txHash common.Hash) (*types.ContractComparison, error) {
	refs, err := s.chain.ContractsFromTransaction(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("could not resolve contracts of tx %s: %w", txHash.Hex(), err)
	}
	if len(refs) == 0 {
		return nil, ErrNoContractsInTransaction
	}
	return s.AnalyzeMultipleContracts(ctx, refs)
}

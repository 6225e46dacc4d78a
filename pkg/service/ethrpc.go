package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/jsonrpc"
	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// Client implements ChainReader over a JSON-RPC connection.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

func NewClient(rpcClient *rpc.Client) *Client {
	return &Client{
		rpc: rpcClient,
		eth: ethclient.NewClient(rpcClient),
	}
}

func Dial(rawURL string) (*Client, error) {
	rpcClient, err := rpc.Dial(rawURL)
	if err != nil {
		return nil, err
	}
	return NewClient(rpcClient), nil
}

func (c *Client) GetCode(ctx context.Context, address common.Address, blockTag string) (string, error) {
	// The typed client covers the common case; historical tags go through the
	// raw eth_getCode call, which accepts any block tag the node understands.
	if blockTag == "" || blockTag == "latest" {
		code, err := c.eth.CodeAt(ctx, address, nil)
		if err != nil {
			return "", err
		}
		return hexutil.Encode(code), nil
	}
	code, err := jsonrpc.GetCode(ctx, c.rpc, address, blockTag)
	if err != nil {
		return "", err
	}
	return code.String(), nil
}

func (c *Client) GetCodeSize(ctx context.Context, address common.Address, blockTag string) (int, error) {
	code, err := jsonrpc.GetCode(ctx, c.rpc, address, blockTag)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

func (c *Client) IsContract(ctx context.Context, address common.Address, blockTag string) (bool, error) {
	size, err := c.GetCodeSize(ctx, address, blockTag)
	if err != nil {
		return false, err
	}
	return size > 0, nil
}

// ContractsFromTransaction traces the transaction and returns the unique
// contract addresses it touched, keeping only addresses that still hold code.
// Tries the node's native callTracer first and falls back to the embedded JS
// tracer on nodes that lack it.
func (c *Client) ContractsFromTransaction(ctx context.Context, txHash common.Hash) ([]types.ContractRef, error) {
	candidates, err := c.traceTouchedAddresses(ctx, txHash)
	if err != nil {
		return nil, err
	}

	var refs []types.ContractRef
	for _, addr := range candidates {
		isContract, err := c.IsContract(ctx, addr, "latest")
		if err != nil {
			return nil, fmt.Errorf("could not check code at %s: %w", addr.Hex(), err)
		}
		if isContract {
			refs = append(refs, types.ContractRef{Address: addr})
		}
	}
	return refs, nil
}

func (c *Client) traceTouchedAddresses(ctx context.Context, txHash common.Hash) ([]common.Address, error) {
	frame := new(jsonrpc.CallFrame)
	err := jsonrpc.DebugTraceTransaction(ctx, c.rpc, txHash, &jsonrpc.TracerConfig{Tracer: "callTracer"}, frame)
	if err == nil {
		var (
			out  []common.Address
			seen = make(map[common.Address]struct{})
		)
		frame.Visit(func(f *jsonrpc.CallFrame) {
			if f.To == nil {
				return
			}
			if _, ok := seen[*f.To]; ok {
				return
			}
			seen[*f.To] = struct{}{}
			out = append(out, *f.To)
		})
		return out, nil
	}
	logger.Warnw("native callTracer failed, retrying with embedded tracer", "tx", txHash.Hex(), "error", err)

	var hexAddrs []string
	err = jsonrpc.DebugTraceTransaction(ctx, c.rpc, txHash, &jsonrpc.TracerConfig{Tracer: string(addressTracerMinified)}, &hexAddrs)
	if err != nil {
		return nil, err
	}
	var (
		out  []common.Address
		seen = make(map[common.Address]struct{})
	)
	for _, h := range hexAddrs {
		if !common.IsHexAddress(h) {
			continue
		}
		addr := common.HexToAddress(h)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

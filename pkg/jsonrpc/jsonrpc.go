// Package jsonrpc wraps the raw Ethereum JSON-RPC methods the engine needs
// where ethclient has no suitable surface: eth_getCode with a free-form block
// tag and debug_traceTransaction with a configurable tracer.
package jsonrpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// GetCode fetches deployed bytecode at the given block tag ("latest",
// "pending" or a 0x-hex block number).
func GetCode(ctx context.Context, client *rpc.Client, address common.Address, blockTag string) (hexutil.Bytes, error) {
	var code hexutil.Bytes
	if err := client.CallContext(ctx, &code, "eth_getCode", address, blockTag); err != nil {
		return nil, err
	}
	return code, nil
}

// TracerConfig is debug_traceTransaction's tracer param.
type TracerConfig struct {
	Tracer       string          `json:"tracer"`
	TracerConfig json.RawMessage `json:"tracerConfig,omitempty"`
}

// DebugTraceTransaction wraps debug_traceTransaction.
func DebugTraceTransaction(ctx context.Context, client *rpc.Client, txHash common.Hash, tracer *TracerConfig, result interface{}) error {
	return client.CallContext(ctx, result, "debug_traceTransaction", txHash, tracer)
}

// CallLog similar to eth/tracers/native.callLog
type CallLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// CallFrame similar to eth/tracers/native.callFrame
type CallFrame struct {
	Type         string          `json:"type"`
	From         common.Address  `json:"from"`
	Gas          hexutil.Uint64  `json:"gas"`
	GasUsed      hexutil.Uint64  `json:"gasUsed"`
	To           *common.Address `json:"to,omitempty"`
	Input        hexutil.Bytes   `json:"input"`
	Output       hexutil.Bytes   `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	RevertReason string          `json:"revertReason,omitempty"`
	Calls        []CallFrame     `json:"calls,omitempty"`
	Logs         []CallLog       `json:"logs,omitempty"`
	Value        *hexutil.Big    `json:"value,omitempty"`
}

// Visit walks the frame and all nested calls depth-first.
func (f *CallFrame) Visit(fn func(*CallFrame)) {
	fn(f)
	for i := range f.Calls {
		f.Calls[i].Visit(fn)
	}
}

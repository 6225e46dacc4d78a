package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/export"
	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/service"
)

func main() {
	var (
		rpcURL  = flag.String("rpc", "http://localhost:8545", "JSON-RPC endpoint (needs debug_traceTransaction)")
		txHash  = flag.String("tx", "", "transaction hash to analyze")
		outFile = flag.String("out", "comparison.json", "output artifact path")
		format  = flag.String("format", "json", "export format: json or csv")
		network = flag.String("network", "mainnet", "network label for the export metadata")
	)
	flag.Parse()

	if *txHash == "" {
		fmt.Fprintln(os.Stderr, "missing -tx")
		flag.Usage()
		os.Exit(2)
	}

	client, err := service.Dial(*rpcURL)
	if err != nil {
		panic(err)
	}

	svc, err := service.NewService(client, nil, nil)
	if err != nil {
		panic(err)
	}

	comparison, err := svc.AnalyzeFromTransaction(context.Background(), common.HexToHash(*txHash))
	if err != nil {
		panic(err)
	}
	fmt.Printf("tx touched %d contracts with code\n", len(comparison.Contracts))

	out, err := os.Create(*outFile)
	if err != nil {
		panic(err)
	}
	defer out.Close()

	meta := export.Metadata{
		Network:      *network,
		ExportedAt:   time.Now().UTC(),
		AnalysisType: "transaction-contracts",
	}
	if err := export.WriteComparison(out, comparison, export.Format(*format), meta); err != nil {
		panic(err)
	}
	fmt.Printf("wrote %s\n", *outFile)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/data"
	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/export"
	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/service"
)

func main() {
	var (
		rpcURL  = flag.String("rpc", "http://localhost:8545", "JSON-RPC endpoint")
		inFile  = flag.String("in", "contracts.csv", "input CSV with address[,name] columns")
		outFile = flag.String("out", "comparison.json", "output artifact path")
		format  = flag.String("format", "json", "export format: json or csv")
		network = flag.String("network", "mainnet", "network label for the export metadata")
	)
	flag.Parse()

	refs, err := data.ReadContractsFromCSV(*inFile)
	if err != nil {
		panic(err)
	}
	fmt.Printf("len(contracts) = %d\n", len(refs))

	client, err := service.Dial(*rpcURL)
	if err != nil {
		panic(err)
	}

	svc, err := service.NewService(client, nil, nil)
	if err != nil {
		panic(err)
	}

	comparison, err := svc.AnalyzeMultipleContracts(context.Background(), refs)
	if err != nil {
		panic(err)
	}
	fmt.Printf("analyzed %d contracts, %d similarity pairs, %d relationships\n",
		len(comparison.Contracts), len(comparison.Similarities), len(comparison.Relationships))

	out, err := os.Create(*outFile)
	if err != nil {
		panic(err)
	}
	defer out.Close()

	meta := export.Metadata{
		Network:      *network,
		ExportedAt:   time.Now().UTC(),
		AnalysisType: "contract-comparison",
	}
	if err := export.WriteComparison(out, comparison, export.Format(*format), meta); err != nil {
		panic(err)
	}
	fmt.Printf("wrote %s\n", *outFile)
}

package data

import (
	"os"

	"github.com/gocarina/gocsv"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// ReadContractsFromCSV loads a contract list with "address" and optional
// "name" columns.
func ReadContractsFromCSV(csvFile string) ([]types.ContractRef, error) {
	f, err := os.Open(csvFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var refs []types.ContractRef
	if err := gocsv.UnmarshalFile(f, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadContractsFromCSV(t *testing.T) {
	content := "address,name\n" +
		"0x36e6309aa7a923fb111ae50b56bfb3cfb2256f89,TokenA\n" +
		"0x9b0e1c344141fb361b842d397df07174e1cdb988,\n"
	path := filepath.Join(t.TempDir(), "contracts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	refs, err := ReadContractsFromCSV(path)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, common.HexToAddress("0x36e6309aa7a923fb111ae50b56bfb3cfb2256f89"), refs[0].Address)
	assert.Equal(t, "TokenA", refs[0].Name)
	assert.Empty(t, refs[1].Name)
}

func TestReadContractsFromCSV_MissingFile(t *testing.T) {
	_, err := ReadContractsFromCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

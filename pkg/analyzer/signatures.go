package analyzer

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// Canonical signatures per category. Selectors are derived with Keccak256 at
// init so the tables stay readable and cannot drift from the hashes.
var (
	erc20Signatures = []string{
		"totalSupply()",
		"balanceOf(address)",
		"transfer(address,uint256)",
		"allowance(address,address)",
		"approve(address,uint256)",
		"transferFrom(address,address,uint256)",
		"name()",
		"symbol()",
		"decimals()",
		"increaseAllowance(address,uint256)",
		"decreaseAllowance(address,uint256)",
	}
	// The first six are the mandatory ERC20 interface, used for compliance.
	erc20RequiredCount = 6

	erc721Signatures = []string{
		"balanceOf(address)",
		"ownerOf(uint256)",
		"safeTransferFrom(address,address,uint256)",
		"safeTransferFrom(address,address,uint256,bytes)",
		"transferFrom(address,address,uint256)",
		"approve(address,uint256)",
		"setApprovalForAll(address,bool)",
		"getApproved(uint256)",
		"isApprovedForAll(address,address)",
		"tokenURI(uint256)",
		"tokenByIndex(uint256)",
		"tokenOfOwnerByIndex(address,uint256)",
	}
	erc721RequiredCount = 9

	// upgradeTo(address) was listed twice in the upstream table; the registry
	// keys on the selector so the duplicate collapses to one entry.
	proxySignatures = []string{
		"implementation()",
		"upgradeTo(address)",
		"upgradeToAndCall(address,bytes)",
		"admin()",
		"changeAdmin(address)",
		"proxiableUUID()",
	}

	securitySignatures = []string{
		"owner()",
		"transferOwnership(address)",
		"renounceOwnership()",
		"pause()",
		"unpause()",
		"paused()",
		"hasRole(bytes32,address)",
		"grantRole(bytes32,address)",
		"revokeRole(bytes32,address)",
		"renounceRole(bytes32,address)",
	}
)

// Classification thresholds: hard cutoffs, no weighting.
const (
	erc20StandardThreshold  = 5
	erc721StandardThreshold = 4
)

type sigEntry struct {
	Name     string
	Category types.Category
}

// standardSpec drives threshold tagging and compliance reporting for one
// token standard.
type standardSpec struct {
	Standard  string
	Sigs      []string
	Required  int // first Required entries of Sigs are the mandatory interface
	Threshold int
}

var (
	registry  = make(map[[4]byte]sigEntry)
	standards []standardSpec

	selImplementation [4]byte
	selUpgradeTo      [4]byte
)

func init() {
	tables := []struct {
		sigs     []string
		category types.Category
	}{
		{erc20Signatures, types.CategoryERC20},
		{erc721Signatures, types.CategoryERC721},
		{proxySignatures, types.CategoryProxy},
		{securitySignatures, types.CategorySecurity},
	}
	for _, t := range tables {
		for _, sig := range t.sigs {
			sel := selectorOf(sig)
			if _, ok := registry[sel]; ok {
				// Selector collision across tables (e.g. balanceOf(address)
				// in ERC20 and ERC721): the earlier category wins.
				continue
			}
			registry[sel] = sigEntry{Name: sig, Category: t.category}
		}
	}

	standards = []standardSpec{
		{Standard: "ERC20", Sigs: erc20Signatures, Required: erc20RequiredCount, Threshold: erc20StandardThreshold},
		{Standard: "ERC721", Sigs: erc721Signatures, Required: erc721RequiredCount, Threshold: erc721StandardThreshold},
	}

	selImplementation = selectorOf("implementation()")
	selUpgradeTo = selectorOf("upgradeTo(address)")
}

func selectorOf(sig string) (sel [4]byte) {
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}

func selectorHex(sel [4]byte) string {
	return hexutil.Encode(sel[:])
}

// lookupSelector resolves a selector against the merged registry.
func lookupSelector(sel [4]byte) (types.DetectedFunction, bool) {
	e, ok := registry[sel]
	if !ok {
		return types.DetectedFunction{}, false
	}
	return types.DetectedFunction{
		Signature: selectorHex(sel),
		Name:      e.Name,
		Category:  e.Category,
	}, true
}

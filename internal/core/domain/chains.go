package domain

// ChainID identifies a ledger the relayer talks to.
type ChainID string

const (
	// Chain IDs
	ChainIDEthereum ChainID = "1"
	ChainIDPolygon  ChainID = "137"
)

// ChainName is the human-readable internal code for a chain.
type ChainName string

const (
	ChainNameEthereum ChainName = "ETHEREUM_MAINNET"
	ChainNamePolygon  ChainName = "POLYGON_MAINNET"
)

// ChainIDToName maps ChainID to its internal code.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDEthereum: ChainNameEthereum,
	ChainIDPolygon:  ChainNamePolygon,
}

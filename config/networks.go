package config

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Asset describes one tradable or collateral token on one network.
// A zero Address means the token is not known yet; dev networks deploy a mock for it.
type Asset struct {
	Symbol   string
	Name     string
	Address  common.Address
	Decimals uint8

	// Reference price in whole USD, used to seed mock feeds.
	Price         uint64
	PriceDecimals uint8
	PriceFeed     common.Address

	IsStable       bool
	IsStrictStable bool
	IsShortable    bool

	TokenWeight        uint64
	MinProfitBps       uint64
	MaxUSDGAmount      uint64 // whole USDG
	BufferAmount       uint64 // whole tokens
	MaxGlobalShortSize uint64 // whole USD
	SpreadBasisPoints  uint64
}

// Units scales a whole-token amount by the asset's decimals.
func (a Asset) Units(amount uint64) *big.Int {
	return Expand(amount, a.Decimals)
}

// FeedAnswer is the mock feed answer for the reference price.
func (a Asset) FeedAnswer() *big.Int {
	return Expand(a.Price, a.PriceDecimals)
}

// Network is one entry of the chain configuration table.
type Network struct {
	Name    string
	ChainID uint64
	RPC     string

	// HasOracle reports whether real price feeds exist; without it mock feeds are deployed.
	HasOracle bool
	// Dev networks accept the well-known development key.
	Dev bool
	// Filecoin networks expose the EVM through FEVM and use delegated addresses.
	Filecoin bool

	// Native is the symbol of the wrapped native asset.
	Native string
	Assets []Asset
}

// Asset returns the descriptor for symbol.
func (n *Network) Asset(symbol string) (Asset, bool) {
	for _, asset := range n.Assets {
		if asset.Symbol == symbol {
			return asset, true
		}
	}
	return Asset{}, false
}

// NativeAsset returns the wrapped native asset descriptor.
func (n *Network) NativeAsset() (Asset, bool) {
	return n.Asset(n.Native)
}

// Expand returns amount * 10^decimals.
func Expand(amount uint64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, new(big.Int).SetUint64(amount))
}

// USD returns amount expressed with the protocol's 30-decimal USD precision.
func USD(amount uint64) *big.Int {
	return Expand(amount, 30)
}

var networks = map[string]*Network{
	"localhost": {
		Name:    "localhost",
		ChainID: 31337,
		RPC:     "http://127.0.0.1:8545",
		Dev:     true,
		Native:  "eth",
		Assets:  devAssets(),
	},
	"filecoin-devnet": {
		Name:     "filecoin-devnet",
		ChainID:  31415926,
		RPC:      "http://127.0.0.1:1234/rpc/v1",
		Dev:      true,
		Filecoin: true,
		Native:   "eth",
		Assets:   devAssets(),
	},
	"calibnet": {
		Name:     "calibnet",
		ChainID:  314159,
		RPC:      "https://api.calibration.node.glif.io/rpc/v1",
		Filecoin: true,
		Native:   "eth",
		Assets:   devAssets(),
	},
	"arbitrum": {
		Name:      "arbitrum",
		ChainID:   42161,
		RPC:       "https://arb1.arbitrum.io/rpc",
		HasOracle: true,
		Native:    "eth",
		Assets: []Asset{
			{
				Symbol:             "btc",
				Name:               "Wrapped Bitcoin",
				Address:            common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f"),
				Decimals:           8,
				Price:              60000,
				PriceDecimals:      8,
				PriceFeed:          common.HexToAddress("0x6ce185860a4963106506C203335A2910413708e9"),
				IsShortable:        true,
				TokenWeight:        19000,
				MaxUSDGAmount:      120_000_000,
				BufferAmount:       2_500,
				MaxGlobalShortSize: 30_000_000,
			},
			{
				Symbol:             "eth",
				Name:               "Wrapped Ether",
				Address:            common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
				Decimals:           18,
				Price:              3000,
				PriceDecimals:      8,
				PriceFeed:          common.HexToAddress("0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612"),
				IsShortable:        true,
				TokenWeight:        28000,
				MaxUSDGAmount:      200_000_000,
				BufferAmount:       50_000,
				MaxGlobalShortSize: 35_000_000,
			},
			{
				Symbol:         "usdc",
				Name:           "USD Coin",
				Address:        common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8"),
				Decimals:       6,
				Price:          1,
				PriceDecimals:  8,
				PriceFeed:      common.HexToAddress("0x50834F3163758fcC1Df9973b6e91f0F0F0434aD3"),
				IsStable:       true,
				IsStrictStable: true,
				TokenWeight:    39000,
				MaxUSDGAmount:  400_000_000,
				BufferAmount:   80_000_000,
			},
			{
				Symbol:         "usdt",
				Name:           "Tether USD",
				Address:        common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
				Decimals:       6,
				Price:          1,
				PriceDecimals:  8,
				PriceFeed:      common.HexToAddress("0x3f3f5dF88dC9F13eac63DF89EC16ef6e7E25DdE7"),
				IsStable:       true,
				IsStrictStable: true,
				TokenWeight:    2000,
				MaxUSDGAmount:  20_000_000,
				BufferAmount:   1_000_000,
			},
			{
				Symbol:             "link",
				Name:               "Chainlink",
				Address:            common.HexToAddress("0xf97f4df75117a78c1A5a0DBb814Af92458539FB4"),
				Decimals:           18,
				Price:              15,
				PriceDecimals:      8,
				PriceFeed:          common.HexToAddress("0x86E53CF1B870786351Da77A57575e79CB55812CB"),
				IsShortable:        true,
				TokenWeight:        1000,
				MaxUSDGAmount:      10_000_000,
				BufferAmount:       200_000,
				MaxGlobalShortSize: 500_000,
			},
			{
				Symbol:             "uni",
				Name:               "Uniswap",
				Address:            common.HexToAddress("0xFa7F8980b0f1E64A2062791cc3b0871572f1F7f0"),
				Decimals:           18,
				Price:              7,
				PriceDecimals:      8,
				PriceFeed:          common.HexToAddress("0x9C917083fDb403ab5ADbEC26Ee294f6EcAda2720"),
				IsShortable:        true,
				TokenWeight:        1000,
				MaxUSDGAmount:      5_000_000,
				BufferAmount:       100_000,
				MaxGlobalShortSize: 250_000,
			},
		},
	},
}

func devAssets() []Asset {
	return []Asset{
		{
			Symbol:             "btc",
			Name:               "Bitcoin",
			Decimals:           8,
			Price:              60000,
			PriceDecimals:      8,
			IsShortable:        true,
			TokenWeight:        20000,
			MaxUSDGAmount:      50_000_000,
			BufferAmount:       10,
			MaxGlobalShortSize: 5_000_000,
		},
		{
			Symbol:             "eth",
			Name:               "Ether",
			Decimals:           18,
			Price:              3000,
			PriceDecimals:      8,
			IsShortable:        true,
			TokenWeight:        30000,
			MaxUSDGAmount:      50_000_000,
			BufferAmount:       100,
			MaxGlobalShortSize: 5_000_000,
		},
		{
			Symbol:         "usdc",
			Name:           "USD Coin",
			Decimals:       6,
			Price:          1,
			PriceDecimals:  8,
			IsStable:       true,
			IsStrictStable: true,
			TokenWeight:    50000,
			MaxUSDGAmount:  100_000_000,
			BufferAmount:   100_000,
		},
	}
}

// LookupNetwork returns the chain table entry for name.
func LookupNetwork(name string) (*Network, bool) {
	network, ok := networks[name]
	return network, ok
}

// NetworkNames lists the configured networks in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

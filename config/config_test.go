package config

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEPLOY_NETWORK", "")
	t.Setenv("CALL_GAS_TOLERANCE", "0.02")
	t.Setenv("DEFAULT_GAS_LIMIT", "not-a-number")

	cfg := Load()
	require.Equal(t, "localhost", cfg.Network)
	require.Equal(t, 0.15, cfg.CreationGasTolerance)
	require.Equal(t, 0.02, cfg.CallGasTolerance)
	require.Zero(t, cfg.DefaultGasLimit)
}

func TestValidateDevNetworkDefaults(t *testing.T) {
	cfg := &Config{Network: "localhost"}

	network, err := cfg.Validate()
	require.NoError(t, err)
	require.Equal(t, uint64(31337), network.ChainID)
	require.Equal(t, "http://127.0.0.1:8545", cfg.RPC)
	require.Equal(t, DevPrivateKey, cfg.PrivateKey)

	deployer, err := cfg.Deployer()
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), deployer)

	keeper, err := cfg.KeeperAddress()
	require.NoError(t, err)
	require.Equal(t, deployer, keeper)
}

func TestValidateErrors(t *testing.T) {
	_, err := (&Config{Network: "mainnet-of-nowhere"}).Validate()
	require.ErrorIs(t, err, ErrUnknownNetwork)
	require.Contains(t, err.Error(), "mainnet-of-nowhere")

	_, err = (&Config{Network: "arbitrum"}).Validate()
	require.ErrorIs(t, err, ErrMissingVariable)
	require.Contains(t, err.Error(), "DEPLOYER_PRIVATE_KEY")

	_, err = (&Config{}).Validate()
	require.ErrorIs(t, err, ErrMissingVariable)

	_, err = (&Config{Network: "localhost", Keeper: "0x1234"}).Validate()
	require.ErrorContains(t, err, "KEEPER_ADDRESS")

	_, err = (&Config{Network: "localhost", PrivateKey: "0xdead"}).Validate()
	require.ErrorContains(t, err, "invalid private key length")
}

func TestChainTable(t *testing.T) {
	for _, name := range NetworkNames() {
		network, ok := LookupNetwork(name)
		require.True(t, ok)
		require.Equal(t, name, network.Name)

		_, ok = network.NativeAsset()
		require.True(t, ok, "network %s has no native asset", name)

		for _, asset := range network.Assets {
			require.NotZero(t, asset.PriceDecimals, "%s/%s", name, asset.Symbol)
			if network.HasOracle {
				require.NotEqual(t, common.Address{}, asset.Address, "%s/%s", name, asset.Symbol)
				require.NotEqual(t, common.Address{}, asset.PriceFeed, "%s/%s", name, asset.Symbol)
			}
			if asset.IsStrictStable {
				require.True(t, asset.IsStable, "%s/%s", name, asset.Symbol)
			}
		}
	}
}

func TestExpand(t *testing.T) {
	btc := Asset{Decimals: 8, Price: 60000, PriceDecimals: 8}
	require.Equal(t, "200000000", btc.Units(2).String())
	require.Equal(t, "6000000000000", btc.FeedAnswer().String())
	require.Equal(t, "2"+strings.Repeat("0", 30), USD(2).String())
}

func TestConvertArguments(t *testing.T) {
	args, err := ConvertArguments(
		[]string{"0x00000000000000000000000000000000000000aa", "0x10", "true", "hello", "7", "0x00000000000000000000000000000000000000aa|0x00000000000000000000000000000000000000bb"},
		[]string{"address", "uint256", "bool", "string", "uint8", "address[]"},
	)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xaa"), args[0])
	require.Equal(t, 0, big.NewInt(16).Cmp(args[1].(*big.Int)))
	require.Equal(t, true, args[2])
	require.Equal(t, "hello", args[3])
	require.Equal(t, uint8(7), args[4])
	require.Len(t, args[5], 2)

	_, err = ConvertArguments([]string{"1"}, nil)
	require.ErrorContains(t, err, "must match")

	_, err = ConvertArgument("-1", "uint256")
	require.Error(t, err)

	_, err = ConvertArgument("0xzz", "address")
	require.Error(t, err)

	_, err = ConvertArgument("x", "tuple")
	require.ErrorContains(t, err, "unsupported type")
}

func TestSplitList(t *testing.T) {
	require.Nil(t, SplitList(""))
	require.Equal(t, []string{"a", "b"}, SplitList(" a , b"))
}

func TestDelegatedAddress(t *testing.T) {
	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	testnet, err := DelegatedAddress(addr, true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(testnet, "t410f"), testnet)

	mainnet, err := DelegatedAddress(addr, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mainnet, "f410f"), mainnet)
	require.Equal(t, testnet[1:], mainnet[1:])
}

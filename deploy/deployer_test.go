package deploy

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/parthshah1/perpwizard/artifacts"
	"github.com/parthshah1/perpwizard/registry"
)

const tokenABI = `[
  {"type":"constructor","inputs":[{"name":"name","type":"string"},{"name":"decimals","type":"uint8"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"initialize","inputs":[{"name":"vault","type":"address"},{"name":"limit","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const libraryArtifact = `{
  "contractName": "Reader",
  "sourceName": "contracts/peripherals/Reader.sol",
  "abi": [],
  "bytecode": "0x60__$0123456789abcdef0123456789abcdef01$__00",
  "linkReferences": {"contracts/libraries/Math.sol": {"Math": [{"start": 1, "length": 20}]}}
}`

type fixture struct {
	chain    *fakeChain
	store    *registry.MemoryStore
	deployer *Deployer
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	token, err := artifacts.New("Token", tokenABI, "0x6000")
	require.NoError(t, err)
	reader, err := artifacts.Parse([]byte(libraryArtifact))
	require.NoError(t, err)

	f := &fixture{
		chain:   newFakeChain(),
		store:   registry.NewMemoryStore(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.deployer = New("localhost", f.chain, f.store,
		artifacts.Memory{"Token": token, "Reader": reader},
		WithLogger(log.NewLogger(log.DiscardHandler())),
		WithMetrics(f.metrics),
	)
	return f
}

func (f *fixture) count(kind, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Actions.WithLabelValues(kind, outcome))
}

func TestDeployIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	name := registry.N("Token", "btc")

	first, err := f.deployer.Deploy(ctx, name, []any{"Bitcoin", uint8(8)}, nil)
	require.NoError(t, err)
	require.True(t, first.Newly)
	require.Equal(t, []string{"Bitcoin", "8"}, first.Args)
	require.Equal(t, f.chain.From(), first.Deployer)
	require.Equal(t, "Token", first.ABIRef)
	require.Equal(t, 1, f.chain.sendCount())

	second, err := f.deployer.Deploy(ctx, name, []any{"Bitcoin", uint8(8)}, nil)
	require.NoError(t, err)
	require.False(t, second.Newly)
	require.Equal(t, first.Address, second.Address)
	require.Equal(t, 1, f.chain.sendCount())

	require.Equal(t, 1.0, f.count(kindDeploy, outcomeExecuted))
	require.Equal(t, 1.0, f.count(kindDeploy, outcomeSkipped))
	require.Equal(t, 21000.0, testutil.ToFloat64(f.metrics.GasUsed.WithLabelValues(kindDeploy)))

	// a second label of the same artifact is a separate instance
	eth, err := f.deployer.Deploy(ctx, registry.N("Token", "eth"), []any{"Ether", uint8(18)}, nil)
	require.NoError(t, err)
	require.NotEqual(t, first.Address, eth.Address)
	require.Equal(t, 2, f.chain.sendCount())
}

func TestDeployPacksConstructor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.deployer.Deploy(ctx, registry.N("Token"), []any{"USD Coin", uint8(6)}, nil)
	require.NoError(t, err)

	code := f.chain.contracts[rec.Address].code
	require.Equal(t, []byte{0x60, 0x00}, code[:2])
	// string offset + uint8 head, then length + padded data
	require.Len(t, code, 2+32*4)

	_, err = f.deployer.Deploy(ctx, registry.N("Token", "bad"), []any{"USD Coin"}, nil)
	require.ErrorContains(t, err, "Token[bad]")
	require.Equal(t, 1, f.chain.sendCount())
}

func TestDeployLinksLibraries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.deployer.Deploy(ctx, registry.N("Reader"), nil, nil)
	require.ErrorIs(t, err, artifacts.ErrUnlinkedLibrary)
	require.Zero(t, f.chain.sendCount())

	math := common.HexToAddress("0x3a7")
	rec, err := f.deployer.Deploy(ctx, registry.N("Reader"), nil, map[string]common.Address{"Math": math})
	require.NoError(t, err)
	require.Equal(t, map[string]common.Address{"Math": math}, rec.Libraries)
	require.Equal(t, "contracts/peripherals/Reader.sol:Reader", rec.ABIRef)
	require.Equal(t, math.Bytes(), f.chain.contracts[rec.Address].code[1:21])
}

func TestDeployFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.chain.failDeploy = true
	_, err := f.deployer.Deploy(ctx, registry.N("Token"), []any{"X", uint8(1)}, nil)
	require.ErrorIs(t, err, errFakeRevert)
	require.ErrorContains(t, err, "Token: deploy")

	_, err = f.store.Get(ctx, "localhost", registry.N("Token"))
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = f.deployer.Deploy(ctx, registry.N("Missing"), nil, nil)
	require.ErrorIs(t, err, artifacts.ErrNotFound)

	_, err = f.deployer.Deploy(ctx, registry.Name{Artifact: "Token[x]"}, nil, nil)
	require.Error(t, err)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	name := registry.N("Token", "tracker")

	_, err := f.deployer.Deploy(ctx, name, []any{"Tracker", uint8(18)}, nil)
	require.NoError(t, err)

	vault := common.HexToAddress("0x7a")
	args := []any{vault, big.NewInt(100)}

	require.NoError(t, f.deployer.Initialize(ctx, name, args, SeedDistribution()))
	require.Equal(t, 3, f.chain.sendCount())

	require.NoError(t, f.deployer.Initialize(ctx, name, args, SeedDistribution()))
	require.Equal(t, 3, f.chain.sendCount())

	require.Equal(t, 1.0, f.count(kindInitialize, outcomeExecuted))
	require.Equal(t, 1.0, f.count(kindInitialize, outcomeSkipped))
	require.Equal(t, 1.0, f.count(kindSetter, outcomeExecuted))
	require.Equal(t, 1.0, f.count(kindSetter, outcomeSkipped))
}

func TestInitializeFollowUpsConvergeAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	name := registry.N("Token", "distributor")

	_, err := f.deployer.Deploy(ctx, name, []any{"Distributor", uint8(18)}, nil)
	require.NoError(t, err)

	args := []any{common.HexToAddress("0x7a"), big.NewInt(1)}
	f.chain.failNext(funcUpdateLastDistributionTime, 1)

	err = f.deployer.Initialize(ctx, name, args, SeedDistribution())
	require.ErrorIs(t, err, errFakeRevert)
	require.ErrorContains(t, err, "Token[distributor].updateLastDistributionTime()")

	// the contract is initialized, the follow-up still runs on the next attempt
	require.NoError(t, f.deployer.Initialize(ctx, name, args, SeedDistribution()))
	rec, err := f.store.Get(ctx, "localhost", name)
	require.NoError(t, err)
	require.True(t, f.chain.contracts[rec.Address].initialized)
	require.Equal(t, 0, f.chain.contracts[rec.Address].lastDist.Cmp(big.NewInt(1700000000)))
}

func TestInitializeRequiresRecord(t *testing.T) {
	f := newFixture(t)
	err := f.deployer.Initialize(context.Background(), registry.N("Token", "ghost"), nil)
	require.ErrorIs(t, err, ErrMissingDependency)
	require.Zero(t, f.chain.sendCount())
}

func TestEnsureConverges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	name := registry.N("Token")

	_, err := f.deployer.Deploy(ctx, name, []any{"T", uint8(18)}, nil)
	require.NoError(t, err)

	router := common.HexToAddress("0x40")
	timelock := common.HexToAddress("0x71")
	facts := []Fact{
		SetHandler(router, true),
		SetHandler(common.HexToAddress("0x41"), false),
		SetFundingRate(big.NewInt(3600), big.NewInt(100), big.NewInt(100)),
		SetLatestAnswer(big.NewInt(-5)),
		SetGov(timelock),
	}

	require.NoError(t, f.deployer.Ensure(ctx, name, facts...))
	// create + four mismatching facts; the revoked handler already holds
	require.Equal(t, 5, f.chain.sendCount())

	for i := 0; i < 3; i++ {
		require.NoError(t, f.deployer.Ensure(ctx, name, facts...))
	}
	require.Equal(t, 5, f.chain.sendCount())

	rec, err := f.store.Get(ctx, "localhost", name)
	require.NoError(t, err)
	contract := f.chain.contracts[rec.Address]
	require.True(t, contract.handlers[router])
	require.Equal(t, timelock, contract.gov)
	require.Equal(t, 0, contract.answer.Cmp(big.NewInt(-5)))

	// a partially matching composite is rewritten as a whole
	contract.funding[1] = big.NewInt(7)
	require.NoError(t, f.deployer.Ensure(ctx, name, facts...))
	require.Equal(t, 6, f.chain.sendCount())
	require.Equal(t, 0, contract.funding[1].Cmp(big.NewInt(100)))
}

func TestEnsureSurfacesRevert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	name := registry.N("Token")

	_, err := f.deployer.Deploy(ctx, name, []any{"T", uint8(18)}, nil)
	require.NoError(t, err)

	f.chain.failNext(funcSetGov, 1)
	err = f.deployer.Ensure(ctx, name, SetGov(common.HexToAddress("0x71")))
	require.ErrorIs(t, err, errFakeRevert)
	require.ErrorContains(t, err, "Token.setGov(0x0000000000000000000000000000000000000071)")

	// unsupported getter is a query failure, nothing is sent
	before := f.chain.sendCount()
	err = f.deployer.Ensure(ctx, name, SetMinter(common.HexToAddress("0x1"), true))
	require.ErrorContains(t, err, "isMinter")
	require.Equal(t, before, f.chain.sendCount())

	err = f.deployer.Ensure(ctx, registry.N("Vault"), SetGov(common.Address{}))
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	btc, err := f.deployer.Deploy(ctx, registry.N("Token", "btc"), []any{"BTC", uint8(8)}, nil)
	require.NoError(t, err)
	usd, err := f.deployer.Deploy(ctx, registry.N("Token"), []any{"USD", uint8(6)}, nil)
	require.NoError(t, err)

	resolved, err := f.deployer.Resolve(ctx, "Token[btc]", "Token", "Vault:setup")
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	require.Equal(t, btc.Address, resolved.Addr(registry.N("Token", "btc")))
	require.Equal(t, usd.Address, resolved.Addr(registry.N("Token")))
	require.Equal(t, common.Address{}, resolved.Addr(registry.N("Vault")))

	_, ok := resolved.Lookup(registry.N("Vault"))
	require.False(t, ok)

	_, err = f.deployer.Resolve(ctx, "Token[btc]", "Vault")
	require.ErrorIs(t, err, ErrMissingDependency)
	require.ErrorContains(t, err, "Vault")

	_, err = f.deployer.Resolve(ctx, "Token[")
	require.ErrorContains(t, err, "invalid dependency")

	require.True(t, IsVirtual("Vault:setup"))
	require.False(t, IsVirtual("Vault"))
}

package deploy

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestFactActions(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000011")
	one := big.NewInt(1)

	tests := []struct {
		fact Fact
		want string
	}{
		{SetHandler(addr, true), "setHandler(0x0000000000000000000000000000000000000011,true)"},
		{SetMinter(addr, false), "setMinter(0x0000000000000000000000000000000000000011,false)"},
		{SetKeeper(addr, true), "setKeeper(0x0000000000000000000000000000000000000011,true)"},
		{SetLiquidator(addr, true), "setLiquidator(0x0000000000000000000000000000000000000011,true)"},
		{SetManager(addr, true), "setManager(0x0000000000000000000000000000000000000011,true)"},
		{SetUpdater(addr, true), "setUpdater(0x0000000000000000000000000000000000000011,true)"},
		{SetPositionKeeper(addr, true), "setPositionKeeper(0x0000000000000000000000000000000000000011,true)"},
		{SetOrderKeeper(addr, true), "setOrderKeeper(0x0000000000000000000000000000000000000011,true)"},
		{SetContractHandler(addr, true), "setContractHandler(0x0000000000000000000000000000000000000011,true)"},
		{AddPlugin(addr), "addPlugin(0x0000000000000000000000000000000000000011)"},
		{AddVault(addr), "addVault(0x0000000000000000000000000000000000000011)"},
		{SetGov(addr), "setGov(0x0000000000000000000000000000000000000011)"},
		{SetAdmin(addr), "setAdmin(0x0000000000000000000000000000000000000011)"},
		{SetVaultUtils(addr), "setVaultUtils(0x0000000000000000000000000000000000000011)"},
		{SetErrorController(addr), "setErrorController(0x0000000000000000000000000000000000000011)"},
		{SetPriceFeed(addr), "setPriceFeed(0x0000000000000000000000000000000000000011)"},
		{SetReferralStorage(addr), "setReferralStorage(0x0000000000000000000000000000000000000011)"},
		{SetShortsTracker(addr), "setShortsTracker(0x0000000000000000000000000000000000000011)"},
		{SetInPrivateLiquidationMode(true), "setInPrivateLiquidationMode(true)"},
		{SetInPrivateTransferMode(true), "setInPrivateTransferMode(true)"},
		{SetInPrivateStakingMode(true), "setInPrivateStakingMode(true)"},
		{SetInPrivateClaimingMode(false), "setInPrivateClaimingMode(false)"},
		{SetInPrivateMode(true), "setInPrivateMode(true)"},
		{SetIsLeverageEnabled(false), "setIsLeverageEnabled(false)"},
		{SetIsSwapEnabled(true), "setIsSwapEnabled(true)"},
		{SetIsAmmEnabled(false), "setIsAmmEnabled(false)"},
		{SetTokensPerInterval(one), "setTokensPerInterval(1)"},
		{SetBonusMultiplier(one), "setBonusMultiplier(1)"},
		{SetMinExecutionFee(one), "setMinExecutionFee(1)"},
		{SetPriceSampleSpace(one), "setPriceSampleSpace(1)"},
		{SetMaxStrictPriceDeviation(one), "setMaxStrictPriceDeviation(1)"},
		{SetLatestAnswer(one), "setLatestAnswer(1)"},
		{SetCooldownDuration(one), "setCooldownDuration(1)"},
		{SetMaxLeverage(one), "setMaxLeverage(1)"},
		{SetDepositFee(one), "setDepositFee(1)"},
		{SetBufferAmount(addr, one), "setBufferAmount(0x0000000000000000000000000000000000000011,1)"},
		{SetSpreadBasisPoints(addr, one), "setSpreadBasisPoints(0x0000000000000000000000000000000000000011,1)"},
		{SetMaxGlobalShortSize(addr, one), "setMaxGlobalShortSize(0x0000000000000000000000000000000000000011,1)"},
		{SetPriceFeedTokenConfig(addr, addr, one, true), "setTokenConfig(0x0000000000000000000000000000000000000011,0x0000000000000000000000000000000000000011,1,true)"},
		{SetFundingRate(one, one, one), "setFundingRate(1,1,1)"},
		{SetDelayValues(one, one, one), "setDelayValues(1,1,1)"},
		{SeedDistribution(), "updateLastDistributionTime()"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.fact.Action())
			data, err := tt.fact.Calldata()
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(data), 4)
		})
	}
}

func TestCompositeStopsAtFirstMismatch(t *testing.T) {
	token := common.HexToAddress("0xb7c")
	fact := SetVaultTokenConfig(VaultTokenConfig{
		Token:         token,
		Decimals:      big.NewInt(8),
		Weight:        big.NewInt(10000),
		MinProfitBps:  big.NewInt(0),
		MaxUSDGAmount: big.NewInt(1000),
		IsShortable:   true,
	})

	var queried int
	call := func(_ context.Context, input []byte) ([]byte, error) {
		queried++
		// whitelistedTokens(token) -> false
		return funcWhitelistedTokens.EncodeReturns(false)
	}

	holds, err := fact.Holds(context.Background(), call)
	require.NoError(t, err)
	require.False(t, holds)
	require.Equal(t, 1, queried)

	data, err := fact.Calldata()
	require.NoError(t, err)
	require.Equal(t, funcSetVaultTokenConfig.Selector[:], data[:4])
	require.Len(t, data, 4+7*32)
}

func TestSeededFact(t *testing.T) {
	fact := SeedDistribution()

	zero := func(context.Context, []byte) ([]byte, error) {
		return funcLastDistributionTime.EncodeReturns(new(big.Int))
	}
	holds, err := fact.Holds(context.Background(), zero)
	require.NoError(t, err)
	require.False(t, holds)

	seeded := func(context.Context, []byte) ([]byte, error) {
		return funcLastDistributionTime.EncodeReturns(big.NewInt(42))
	}
	holds, err = fact.Holds(context.Background(), seeded)
	require.NoError(t, err)
	require.True(t, holds)
}

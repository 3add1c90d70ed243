package deploy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	funcIsInitialized = w3.MustNewFunc("isInitialized()", "bool")

	// address-keyed roles
	funcIsHandler          = w3.MustNewFunc("isHandler(address)", "bool")
	funcSetHandler         = w3.MustNewFunc("setHandler(address,bool)", "")
	funcIsMinter           = w3.MustNewFunc("isMinter(address)", "bool")
	funcSetMinter          = w3.MustNewFunc("setMinter(address,bool)", "")
	funcIsKeeper           = w3.MustNewFunc("isKeeper(address)", "bool")
	funcSetKeeper          = w3.MustNewFunc("setKeeper(address,bool)", "")
	funcIsLiquidator       = w3.MustNewFunc("isLiquidator(address)", "bool")
	funcSetLiquidator      = w3.MustNewFunc("setLiquidator(address,bool)", "")
	funcIsManager          = w3.MustNewFunc("isManager(address)", "bool")
	funcSetManager         = w3.MustNewFunc("setManager(address,bool)", "")
	funcIsUpdater          = w3.MustNewFunc("isUpdater(address)", "bool")
	funcSetUpdater         = w3.MustNewFunc("setUpdater(address,bool)", "")
	funcIsPositionKeeper   = w3.MustNewFunc("isPositionKeeper(address)", "bool")
	funcSetPositionKeeper  = w3.MustNewFunc("setPositionKeeper(address,bool)", "")
	funcIsOrderKeeper      = w3.MustNewFunc("isOrderKeeper(address)", "bool")
	funcSetOrderKeeper     = w3.MustNewFunc("setOrderKeeper(address,bool)", "")
	funcSetContractHandler = w3.MustNewFunc("setContractHandler(address,bool)", "")

	// membership lists
	funcPlugins   = w3.MustNewFunc("plugins(address)", "bool")
	funcAddPlugin = w3.MustNewFunc("addPlugin(address)", "")
	funcVaults    = w3.MustNewFunc("vaults(address)", "bool")
	funcAddVault  = w3.MustNewFunc("addVault(address)", "")

	// address pointers
	funcGov                = w3.MustNewFunc("gov()", "address")
	funcSetGov             = w3.MustNewFunc("setGov(address)", "")
	funcAdmin              = w3.MustNewFunc("admin()", "address")
	funcSetAdmin           = w3.MustNewFunc("setAdmin(address)", "")
	funcVaultUtils         = w3.MustNewFunc("vaultUtils()", "address")
	funcSetVaultUtils      = w3.MustNewFunc("setVaultUtils(address)", "")
	funcErrorController    = w3.MustNewFunc("errorController()", "address")
	funcSetErrorController = w3.MustNewFunc("setErrorController(address)", "")
	funcPriceFeed          = w3.MustNewFunc("priceFeed()", "address")
	funcSetPriceFeed       = w3.MustNewFunc("setPriceFeed(address)", "")
	funcReferralStorage    = w3.MustNewFunc("referralStorage()", "address")
	funcSetReferralStorage = w3.MustNewFunc("setReferralStorage(address)", "")
	funcShortsTracker      = w3.MustNewFunc("shortsTracker()", "address")
	funcSetShortsTracker   = w3.MustNewFunc("setShortsTracker(address)", "")

	// toggles
	funcInPrivateLiquidationMode    = w3.MustNewFunc("inPrivateLiquidationMode()", "bool")
	funcSetInPrivateLiquidationMode = w3.MustNewFunc("setInPrivateLiquidationMode(bool)", "")
	funcInPrivateTransferMode       = w3.MustNewFunc("inPrivateTransferMode()", "bool")
	funcSetInPrivateTransferMode    = w3.MustNewFunc("setInPrivateTransferMode(bool)", "")
	funcInPrivateStakingMode        = w3.MustNewFunc("inPrivateStakingMode()", "bool")
	funcSetInPrivateStakingMode     = w3.MustNewFunc("setInPrivateStakingMode(bool)", "")
	funcInPrivateClaimingMode       = w3.MustNewFunc("inPrivateClaimingMode()", "bool")
	funcSetInPrivateClaimingMode    = w3.MustNewFunc("setInPrivateClaimingMode(bool)", "")
	funcInPrivateMode               = w3.MustNewFunc("inPrivateMode()", "bool")
	funcSetInPrivateMode            = w3.MustNewFunc("setInPrivateMode(bool)", "")
	funcIsLeverageEnabled           = w3.MustNewFunc("isLeverageEnabled()", "bool")
	funcSetIsLeverageEnabled        = w3.MustNewFunc("setIsLeverageEnabled(bool)", "")
	funcIsSwapEnabled               = w3.MustNewFunc("isSwapEnabled()", "bool")
	funcSetIsSwapEnabled            = w3.MustNewFunc("setIsSwapEnabled(bool)", "")
	funcIsAmmEnabled                = w3.MustNewFunc("isAmmEnabled()", "bool")
	funcSetIsAmmEnabled             = w3.MustNewFunc("setIsAmmEnabled(bool)", "")

	// quantities
	funcTokensPerInterval          = w3.MustNewFunc("tokensPerInterval()", "uint256")
	funcSetTokensPerInterval       = w3.MustNewFunc("setTokensPerInterval(uint256)", "")
	funcBonusMultiplier            = w3.MustNewFunc("bonusMultiplierBasisPoints()", "uint256")
	funcSetBonusMultiplier         = w3.MustNewFunc("setBonusMultiplier(uint256)", "")
	funcMinExecutionFee            = w3.MustNewFunc("minExecutionFee()", "uint256")
	funcSetMinExecutionFee         = w3.MustNewFunc("setMinExecutionFee(uint256)", "")
	funcPriceSampleSpace           = w3.MustNewFunc("priceSampleSpace()", "uint256")
	funcSetPriceSampleSpace        = w3.MustNewFunc("setPriceSampleSpace(uint256)", "")
	funcMaxStrictPriceDeviation    = w3.MustNewFunc("maxStrictPriceDeviation()", "uint256")
	funcSetMaxStrictPriceDeviation = w3.MustNewFunc("setMaxStrictPriceDeviation(uint256)", "")
	funcLatestAnswer               = w3.MustNewFunc("latestAnswer()", "int256")
	funcSetLatestAnswer            = w3.MustNewFunc("setLatestAnswer(int256)", "")
	funcCooldownDuration           = w3.MustNewFunc("cooldownDuration()", "uint256")
	funcSetCooldownDuration        = w3.MustNewFunc("setCooldownDuration(uint256)", "")
	funcMaxLeverage                = w3.MustNewFunc("maxLeverage()", "uint256")
	funcSetMaxLeverage             = w3.MustNewFunc("setMaxLeverage(uint256)", "")
	funcDepositFee                 = w3.MustNewFunc("depositFee()", "uint256")
	funcSetDepositFee              = w3.MustNewFunc("setDepositFee(uint256)", "")

	// keyed quantities
	funcBufferAmounts         = w3.MustNewFunc("bufferAmounts(address)", "uint256")
	funcSetBufferAmount       = w3.MustNewFunc("setBufferAmount(address,uint256)", "")
	funcSpreadBasisPoints     = w3.MustNewFunc("spreadBasisPoints(address)", "uint256")
	funcSetSpreadBasisPoints  = w3.MustNewFunc("setSpreadBasisPoints(address,uint256)", "")
	funcMaxGlobalShortSizes   = w3.MustNewFunc("maxGlobalShortSizes(address)", "uint256")
	funcSetMaxGlobalShortSize = w3.MustNewFunc("setMaxGlobalShortSize(address,uint256)", "")

	// vault token configuration
	funcWhitelistedTokens    = w3.MustNewFunc("whitelistedTokens(address)", "bool")
	funcTokenDecimals        = w3.MustNewFunc("tokenDecimals(address)", "uint256")
	funcTokenWeights         = w3.MustNewFunc("tokenWeights(address)", "uint256")
	funcMinProfitBasisPoints = w3.MustNewFunc("minProfitBasisPoints(address)", "uint256")
	funcMaxUsdgAmounts       = w3.MustNewFunc("maxUsdgAmounts(address)", "uint256")
	funcStableTokens         = w3.MustNewFunc("stableTokens(address)", "bool")
	funcShortableTokens      = w3.MustNewFunc("shortableTokens(address)", "bool")
	funcSetVaultTokenConfig  = w3.MustNewFunc("setTokenConfig(address,uint256,uint256,uint256,uint256,bool,bool)", "")

	// price feed token configuration
	funcPriceFeeds              = w3.MustNewFunc("priceFeeds(address)", "address")
	funcPriceDecimals           = w3.MustNewFunc("priceDecimals(address)", "uint256")
	funcStrictStableTokens      = w3.MustNewFunc("strictStableTokens(address)", "bool")
	funcSetPriceFeedTokenConfig = w3.MustNewFunc("setTokenConfig(address,address,uint256,bool)", "")

	// vault fees and funding
	funcTaxBasisPoints           = w3.MustNewFunc("taxBasisPoints()", "uint256")
	funcStableTaxBasisPoints     = w3.MustNewFunc("stableTaxBasisPoints()", "uint256")
	funcMintBurnFeeBasisPoints   = w3.MustNewFunc("mintBurnFeeBasisPoints()", "uint256")
	funcSwapFeeBasisPoints       = w3.MustNewFunc("swapFeeBasisPoints()", "uint256")
	funcStableSwapFeeBasisPoints = w3.MustNewFunc("stableSwapFeeBasisPoints()", "uint256")
	funcMarginFeeBasisPoints     = w3.MustNewFunc("marginFeeBasisPoints()", "uint256")
	funcLiquidationFeeUsd        = w3.MustNewFunc("liquidationFeeUsd()", "uint256")
	funcMinProfitTime            = w3.MustNewFunc("minProfitTime()", "uint256")
	funcHasDynamicFees           = w3.MustNewFunc("hasDynamicFees()", "bool")
	funcSetFees                  = w3.MustNewFunc("setFees(uint256,uint256,uint256,uint256,uint256,uint256,uint256,uint256,bool)", "")
	funcFundingInterval          = w3.MustNewFunc("fundingInterval()", "uint256")
	funcFundingRateFactor        = w3.MustNewFunc("fundingRateFactor()", "uint256")
	funcStableFundingRateFactor  = w3.MustNewFunc("stableFundingRateFactor()", "uint256")
	funcSetFundingRate           = w3.MustNewFunc("setFundingRate(uint256,uint256,uint256)", "")

	// position router delays
	funcMinBlockDelayKeeper = w3.MustNewFunc("minBlockDelayKeeper()", "uint256")
	funcMinTimeDelayPublic  = w3.MustNewFunc("minTimeDelayPublic()", "uint256")
	funcMaxTimeDelay        = w3.MustNewFunc("maxTimeDelay()", "uint256")
	funcSetDelayValues      = w3.MustNewFunc("setDelayValues(uint256,uint256,uint256)", "")

	// reward distribution
	funcLastDistributionTime       = w3.MustNewFunc("lastDistributionTime()", "uint256")
	funcUpdateLastDistributionTime = w3.MustNewFunc("updateLastDistributionTime()", "")
)

func flag(get, set *w3.Func, target common.Address, want bool) Fact {
	return State(get, []any{target}, want, set, target, want)
}

func pointer(get, set *w3.Func, target common.Address) Fact {
	return State(get, nil, target, set, target)
}

func toggle(get, set *w3.Func, want bool) Fact {
	return State(get, nil, want, set, want)
}

func quantity(get, set *w3.Func, want *big.Int) Fact {
	return State(get, nil, want, set, want)
}

func keyed(get, set *w3.Func, key common.Address, want *big.Int) Fact {
	return State(get, []any{key}, want, set, key, want)
}

// SetHandler grants or revokes the handler role of target.
func SetHandler(target common.Address, want bool) Fact {
	return flag(funcIsHandler, funcSetHandler, target, want)
}

// SetMinter grants or revokes the minter role of target.
func SetMinter(target common.Address, want bool) Fact {
	return flag(funcIsMinter, funcSetMinter, target, want)
}

// SetKeeper grants or revokes the keeper role of target.
func SetKeeper(target common.Address, want bool) Fact {
	return flag(funcIsKeeper, funcSetKeeper, target, want)
}

// SetLiquidator grants or revokes the liquidator role of target.
func SetLiquidator(target common.Address, want bool) Fact {
	return flag(funcIsLiquidator, funcSetLiquidator, target, want)
}

// SetManager grants or revokes the manager role of target.
func SetManager(target common.Address, want bool) Fact {
	return flag(funcIsManager, funcSetManager, target, want)
}

// SetUpdater grants or revokes the price updater role of target.
func SetUpdater(target common.Address, want bool) Fact {
	return flag(funcIsUpdater, funcSetUpdater, target, want)
}

// SetPositionKeeper grants or revokes the position keeper role of target.
func SetPositionKeeper(target common.Address, want bool) Fact {
	return flag(funcIsPositionKeeper, funcSetPositionKeeper, target, want)
}

// SetOrderKeeper grants or revokes the order keeper role of target.
func SetOrderKeeper(target common.Address, want bool) Fact {
	return flag(funcIsOrderKeeper, funcSetOrderKeeper, target, want)
}

// SetContractHandler grants or revokes the handler role a timelock keeps in
// its isHandler mapping.
func SetContractHandler(target common.Address, want bool) Fact {
	return flag(funcIsHandler, funcSetContractHandler, target, want)
}

// AddPlugin registers target as a router plugin.
func AddPlugin(target common.Address) Fact {
	return State(funcPlugins, []any{target}, true, funcAddPlugin, target)
}

// AddVault registers target as a vault allowed to mint USDG.
func AddVault(target common.Address) Fact {
	return State(funcVaults, []any{target}, true, funcAddVault, target)
}

// SetGov moves governance to target.
func SetGov(target common.Address) Fact {
	return pointer(funcGov, funcSetGov, target)
}

// SetAdmin moves the admin role to target.
func SetAdmin(target common.Address) Fact {
	return pointer(funcAdmin, funcSetAdmin, target)
}

func SetVaultUtils(target common.Address) Fact {
	return pointer(funcVaultUtils, funcSetVaultUtils, target)
}

func SetErrorController(target common.Address) Fact {
	return pointer(funcErrorController, funcSetErrorController, target)
}

func SetPriceFeed(target common.Address) Fact {
	return pointer(funcPriceFeed, funcSetPriceFeed, target)
}

func SetReferralStorage(target common.Address) Fact {
	return pointer(funcReferralStorage, funcSetReferralStorage, target)
}

func SetShortsTracker(target common.Address) Fact {
	return pointer(funcShortsTracker, funcSetShortsTracker, target)
}

func SetInPrivateLiquidationMode(want bool) Fact {
	return toggle(funcInPrivateLiquidationMode, funcSetInPrivateLiquidationMode, want)
}

func SetInPrivateTransferMode(want bool) Fact {
	return toggle(funcInPrivateTransferMode, funcSetInPrivateTransferMode, want)
}

func SetInPrivateStakingMode(want bool) Fact {
	return toggle(funcInPrivateStakingMode, funcSetInPrivateStakingMode, want)
}

func SetInPrivateClaimingMode(want bool) Fact {
	return toggle(funcInPrivateClaimingMode, funcSetInPrivateClaimingMode, want)
}

// SetInPrivateMode restricts GLP minting to handlers.
func SetInPrivateMode(want bool) Fact {
	return toggle(funcInPrivateMode, funcSetInPrivateMode, want)
}

func SetIsLeverageEnabled(want bool) Fact {
	return toggle(funcIsLeverageEnabled, funcSetIsLeverageEnabled, want)
}

func SetIsSwapEnabled(want bool) Fact {
	return toggle(funcIsSwapEnabled, funcSetIsSwapEnabled, want)
}

func SetIsAmmEnabled(want bool) Fact {
	return toggle(funcIsAmmEnabled, funcSetIsAmmEnabled, want)
}

func SetTokensPerInterval(want *big.Int) Fact {
	return quantity(funcTokensPerInterval, funcSetTokensPerInterval, want)
}

func SetBonusMultiplier(want *big.Int) Fact {
	return quantity(funcBonusMultiplier, funcSetBonusMultiplier, want)
}

func SetMinExecutionFee(want *big.Int) Fact {
	return quantity(funcMinExecutionFee, funcSetMinExecutionFee, want)
}

func SetPriceSampleSpace(want *big.Int) Fact {
	return quantity(funcPriceSampleSpace, funcSetPriceSampleSpace, want)
}

func SetMaxStrictPriceDeviation(want *big.Int) Fact {
	return quantity(funcMaxStrictPriceDeviation, funcSetMaxStrictPriceDeviation, want)
}

// SetLatestAnswer sets the answer of a mock price feed.
func SetLatestAnswer(want *big.Int) Fact {
	return quantity(funcLatestAnswer, funcSetLatestAnswer, want)
}

func SetCooldownDuration(want *big.Int) Fact {
	return quantity(funcCooldownDuration, funcSetCooldownDuration, want)
}

func SetMaxLeverage(want *big.Int) Fact {
	return quantity(funcMaxLeverage, funcSetMaxLeverage, want)
}

func SetDepositFee(want *big.Int) Fact {
	return quantity(funcDepositFee, funcSetDepositFee, want)
}

func SetBufferAmount(token common.Address, want *big.Int) Fact {
	return keyed(funcBufferAmounts, funcSetBufferAmount, token, want)
}

func SetSpreadBasisPoints(token common.Address, want *big.Int) Fact {
	return keyed(funcSpreadBasisPoints, funcSetSpreadBasisPoints, token, want)
}

func SetMaxGlobalShortSize(token common.Address, want *big.Int) Fact {
	return keyed(funcMaxGlobalShortSizes, funcSetMaxGlobalShortSize, token, want)
}

// VaultTokenConfig is the per-token configuration held by the vault.
type VaultTokenConfig struct {
	Token         common.Address
	Decimals      *big.Int
	Weight        *big.Int
	MinProfitBps  *big.Int
	MaxUSDGAmount *big.Int
	IsStable      bool
	IsShortable   bool
}

// SetVaultTokenConfig whitelists a token on the vault with its risk parameters.
func SetVaultTokenConfig(c VaultTokenConfig) Fact {
	token := []any{c.Token}
	return Composite(funcSetVaultTokenConfig,
		[]any{c.Token, c.Decimals, c.Weight, c.MinProfitBps, c.MaxUSDGAmount, c.IsStable, c.IsShortable},
		Check{Get: funcWhitelistedTokens, Args: token, Want: true},
		Check{Get: funcTokenDecimals, Args: token, Want: c.Decimals},
		Check{Get: funcTokenWeights, Args: token, Want: c.Weight},
		Check{Get: funcMinProfitBasisPoints, Args: token, Want: c.MinProfitBps},
		Check{Get: funcMaxUsdgAmounts, Args: token, Want: c.MaxUSDGAmount},
		Check{Get: funcStableTokens, Args: token, Want: c.IsStable},
		Check{Get: funcShortableTokens, Args: token, Want: c.IsShortable},
	)
}

// SetPriceFeedTokenConfig points the vault price feed at a token's oracle.
func SetPriceFeedTokenConfig(token, feed common.Address, priceDecimals *big.Int, isStrictStable bool) Fact {
	key := []any{token}
	return Composite(funcSetPriceFeedTokenConfig,
		[]any{token, feed, priceDecimals, isStrictStable},
		Check{Get: funcPriceFeeds, Args: key, Want: feed},
		Check{Get: funcPriceDecimals, Args: key, Want: priceDecimals},
		Check{Get: funcStrictStableTokens, Args: key, Want: isStrictStable},
	)
}

// Fees is the vault fee schedule, in basis points except LiquidationFeeUSD
// (30 decimals) and MinProfitTime (seconds).
type Fees struct {
	TaxBps            *big.Int
	StableTaxBps      *big.Int
	MintBurnFeeBps    *big.Int
	SwapFeeBps        *big.Int
	StableSwapFeeBps  *big.Int
	MarginFeeBps      *big.Int
	LiquidationFeeUSD *big.Int
	MinProfitTime     *big.Int
	HasDynamicFees    bool
}

func SetFees(f Fees) Fact {
	return Composite(funcSetFees,
		[]any{f.TaxBps, f.StableTaxBps, f.MintBurnFeeBps, f.SwapFeeBps, f.StableSwapFeeBps, f.MarginFeeBps, f.LiquidationFeeUSD, f.MinProfitTime, f.HasDynamicFees},
		Check{Get: funcTaxBasisPoints, Want: f.TaxBps},
		Check{Get: funcStableTaxBasisPoints, Want: f.StableTaxBps},
		Check{Get: funcMintBurnFeeBasisPoints, Want: f.MintBurnFeeBps},
		Check{Get: funcSwapFeeBasisPoints, Want: f.SwapFeeBps},
		Check{Get: funcStableSwapFeeBasisPoints, Want: f.StableSwapFeeBps},
		Check{Get: funcMarginFeeBasisPoints, Want: f.MarginFeeBps},
		Check{Get: funcLiquidationFeeUsd, Want: f.LiquidationFeeUSD},
		Check{Get: funcMinProfitTime, Want: f.MinProfitTime},
		Check{Get: funcHasDynamicFees, Want: f.HasDynamicFees},
	)
}

func SetFundingRate(interval, rateFactor, stableRateFactor *big.Int) Fact {
	return Composite(funcSetFundingRate,
		[]any{interval, rateFactor, stableRateFactor},
		Check{Get: funcFundingInterval, Want: interval},
		Check{Get: funcFundingRateFactor, Want: rateFactor},
		Check{Get: funcStableFundingRateFactor, Want: stableRateFactor},
	)
}

// SetDelayValues configures the keeper and public execution windows of a position router.
func SetDelayValues(minBlockDelayKeeper, minTimeDelayPublic, maxTimeDelay *big.Int) Fact {
	return Composite(funcSetDelayValues,
		[]any{minBlockDelayKeeper, minTimeDelayPublic, maxTimeDelay},
		Check{Get: funcMinBlockDelayKeeper, Want: minBlockDelayKeeper},
		Check{Get: funcMinTimeDelayPublic, Want: minTimeDelayPublic},
		Check{Get: funcMaxTimeDelay, Want: maxTimeDelay},
	)
}

// SeedDistribution starts the emission clock of a reward distributor.
func SeedDistribution() Fact {
	return Seeded(funcLastDistributionTime, funcUpdateLastDistributionTime)
}

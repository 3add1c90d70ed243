package steps

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/lmittmann/w3"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
)

// ErrFeedDecimals is returned when an oracle reports a precision different
// from the one configured for its asset.
var ErrFeedDecimals = errors.New("price feed decimals mismatch")

var funcFeedDecimals = w3.MustNewFunc("decimals()", "uint8")

// Vault parameters.
var (
	liquidationFeeUSD  = config.USD(2)
	fundingInterval    = bn(60 * 60)
	fundingRateFactor  = bn(100)
	maxStrictDeviation = config.Expand(1, 28) // 0.01 USD

	vaultFees = deploy.Fees{
		TaxBps:            bn(50),
		StableTaxBps:      bn(5),
		MintBurnFeeBps:    bn(25),
		SwapFeeBps:        bn(30),
		StableSwapFeeBps:  bn(1),
		MarginFeeBps:      bn(10),
		LiquidationFeeUSD: liquidationFeeUSD,
		MinProfitTime:     bn(24 * 60 * 60),
		HasDynamicFees:    true,
	}
)

func coreSteps(network *config.Network) []orchestrator.Step {
	tokens := tokenDeps(network)

	return []orchestrator.Step{
		contract(Vault, tags(TagCore), nil, nil),

		contract(USDG, tags(TagCore), names(Vault), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault)}
		}),

		contract(Router, tags(TagCore), concat(names(Vault, USDG), tokens), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault), r.Addr(USDG), wethAddress(network, r)}
		}),

		contract(VaultPriceFeed, tags(TagCore), nil, nil),

		step(setup(VaultPriceFeed), tags(TagCore), concat(names(VaultPriceFeed), tokens, feedDeps(network)),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				if err := checkFeedDecimals(ctx, env, network, r); err != nil {
					return err
				}

				facts := []deploy.Fact{
					deploy.SetMaxStrictPriceDeviation(maxStrictDeviation),
					deploy.SetPriceSampleSpace(bn(1)),
					deploy.SetIsAmmEnabled(false),
				}
				for _, asset := range network.Assets {
					token := tokenAddress(r, asset)
					facts = append(facts,
						deploy.SetPriceFeedTokenConfig(token, feedAddress(network, r, asset), bn(int64(asset.PriceDecimals)), asset.IsStrictStable),
						deploy.SetSpreadBasisPoints(token, new(big.Int).SetUint64(asset.SpreadBasisPoints)),
					)
				}
				return env.Deployer.Ensure(ctx, VaultPriceFeed, facts...)
			}),

		contract(VaultUtils, tags(TagCore), names(Vault), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault)}
		}),

		contract(ShortsTracker, tags(TagCore), names(Vault), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault)}
		}),

		step(setup(Vault), tags(TagCore), concat(names(Vault, USDG, Router, VaultPriceFeed, VaultUtils), []string{setup(VaultPriceFeed)}, tokens),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				post := []deploy.Fact{
					deploy.SetVaultUtils(r.Addr(VaultUtils)),
					deploy.SetFees(vaultFees),
					deploy.SetFundingRate(fundingInterval, fundingRateFactor, fundingRateFactor),
				}
				for _, asset := range network.Assets {
					token := tokenAddress(r, asset)
					post = append(post,
						deploy.SetVaultTokenConfig(deploy.VaultTokenConfig{
							Token:         token,
							Decimals:      bn(int64(asset.Decimals)),
							Weight:        new(big.Int).SetUint64(asset.TokenWeight),
							MinProfitBps:  new(big.Int).SetUint64(asset.MinProfitBps),
							MaxUSDGAmount: config.Expand(asset.MaxUSDGAmount, 18),
							IsStable:      asset.IsStable,
							IsShortable:   asset.IsShortable,
						}),
						deploy.SetBufferAmount(token, asset.Units(asset.BufferAmount)),
					)
					if asset.IsShortable {
						post = append(post, deploy.SetMaxGlobalShortSize(token, config.USD(asset.MaxGlobalShortSize)))
					}
				}

				return env.Deployer.Initialize(ctx, Vault, []any{
					r.Addr(Router),
					r.Addr(USDG),
					r.Addr(VaultPriceFeed),
					liquidationFeeUSD,
					fundingRateFactor,
					fundingRateFactor,
				}, post...)
			}),
	}
}

// checkFeedDecimals verifies that every real oracle reports the precision the
// chain table declares for its asset. Mock feeds are seeded with that
// precision and are not checked.
func checkFeedDecimals(ctx context.Context, env *deploy.Env, network *config.Network, r deploy.Resolved) error {
	for _, asset := range network.Assets {
		if mockFeed(network, asset) {
			continue
		}
		feed := feedAddress(network, r, asset)
		if feed == zeroAddress {
			return fmt.Errorf("%s: no price feed configured", asset.Symbol)
		}

		var decimals uint8
		if err := env.Deployer.Query(ctx, feed, funcFeedDecimals, nil, &decimals); err != nil {
			return fmt.Errorf("%s price feed: %w", asset.Symbol, err)
		}
		if decimals != asset.PriceDecimals {
			return fmt.Errorf("%w: %s feed %s reports %d, configured %d", ErrFeedDecimals, asset.Symbol, feed.Hex(), decimals, asset.PriceDecimals)
		}
	}
	return nil
}

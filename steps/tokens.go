package steps

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
)

func tokenName(asset config.Asset) registry.Name {
	return registry.N("FaucetToken", asset.Symbol)
}

func feedName(asset config.Asset) registry.Name {
	return registry.N("PriceFeed", asset.Symbol)
}

func mockToken(asset config.Asset) bool {
	return asset.Address == zeroAddress
}

func mockFeed(network *config.Network, asset config.Asset) bool {
	return !network.HasOracle && asset.PriceFeed == zeroAddress
}

// tokenDeps lists the mock token steps of network.
func tokenDeps(network *config.Network) []string {
	var deps []string
	for _, asset := range network.Assets {
		if mockToken(asset) {
			deps = append(deps, tokenName(asset).String())
		}
	}
	return deps
}

// feedDeps lists the mock price feed steps of network.
func feedDeps(network *config.Network) []string {
	var deps []string
	for _, asset := range network.Assets {
		if mockFeed(network, asset) {
			deps = append(deps, feedName(asset).String())
		}
	}
	return deps
}

func tokenAddress(r deploy.Resolved, asset config.Asset) common.Address {
	if !mockToken(asset) {
		return asset.Address
	}
	return r.Addr(tokenName(asset))
}

func feedAddress(network *config.Network, r deploy.Resolved, asset config.Asset) common.Address {
	if !mockFeed(network, asset) {
		return asset.PriceFeed
	}
	return r.Addr(feedName(asset))
}

func wethAddress(network *config.Network, r deploy.Resolved) common.Address {
	native, ok := network.NativeAsset()
	if !ok {
		return zeroAddress
	}
	return tokenAddress(r, native)
}

// tokenSteps deploys a faucet token for every asset without a known address
// and a settable feed seeded with the reference price on networks without
// oracles.
func tokenSteps(network *config.Network) []orchestrator.Step {
	var out []orchestrator.Step
	for _, asset := range network.Assets {
		if mockToken(asset) {
			out = append(out, contract(tokenName(asset), tags(TagTokens), nil, func(*deploy.Env, deploy.Resolved) []any {
				return []any{asset.Name, asset.Symbol, asset.Decimals, asset.Units(1)}
			}))
		}

		if mockFeed(network, asset) {
			name := feedName(asset)
			out = append(out, step(name.String(), tags(TagTokens), nil, func(ctx context.Context, env *deploy.Env, _ deploy.Resolved) error {
				if _, err := env.Deployer.Deploy(ctx, name, nil, nil); err != nil {
					return err
				}
				return env.Deployer.Ensure(ctx, name, deploy.SetLatestAnswer(asset.FeedAnswer()))
			}))
		}
	}
	return out
}

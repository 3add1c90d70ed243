// Package steps defines the deployment graph of the perpetual exchange: mock
// tokens and feeds, the vault and its price feed, GLP, staking rewards,
// routers, periphery readers and the timelock that finally receives
// governance.
package steps

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
)

// Tags accepted by the deploy command.
const (
	TagTokens     = "tokens"
	TagCore       = "core"
	TagGLP        = "glp"
	TagStaking    = "staking"
	TagTrading    = "trading"
	TagPeriphery  = "periphery"
	TagGovernance = "governance"
)

// Registry names shared across steps.
var (
	Vault          = registry.N("Vault")
	USDG           = registry.N("USDG")
	Router         = registry.N("Router")
	VaultPriceFeed = registry.N("VaultPriceFeed")
	VaultUtils     = registry.N("VaultUtils")
	ShortsTracker  = registry.N("ShortsTracker")
	GLP            = registry.N("GLP")
	GlpManager     = registry.N("GlpManager")
	GMX            = registry.N("GMX")
	EsGMX          = registry.N("EsGMX")
	BnGMX          = registry.N("MintableBaseToken", "bnGmx")
	RewardRouter   = registry.N("RewardRouter")
	OrderBook      = registry.N("OrderBook")
	ReferralStore  = registry.N("ReferralStorage")
	PositionRouter = registry.N("PositionRouter")
	PositionMgr    = registry.N("PositionManager")
	Reader         = registry.N("Reader")
	OrderReader    = registry.N("OrderBookReader")
	RewardReader   = registry.N("RewardReader")
	Timelock       = registry.N("Timelock")
)

func setup(name registry.Name) string {
	return name.String() + deploy.VirtualSuffix
}

type runFunc func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error

// step wraps run so it receives the resolved records of deps.
func step(id string, tags []string, deps []string, run runFunc) orchestrator.Step {
	return orchestrator.Step{
		ID:           id,
		Tags:         tags,
		Dependencies: deps,
		Run: func(ctx context.Context, env *deploy.Env) error {
			r, err := env.Deployer.Resolve(ctx, deps...)
			if err != nil {
				return err
			}
			return run(ctx, env, r)
		},
	}
}

// contract deploys name once; args builds the constructor arguments from the
// resolved dependencies.
func contract(name registry.Name, tags []string, deps []string, args func(env *deploy.Env, r deploy.Resolved) []any) orchestrator.Step {
	return step(name.String(), tags, deps, func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
		var ctorArgs []any
		if args != nil {
			ctorArgs = args(env, r)
		}
		_, err := env.Deployer.Deploy(ctx, name, ctorArgs, nil)
		return err
	})
}

func names(list ...registry.Name) []string {
	out := make([]string, len(list))
	for i, name := range list {
		out[i] = name.String()
	}
	return out
}

func concat(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

func tags(t ...string) []string { return t }

func bn(v int64) *big.Int { return big.NewInt(v) }

// All returns the full step graph for network in registration order.
func All(network *config.Network) []orchestrator.Step {
	var all []orchestrator.Step
	all = append(all, tokenSteps(network)...)
	all = append(all, coreSteps(network)...)
	all = append(all, glpSteps()...)
	all = append(all, stakingSteps(network)...)
	all = append(all, tradingSteps(network)...)
	all = append(all, peripherySteps()...)
	all = append(all, governanceSteps()...)
	return all
}

// Register adds the graph for network to o.
func Register(o *orchestrator.Orchestrator, network *config.Network) error {
	return o.Register(All(network)...)
}

var zeroAddress common.Address

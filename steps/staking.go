package steps

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
)

// rewardPair is a RewardTracker and the distributor feeding it.
type rewardPair struct {
	tracker     registry.Name
	distributor registry.Name
	name        string
	symbol      string
	deposits    []registry.Name
	// zero reward means the wrapped native token
	reward registry.Name
	bonus  bool
}

var (
	stakedGmxTracker = registry.N("RewardTracker", "stakedGmxTracker")
	bonusGmxTracker  = registry.N("RewardTracker", "bonusGmxTracker")
	feeGmxTracker    = registry.N("RewardTracker", "feeGmxTracker")
	feeGlpTracker    = registry.N("RewardTracker", "feeGlpTracker")
	stakedGlpTracker = registry.N("RewardTracker", "stakedGlpTracker")

	stakedGmxDistributor = registry.N("RewardDistributor", "stakedGmxDistributor")
	bonusGmxDistributor  = registry.N("BonusDistributor", "bonusGmxDistributor")
	feeGmxDistributor    = registry.N("RewardDistributor", "feeGmxDistributor")
	feeGlpDistributor    = registry.N("RewardDistributor", "feeGlpDistributor")
	stakedGlpDistributor = registry.N("RewardDistributor", "stakedGlpDistributor")

	bonusMultiplierBps = bn(10000)
)

var rewardPairs = []rewardPair{
	{
		tracker:     stakedGmxTracker,
		distributor: stakedGmxDistributor,
		name:        "Staked GMX",
		symbol:      "sGMX",
		deposits:    []registry.Name{GMX, EsGMX},
		reward:      EsGMX,
	},
	{
		tracker:     bonusGmxTracker,
		distributor: bonusGmxDistributor,
		name:        "Staked + Bonus GMX",
		symbol:      "sbGMX",
		deposits:    []registry.Name{stakedGmxTracker},
		reward:      BnGMX,
		bonus:       true,
	},
	{
		tracker:     feeGmxTracker,
		distributor: feeGmxDistributor,
		name:        "Staked + Bonus + Fee GMX",
		symbol:      "sbfGMX",
		deposits:    []registry.Name{bonusGmxTracker, BnGMX},
	},
	{
		tracker:     feeGlpTracker,
		distributor: feeGlpDistributor,
		name:        "Fee GLP",
		symbol:      "fGLP",
		deposits:    []registry.Name{GLP},
	},
	{
		tracker:     stakedGlpTracker,
		distributor: stakedGlpDistributor,
		name:        "Fee + Staked GLP",
		symbol:      "fsGLP",
		deposits:    []registry.Name{feeGlpTracker},
		reward:      EsGMX,
	},
}

// handlerChain lists which tracker may move deposits of which.
var handlerChain = []struct{ on, handler registry.Name }{
	{stakedGmxTracker, bonusGmxTracker},
	{bonusGmxTracker, feeGmxTracker},
	{feeGlpTracker, stakedGlpTracker},
	{BnGMX, feeGmxTracker},
	{EsGMX, stakedGmxDistributor},
	{EsGMX, stakedGlpDistributor},
	{EsGMX, stakedGmxTracker},
	{EsGMX, stakedGlpTracker},
}

func stakingSteps(network *config.Network) []orchestrator.Step {
	tokens := tokenDeps(network)

	var out []orchestrator.Step
	for _, pair := range rewardPairs {
		out = append(out, contract(pair.tracker, tags(TagStaking), nil, func(*deploy.Env, deploy.Resolved) []any {
			return []any{pair.name, pair.symbol}
		}))

		rewardDeps := tokens
		if !pair.reward.IsZero() {
			rewardDeps = names(pair.reward)
		}
		out = append(out, contract(pair.distributor, tags(TagStaking), concat(names(pair.tracker), rewardDeps), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{pair.rewardToken(network, r), r.Addr(pair.tracker)}
		}))

		out = append(out, step(setup(pair.tracker), tags(TagStaking), concat(names(pair.tracker, pair.distributor), names(pair.deposits...)),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				deposits := make([]common.Address, len(pair.deposits))
				for i, dep := range pair.deposits {
					deposits[i] = r.Addr(dep)
				}

				err := env.Deployer.Initialize(ctx, pair.tracker, []any{deposits, r.Addr(pair.distributor)},
					deploy.SetInPrivateTransferMode(true),
					deploy.SetInPrivateStakingMode(true),
				)
				if err != nil {
					return err
				}

				facts := []deploy.Fact{deploy.SeedDistribution()}
				if pair.bonus {
					facts = append(facts, deploy.SetBonusMultiplier(bonusMultiplierBps))
				}
				return env.Deployer.Ensure(ctx, pair.distributor, facts...)
			}))
	}

	return append(out,
		contract(RewardRouter, tags(TagStaking), nil, nil),
		step(setup(RewardRouter), tags(TagStaking), rewardRouterDeps(network), setupRewardRouter(network)),
	)
}

func (p rewardPair) rewardToken(network *config.Network, r deploy.Resolved) common.Address {
	if p.reward.IsZero() {
		return wethAddress(network, r)
	}
	return r.Addr(p.reward)
}

func rewardRouterDeps(network *config.Network) []string {
	deps := concat(names(RewardRouter, GMX, EsGMX, BnGMX, GLP, GlpManager), tokenDeps(network))
	for _, pair := range rewardPairs {
		deps = append(deps, pair.tracker.String(), pair.distributor.String(), setup(pair.tracker))
	}
	return append(deps, setup(GlpManager))
}

func setupRewardRouter(network *config.Network) runFunc {
	return func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
		d := env.Deployer
		router := r.Addr(RewardRouter)

		err := d.Initialize(ctx, RewardRouter, []any{
			wethAddress(network, r),
			r.Addr(GMX),
			r.Addr(EsGMX),
			r.Addr(BnGMX),
			r.Addr(GLP),
			r.Addr(stakedGmxTracker),
			r.Addr(bonusGmxTracker),
			r.Addr(feeGmxTracker),
			r.Addr(feeGlpTracker),
			r.Addr(stakedGlpTracker),
			r.Addr(GlpManager),
		})
		if err != nil {
			return err
		}

		for _, pair := range rewardPairs {
			if err := d.Ensure(ctx, pair.tracker, deploy.SetHandler(router, true)); err != nil {
				return err
			}
		}
		for _, link := range handlerChain {
			if err := d.Ensure(ctx, link.on, deploy.SetHandler(r.Addr(link.handler), true)); err != nil {
				return err
			}
		}

		if err := d.Ensure(ctx, GlpManager, deploy.SetHandler(router, true)); err != nil {
			return err
		}
		if err := d.Ensure(ctx, EsGMX, deploy.SetHandler(router, true)); err != nil {
			return err
		}
		return d.Ensure(ctx, BnGMX, deploy.SetMinter(router, true))
	}
}

package steps

import (
	"context"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
)

var (
	minExecutionFee    = config.Expand(3, 14) // 0.0003 native
	minPurchaseUSD     = config.USD(10)
	depositFeeBps      = bn(30)
	minBlockDelay      = bn(0)
	minTimeDelayPublic = bn(3 * 60)
	maxTimeDelay       = bn(30 * 60)

	timelockBuffer  = bn(24 * 60 * 60)
	maxTokenSupply  = config.Expand(13_250_000, 18)
	marginFeeBps    = bn(10)
	maxMarginFeeBps = bn(500)
)

func tradingSteps(network *config.Network) []orchestrator.Step {
	tokens := tokenDeps(network)

	return []orchestrator.Step{
		contract(ReferralStore, tags(TagTrading), nil, nil),
		contract(OrderBook, tags(TagTrading), nil, nil),

		step(setup(OrderBook), tags(TagTrading), concat(names(OrderBook, Router, Vault, USDG), tokens),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				err := env.Deployer.Initialize(ctx, OrderBook, []any{
					r.Addr(Router),
					r.Addr(Vault),
					wethAddress(network, r),
					r.Addr(USDG),
					minExecutionFee,
					minPurchaseUSD,
				}, deploy.SetMinExecutionFee(minExecutionFee))
				if err != nil {
					return err
				}
				return env.Deployer.Ensure(ctx, Router, deploy.AddPlugin(r.Addr(OrderBook)))
			}),

		contract(PositionRouter, tags(TagTrading), concat(names(Vault, Router, ShortsTracker), tokens), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault), r.Addr(Router), wethAddress(network, r), r.Addr(ShortsTracker), depositFeeBps, minExecutionFee}
		}),

		step(setup(PositionRouter), tags(TagTrading), names(PositionRouter, Router, ShortsTracker, ReferralStore),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				d := env.Deployer
				positionRouter := r.Addr(PositionRouter)

				if err := d.Ensure(ctx, PositionRouter,
					deploy.SetReferralStorage(r.Addr(ReferralStore)),
					deploy.SetPositionKeeper(env.Keeper, true),
					deploy.SetDelayValues(minBlockDelay, minTimeDelayPublic, maxTimeDelay),
				); err != nil {
					return err
				}
				if err := d.Ensure(ctx, Router, deploy.AddPlugin(positionRouter)); err != nil {
					return err
				}
				if err := d.Ensure(ctx, ShortsTracker, deploy.SetHandler(positionRouter, true)); err != nil {
					return err
				}
				return d.Ensure(ctx, ReferralStore, deploy.SetHandler(positionRouter, true))
			}),

		contract(PositionMgr, tags(TagTrading), concat(names(Vault, Router, ShortsTracker, OrderBook), tokens), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault), r.Addr(Router), r.Addr(ShortsTracker), wethAddress(network, r), depositFeeBps, r.Addr(OrderBook)}
		}),

		step(setup(PositionMgr), tags(TagTrading), concat(names(PositionMgr, Router, ShortsTracker, ReferralStore, Vault), []string{setup(Vault)}),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				d := env.Deployer
				manager := r.Addr(PositionMgr)

				if err := d.Ensure(ctx, PositionMgr,
					deploy.SetReferralStorage(r.Addr(ReferralStore)),
					deploy.SetOrderKeeper(env.Keeper, true),
					deploy.SetLiquidator(env.Keeper, true),
				); err != nil {
					return err
				}
				if err := d.Ensure(ctx, Router, deploy.AddPlugin(manager)); err != nil {
					return err
				}
				if err := d.Ensure(ctx, ShortsTracker, deploy.SetHandler(manager, true)); err != nil {
					return err
				}
				return d.Ensure(ctx, Vault,
					deploy.SetLiquidator(manager, true),
					deploy.SetInPrivateLiquidationMode(true),
				)
			}),
	}
}

func peripherySteps() []orchestrator.Step {
	return []orchestrator.Step{
		contract(Reader, tags(TagPeriphery), nil, nil),
		contract(OrderReader, tags(TagPeriphery), nil, nil),
		contract(RewardReader, tags(TagPeriphery), nil, nil),
	}
}

// governed lists the contracts whose gov moves to the timelock.
var governed = []registry.Name{Vault, VaultPriceFeed, GlpManager, ShortsTracker}

func governanceSteps() []orchestrator.Step {
	handover := step("gov-handover", tags(TagGovernance),
		concat(names(Timelock), names(governed...), []string{
			setup(Timelock),
			setup(Vault),
			setup(VaultPriceFeed),
			setup(GlpManager),
			setup(OrderBook),
			setup(PositionRouter),
			setup(PositionMgr),
			setup(RewardRouter),
		}),
		func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
			timelock := r.Addr(Timelock)
			for _, name := range governed {
				if err := env.Deployer.Ensure(ctx, name, deploy.SetGov(timelock)); err != nil {
					return err
				}
			}
			return nil
		})
	handover.Once = true

	return []orchestrator.Step{
		contract(Timelock, tags(TagGovernance), names(GlpManager, RewardRouter), func(env *deploy.Env, r deploy.Resolved) []any {
			return []any{
				env.Admin,
				timelockBuffer,
				env.Admin, // token manager
				env.Admin, // mint receiver
				r.Addr(GlpManager),
				r.Addr(RewardRouter),
				maxTokenSupply,
				marginFeeBps,
				maxMarginFeeBps,
			}
		}),

		step(setup(Timelock), tags(TagGovernance), names(Timelock, PositionRouter, PositionMgr),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				return env.Deployer.Ensure(ctx, Timelock,
					deploy.SetContractHandler(r.Addr(PositionRouter), true),
					deploy.SetContractHandler(r.Addr(PositionMgr), true),
					deploy.SetKeeper(env.Keeper, true),
				)
			}),

		handover,
	}
}

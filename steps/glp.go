package steps

import (
	"context"

	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
)

var glpCooldown = bn(15 * 60)

func glpSteps() []orchestrator.Step {
	return []orchestrator.Step{
		contract(GLP, tags(TagGLP), nil, nil),

		contract(GlpManager, tags(TagGLP), names(Vault, USDG, GLP, ShortsTracker), func(_ *deploy.Env, r deploy.Resolved) []any {
			return []any{r.Addr(Vault), r.Addr(USDG), r.Addr(GLP), r.Addr(ShortsTracker), glpCooldown}
		}),

		step(setup(GlpManager), tags(TagGLP), concat(names(GlpManager, GLP, USDG, Vault), []string{setup(Vault)}),
			func(ctx context.Context, env *deploy.Env, r deploy.Resolved) error {
				manager := r.Addr(GlpManager)
				d := env.Deployer

				if err := d.Ensure(ctx, GlpManager,
					deploy.SetInPrivateMode(true),
					deploy.SetCooldownDuration(glpCooldown),
				); err != nil {
					return err
				}
				if err := d.Ensure(ctx, GLP,
					deploy.SetMinter(manager, true),
					deploy.SetInPrivateTransferMode(true),
				); err != nil {
					return err
				}
				if err := d.Ensure(ctx, USDG, deploy.AddVault(manager)); err != nil {
					return err
				}
				return d.Ensure(ctx, Vault, deploy.SetManager(manager, true))
			}),

		contract(GMX, tags(TagStaking), nil, nil),
		contract(EsGMX, tags(TagStaking), nil, nil),
		contract(BnGMX, tags(TagStaking), nil, func(*deploy.Env, deploy.Resolved) []any {
			return []any{"Bonus GMX", "bnGMX", bn(0)}
		}),
	}
}

package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/artifacts"
	"github.com/parthshah1/perpwizard/compare"
	"github.com/parthshah1/perpwizard/config"
)

var CompareCmd = &cli.Command{
	Name:  "compare",
	Usage: "Run a comparison suite against two implementations on a simulated chain",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "suite",
			Usage:    "Suite to run: erc20, reentrancy or context",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "new",
			Usage:    "Artifact name of the new implementation",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "original",
			Usage:    "Artifact name of the reference implementation",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "constructor-args",
			Usage: "Constructor arguments shared by both (comma-separated)",
		},
		&cli.StringFlag{
			Name:  "types",
			Usage: "Constructor argument types (comma-separated)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON report to this file",
		},
	},
	Action: runCompare,
}

func runCompare(c *cli.Context) error {
	ctx := c.Context

	suite, err := compare.LookupSuite(c.String("suite"))
	if err != nil {
		return err
	}
	args, err := config.ConvertArguments(config.SplitList(c.String("constructor-args")), config.SplitList(c.String("types")))
	if err != nil {
		return fmt.Errorf("failed to convert constructor arguments: %w", err)
	}
	if cfg.CreationGasTolerance < 0 || cfg.CallGasTolerance < 0 {
		return fmt.Errorf("gas tolerances must not be negative")
	}

	d, err := compare.NewSimulatedDeployer(ctx, artifacts.NewDir(cfg.ArtifactsDir), logger)
	if err != nil {
		return err
	}
	defer d.Close()

	pair := compare.Pair{New: c.String("new"), Original: c.String("original"), Args: args}
	report, err := compare.Run(ctx, d, pair, suite, compare.Options{
		Tolerance: &compare.Tolerance{
			Creation: cfg.CreationGasTolerance,
			Call:     cfg.CallGasTolerance,
		},
		Logger:     logger,
		Antithesis: cfg.Antithesis,
	})
	if err != nil {
		return err
	}

	printReport(report)
	if path := c.String("report"); path != "" {
		if err := report.SaveToFile(path); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Printf("\nReport saved to %s\n", path)
	}
	return report.Err()
}

func printReport(r *compare.Report) {
	fmt.Printf("Suite %s: %d cases, %d checks, %d mismatches\n", r.Suite, r.Cases, r.Checks, len(r.Mismatches))

	if len(r.Gas) > 0 {
		fmt.Println("\nGas:")
		for _, g := range r.Gas {
			fmt.Printf("  %-28s %-16s new %9d  original %9d  %+6.2f%%\n", g.Case, g.Check, g.New, g.Original, g.Overhead*100)
		}
	}
	if len(r.Divergences) > 0 {
		fmt.Println("\nExpected divergences:")
		for _, d := range r.Divergences {
			fmt.Printf("  %s/%s: new %s, original %s\n", d.Case, d.Check, d.New, d.Original)
		}
	}
	if len(r.Mismatches) > 0 {
		fmt.Println("\nMismatches:")
		for _, m := range r.Mismatches {
			fmt.Printf("  %s/%s: %s\n", m.Case, m.Check, m.Detail)
		}
	}
}

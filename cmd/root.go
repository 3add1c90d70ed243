package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/config"
)

var (
	cfg    *config.Config
	logger log.Logger
)

// NewApp creates a new CLI app
func NewApp() *cli.App {
	app := &cli.App{
		Name:  "perpwizard",
		Usage: "Idempotent deployment and comparison tool for a perpetual exchange",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Target network (env: DEPLOY_NETWORK)",
				EnvVars: []string{"DEPLOY_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "rpc",
				Usage:   "RPC URL, defaults to the network's endpoint (env: DEPLOY_RPC)",
				EnvVars: []string{"DEPLOY_RPC"},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Deployer private key (env: DEPLOYER_PRIVATE_KEY)",
				EnvVars: []string{"DEPLOYER_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "deployments",
				Usage:   "Deployment registry directory (env: DEPLOYMENTS_DIR)",
				EnvVars: []string{"DEPLOYMENTS_DIR"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL registry, replaces the directory when set (env: DEPLOYMENTS_DSN)",
				EnvVars: []string{"DEPLOYMENTS_DSN"},
			},
			&cli.StringFlag{
				Name:    "artifacts",
				Usage:   "Compiled contract artifacts directory (env: ARTIFACTS_DIR)",
				EnvVars: []string{"ARTIFACTS_DIR"},
			},
			&cli.Uint64Flag{
				Name:    "gas-limit",
				Usage:   "Fixed gas limit instead of estimating (env: DEFAULT_GAS_LIMIT)",
				EnvVars: []string{"DEFAULT_GAS_LIMIT"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Verbose output (env: VERBOSE)",
				EnvVars: []string{"VERBOSE"},
			},
			&cli.BoolFlag{
				Name:    "antithesis",
				Usage:   "Emit antithesis assertions (env: ANTITHESIS)",
				EnvVars: []string{"ANTITHESIS"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Load()

			if c.IsSet("network") {
				cfg.Network = c.String("network")
			}
			if c.IsSet("rpc") {
				cfg.RPC = c.String("rpc")
			}
			if c.IsSet("private-key") {
				cfg.PrivateKey = c.String("private-key")
			}
			if c.IsSet("deployments") {
				cfg.DeploymentsDir = c.String("deployments")
			}
			if c.IsSet("dsn") {
				cfg.DeploymentsDSN = c.String("dsn")
			}
			if c.IsSet("artifacts") {
				cfg.ArtifactsDir = c.String("artifacts")
			}
			if c.IsSet("gas-limit") {
				cfg.DefaultGasLimit = c.Uint64("gas-limit")
			}
			if c.IsSet("verbose") {
				cfg.Verbose = c.Bool("verbose")
			}
			if c.IsSet("antithesis") {
				cfg.Antithesis = c.Bool("antithesis")
			}

			logger = newLogger(cfg.Verbose)
			log.SetDefault(logger)
			return nil
		},
		Commands: []*cli.Command{
			DeployCmd,
			PlanCmd,
			RegistryCmd,
			CallCmd,
			CompareCmd,
			NetworksCmd,
			AccountsCmd,
		},
	}
	return app
}

func newLogger(verbose bool) log.Logger {
	glogger := log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, useColor(os.Stderr)))
	if verbose {
		glogger.Verbosity(log.LevelDebug)
	} else {
		glogger.Verbosity(log.LevelInfo)
	}
	return log.NewLogger(glogger)
}

// useColor reports whether f is a terminal that can render colour.
func useColor(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
	"github.com/parthshah1/perpwizard/steps"
)

var tagsFlag = &cli.StringFlag{
	Name:  "tags",
	Usage: "Only run steps with these tags or ids, plus their dependencies (comma-separated)",
}

var manifestFlag = &cli.StringFlag{
	Name:  "manifest",
	Usage: "JSON manifest of additional contracts to deploy after the built-in graph",
}

var DeployCmd = &cli.Command{
	Name:  "deploy",
	Usage: "Deploy and configure the exchange on the selected network",
	Flags: []cli.Flag{
		tagsFlag,
		manifestFlag,
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Serve Prometheus metrics on this address while deploying (env: METRICS_ADDR)",
			EnvVars: []string{"METRICS_ADDR"},
		},
	},
	Action: runDeploy,
}

var PlanCmd = &cli.Command{
	Name:  "plan",
	Usage: "Print the step execution order and what is already deployed",
	Flags: []cli.Flag{
		tagsFlag,
		manifestFlag,
	},
	Action: runPlan,
}

// buildGraph registers the built-in steps for network plus the manifest steps.
func buildGraph(c *cli.Context, store registry.Store, network *config.Network) (*orchestrator.Orchestrator, error) {
	o := orchestrator.New(store, logger)
	if err := steps.Register(o, network); err != nil {
		return nil, err
	}

	if path := c.String("manifest"); path != "" {
		manifest, err := steps.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		extra, err := manifest.Steps()
		if err != nil {
			return nil, err
		}
		if err := o.Register(extra...); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func runDeploy(c *cli.Context) error {
	ctx := c.Context
	tags := config.SplitList(c.String("tags"))

	var opts []deploy.Option
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts = append(opts, deploy.WithMetrics(deploy.NewMetrics(reg)))

		stop := serveMetrics(addr, reg)
		defer stop()
	}

	s, err := connect(ctx, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	o, err := buildGraph(c, s.store, s.network)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := o.Run(ctx, s.env, tags...)
	printResults(results)
	if err != nil {
		return fmt.Errorf("deployment on %s failed: %w", s.network.Name, err)
	}

	fmt.Printf("\nDeployment on %s completed in %s (%d steps)\n", s.network.Name, time.Since(start).Round(time.Millisecond), len(results))
	return nil
}

func printResults(results []orchestrator.StepResult) {
	if len(results) == 0 {
		return
	}
	fmt.Println()
	for _, r := range results {
		switch {
		case r.Error != nil:
			fmt.Printf("  FAILED   %-45s %v\n", r.StepID, r.Error)
		case r.Skipped:
			fmt.Printf("  skipped  %s\n", r.StepID)
		default:
			fmt.Printf("  done     %-45s %s\n", r.StepID, r.Duration.Round(time.Millisecond))
		}
	}
}

// serveMetrics exposes reg over HTTP until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runPlan(c *cli.Context) error {
	ctx := c.Context
	network, err := lookupNetwork()
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	o, err := buildGraph(c, store, network)
	if err != nil {
		return err
	}
	ordered, err := o.Order(config.SplitList(c.String("tags"))...)
	if err != nil {
		return err
	}

	fmt.Printf("Execution order on %s (%d steps):\n\n", network.Name, len(ordered))
	for i, step := range ordered {
		status, err := stepStatus(ctx, store, network.Name, step)
		if err != nil {
			return err
		}
		fmt.Printf("%3d. %-45s %-12s %s\n", i+1, step.ID, status, strings.Join(step.Tags, ","))
	}
	return nil
}

// stepStatus reports what the registry already knows about a step.
func stepStatus(ctx context.Context, store registry.Store, network string, step orchestrator.Step) (string, error) {
	if step.Once {
		done, err := store.StepDone(ctx, network, step.ID)
		if err != nil {
			return "", err
		}
		if done {
			return "completed", nil
		}
		return "pending", nil
	}
	if deploy.IsVirtual(step.ID) {
		return "setup", nil
	}

	name, err := registry.ParseName(step.ID)
	if err != nil {
		return "", err
	}
	rec, err := store.Get(ctx, network, name)
	if errors.Is(err, registry.ErrNotFound) {
		return "pending", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Address.Hex()[:10], nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/parthshah1/perpwizard/chain"
	"github.com/parthshah1/perpwizard/registry"
)

// verifyConcurrency bounds the parallel eth_getCode calls of registry verify.
const verifyConcurrency = 8

var RegistryCmd = &cli.Command{
	Name:  "registry",
	Usage: "Inspect and maintain the deployment registry of the selected network",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List deployed contracts",
			Action: listRecords,
		},
		{
			Name:      "info",
			Usage:     "Show one deployment record",
			ArgsUsage: "<name>",
			Action:    recordInfo,
		},
		{
			Name:      "clear",
			Usage:     "Forget a deployment so the next run deploys it again",
			ArgsUsage: "<name>",
			Action:    clearRecord,
		},
		{
			Name:   "verify",
			Usage:  "Check that every recorded address has code on chain",
			Action: verifyRecords,
		},
	},
}

func nameArg(c *cli.Context) (registry.Name, error) {
	if c.NArg() != 1 {
		return registry.Name{}, fmt.Errorf("expected exactly one contract name")
	}
	return registry.ParseName(c.Args().First())
}

func listRecords(c *cli.Context) error {
	network, err := lookupNetwork()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(c.Context, network.Name)
	if err != nil {
		return fmt.Errorf("failed to load deployments: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No deployments found on %s.\n", network.Name)
		return nil
	}

	fmt.Printf("Found %d deployed contracts on %s:\n\n", len(records), network.Name)
	for i, rec := range records {
		fmt.Printf("%d. %s\n", i+1, rec.Name)
		fmt.Printf("   Address: %s\n", rec.Address.Hex())
		fmt.Printf("   TX Hash: %s\n", rec.TxHash.Hex())
		fmt.Printf("   Deployed: %s\n", rec.DeployedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func recordInfo(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	network, err := lookupNetwork()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(c.Context, network.Name, name)
	if err != nil {
		return fmt.Errorf("failed to get deployment info: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func clearRecord(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	network, err := lookupNetwork()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(c.Context, network.Name, name)
	if err != nil {
		return err
	}
	if err := store.Delete(c.Context, network.Name, name); err != nil {
		return err
	}
	fmt.Printf("Cleared %s (%s) on %s. The old contract stays on chain.\n", name, rec.Address.Hex(), network.Name)
	return nil
}

func verifyRecords(c *cli.Context) error {
	ctx := c.Context
	network, err := cfg.Validate()
	if err != nil {
		return err
	}
	key, err := cfg.Key()
	if err != nil {
		return err
	}
	client, err := chain.Dial(ctx, cfg.RPC, key, chain.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, network.Name)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		missing []*registry.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			code, err := client.CodeAt(gctx, rec.Address)
			if err != nil {
				return fmt.Errorf("%s: %w", rec.Name, err)
			}
			if len(code) == 0 {
				mu.Lock()
				missing = append(missing, rec)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(missing) == 0 {
		fmt.Printf("All %d deployments on %s have code.\n", len(records), network.Name)
		return nil
	}
	for _, rec := range missing {
		fmt.Printf("  no code  %s at %s\n", rec.Name, rec.Address.Hex())
	}
	return fmt.Errorf("%d of %d deployments on %s have no code", len(missing), len(records), network.Name)
}

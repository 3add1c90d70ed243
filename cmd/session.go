package cmd

import (
	"context"
	"fmt"

	"github.com/parthshah1/perpwizard/artifacts"
	"github.com/parthshah1/perpwizard/chain"
	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/registry"
)

// openStore returns the PostgreSQL registry when a DSN is configured and the
// file registry otherwise.
func openStore(ctx context.Context) (registry.Store, error) {
	if cfg.DeploymentsDSN != "" {
		return registry.NewPostgresStore(ctx, cfg.DeploymentsDSN)
	}
	return registry.NewFileStore(cfg.DeploymentsDir)
}

// lookupNetwork resolves the selected network without requiring credentials.
func lookupNetwork() (*config.Network, error) {
	network, ok := config.LookupNetwork(cfg.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownNetwork, cfg.Network)
	}
	return network, nil
}

// session bundles everything a command that sends transactions needs.
type session struct {
	network  *config.Network
	client   *chain.Client
	store    registry.Store
	deployer *deploy.Deployer
	env      *deploy.Env
}

func connect(ctx context.Context, opts ...deploy.Option) (*session, error) {
	network, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	keeper, err := cfg.KeeperAddress()
	if err != nil {
		return nil, err
	}
	admin, err := cfg.AdminAddress()
	if err != nil {
		return nil, err
	}

	var chainOpts []chain.Option
	chainOpts = append(chainOpts, chain.WithLogger(logger))
	if cfg.DefaultGasLimit > 0 {
		chainOpts = append(chainOpts, chain.WithGasLimit(cfg.DefaultGasLimit))
	}
	client, err := chain.Dial(ctx, cfg.RPC, key, chainOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", network.Name, err)
	}
	if id := client.ChainID().Uint64(); network.ChainID != 0 && id != network.ChainID {
		client.Close()
		return nil, fmt.Errorf("RPC %s serves chain %d, network %s expects %d", cfg.RPC, id, network.Name, network.ChainID)
	}

	store, err := openStore(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	opts = append([]deploy.Option{deploy.WithLogger(logger)}, opts...)
	deployer := deploy.New(network.Name, client, store, artifacts.NewDir(cfg.ArtifactsDir), opts...)

	logger.Info("Connected", "network", network.Name, "chainID", client.ChainID(), "deployer", client.From())
	return &session{
		network:  network,
		client:   client,
		store:    store,
		deployer: deployer,
		env: &deploy.Env{
			Network:  network,
			Deployer: deployer,
			Keeper:   keeper,
			Admin:    admin,
			Log:      logger,
		},
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		logger.Warn("Failed to close registry", "err", err)
	}
	s.client.Close()
}

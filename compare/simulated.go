package compare

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/parthshah1/perpwizard/artifacts"
	"github.com/parthshah1/perpwizard/chain"
)

// DefaultAccounts are funded on every simulated chain. "deployer" creates
// the contracts under test.
var DefaultAccounts = []string{"deployer", "alice", "bob", "carol", "dave"}

// accountKey derives a stable key per account name so addresses are
// reproducible across runs.
func accountKey(name string) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("perpwizard/" + name)))
	if err != nil {
		panic(fmt.Sprintf("derive key for %s: %v", name, err))
	}
	return key
}

// SimulatedDeployer deploys artifacts on an in-process chain.
type SimulatedDeployer struct {
	sim     *chain.Simulated
	source  artifacts.Source
	clients map[string]*chain.Client
	log     log.Logger
}

// NewSimulatedDeployer starts a simulated chain funding the named accounts,
// DefaultAccounts when none are given.
func NewSimulatedDeployer(ctx context.Context, source artifacts.Source, logger log.Logger, accounts ...string) (*SimulatedDeployer, error) {
	if len(accounts) == 0 {
		accounts = DefaultAccounts
	}
	keys := make([]*ecdsa.PrivateKey, len(accounts))
	for i, name := range accounts {
		keys[i] = accountKey(name)
	}

	d := &SimulatedDeployer{
		sim:     chain.NewSimulated(keys...),
		source:  source,
		clients: make(map[string]*chain.Client, len(accounts)),
		log:     logger,
	}
	for i, name := range accounts {
		client, err := d.sim.Client(ctx, keys[i], chain.WithLogger(logger.With("account", name)))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to create client for %s: %w", name, err)
		}
		d.clients[name] = client
	}
	return d, nil
}

func (d *SimulatedDeployer) Account(name string) common.Address {
	if c, ok := d.clients[name]; ok {
		return c.From()
	}
	return crypto.PubkeyToAddress(accountKey(name).PublicKey)
}

// Deploy creates artifact from the deployer account.
func (d *SimulatedDeployer) Deploy(ctx context.Context, artifact string, args ...any) (Instance, error) {
	art, err := d.source.Load(artifact)
	if err != nil {
		return nil, err
	}
	data, err := art.DeployData(nil, args...)
	if err != nil {
		return nil, err
	}

	client, err := d.client("deployer")
	if err != nil {
		return nil, err
	}
	receipt, err := client.Send(ctx, nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", artifact, err)
	}
	d.log.Debug("Deployed instance", "artifact", artifact, "address", receipt.ContractAddress, "gasUsed", receipt.GasUsed)

	return &evmInstance{
		deployer:  d,
		artifact:  art,
		address:   receipt.ContractAddress,
		deployGas: receipt.GasUsed,
	}, nil
}

func (d *SimulatedDeployer) client(name string) (*chain.Client, error) {
	c, ok := d.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown account %q", name)
	}
	return c, nil
}

// Close stops the simulated chain.
func (d *SimulatedDeployer) Close() error {
	return d.sim.Close()
}

type evmInstance struct {
	deployer  *SimulatedDeployer
	artifact  *artifacts.Artifact
	address   common.Address
	deployGas uint64
}

func (i *evmInstance) Address() common.Address { return i.address }
func (i *evmInstance) DeployGas() uint64 { return i.deployGas }

func (i *evmInstance) Transact(ctx context.Context, from, method string, args ...any) (*Result, error) {
	client, err := i.deployer.client(from)
	if err != nil {
		return nil, err
	}
	data, err := i.artifact.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	receipt, err := client.Send(ctx, &i.address, data)
	if err != nil {
		if !errors.Is(err, chain.ErrReverted) {
			return nil, err
		}
		res := &Result{Reverted: true}
		var revert *chain.RevertError
		if errors.As(err, &revert) {
			res.RevertData = revert.Data
		}
		if receipt != nil {
			res.GasUsed = receipt.GasUsed
		}
		return res, nil
	}

	events, err := i.decodeEvents(receipt.Logs)
	if err != nil {
		return nil, err
	}
	return &Result{GasUsed: receipt.GasUsed, Events: events}, nil
}

func (i *evmInstance) View(ctx context.Context, method string, args ...any) ([]any, error) {
	client, err := i.deployer.client("deployer")
	if err != nil {
		return nil, err
	}
	data, err := i.artifact.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := client.Call(ctx, i.address, data)
	if err != nil {
		return nil, err
	}
	return i.artifact.ABI.Unpack(method, out)
}

// decodeEvents decodes the logs this instance emitted. Logs from other
// contracts and unknown topics are skipped.
func (i *evmInstance) decodeEvents(logs []*types.Log) ([]Event, error) {
	var events []Event
	for _, l := range logs {
		if l.Address != i.address || len(l.Topics) == 0 {
			continue
		}
		ev, err := i.artifact.ABI.EventByID(l.Topics[0])
		if err != nil {
			continue
		}

		args := make(map[string]any)
		if err := ev.Inputs.UnpackIntoMap(args, l.Data); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", ev.RawName, err)
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, l.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to decode topics of %s: %w", ev.RawName, err)
		}
		events = append(events, Event{Name: ev.RawName, Args: args})
	}
	return events, nil
}

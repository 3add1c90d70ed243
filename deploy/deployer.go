// Package deploy implements the idempotent deployment primitives: deploy a
// contract once per network, initialize it once, and converge relationship
// state with query-guarded setters.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"

	"github.com/parthshah1/perpwizard/artifacts"
	"github.com/parthshah1/perpwizard/registry"
)

// ErrMissingDependency means a contract required by a step has no record on
// the active network. It points at a step graph or ordering bug.
var ErrMissingDependency = errors.New("dependency not deployed")

// Chain is the transaction surface the deployer needs.
type Chain interface {
	From() common.Address
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Send(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error)
}

// Option configures a Deployer.
type Option func(*Deployer)

func WithLogger(logger log.Logger) Option {
	return func(d *Deployer) { d.log = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Deployer) { d.metrics = m }
}

// Deployer runs every action against one network. It assumes it is the only
// writer for that network.
type Deployer struct {
	network   string
	chain     Chain
	store     registry.Store
	artifacts artifacts.Source
	metrics   *Metrics
	log       log.Logger
	now       func() time.Time
}

// New creates a deployer for network.
func New(network string, chain Chain, store registry.Store, src artifacts.Source, opts ...Option) *Deployer {
	d := &Deployer{
		network:   network,
		chain:     chain,
		store:     store,
		artifacts: src,
		log:       log.Root(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Network returns the network the deployer writes to.
func (d *Deployer) Network() string {
	return d.network
}

// From returns the signer address.
func (d *Deployer) From() common.Address {
	return d.chain.From()
}

// Deploy creates the contract for name unless the registry already holds a
// record for it, in which case that record is returned and nothing is sent.
func (d *Deployer) Deploy(ctx context.Context, name registry.Name, args []any, libs map[string]common.Address) (*registry.Record, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}

	rec, err := d.store.Get(ctx, d.network, name)
	if err == nil {
		d.skipped(kindDeploy, name, "deploy", "address", rec.Address)
		return rec, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%s: failed to read registry: %w", name, err)
	}

	art, err := d.artifacts.Load(name.Artifact)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	// linking and packing fail before anything is signed
	data, err := art.DeployData(libs, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	receipt, err := d.chain.Send(ctx, nil, data)
	if err != nil {
		return nil, fmt.Errorf("%s: deploy: %w", name, err)
	}

	rec = &registry.Record{
		Name:       name,
		Address:    receipt.ContractAddress,
		TxHash:     receipt.TxHash,
		Deployer:   d.chain.From(),
		Args:       formatArgs(args),
		Libraries:  copyLibs(libs),
		ABIRef:     abiRef(art, name),
		DeployedAt: d.now().UTC(),
	}
	if err := d.store.Put(ctx, d.network, rec); err != nil {
		return nil, fmt.Errorf("%s: deployed at %s but failed to record: %w", name, rec.Address.Hex(), err)
	}
	rec.Newly = true

	d.executed(kindDeploy, name, "deploy", receipt, "address", rec.Address)
	return rec, nil
}

// Initialize calls initialize(args...) on name unless isInitialized() already
// reports true. The post facts are checked on every call, whether or not
// initialize ran, so follow-ups interrupted by a failure converge on re-run.
func (d *Deployer) Initialize(ctx context.Context, name registry.Name, args []any, post ...Fact) error {
	rec, err := d.Record(ctx, name)
	if err != nil {
		return err
	}

	initialized, err := d.isInitialized(ctx, rec.Address)
	if err != nil {
		return fmt.Errorf("%s.isInitialized: %w", name, err)
	}

	if initialized {
		d.skipped(kindInitialize, name, "initialize")
	} else {
		art, err := d.artifacts.Load(name.Artifact)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		data, err := art.ABI.Pack("initialize", args...)
		if err != nil {
			return fmt.Errorf("%s.initialize: failed to pack arguments: %w", name, err)
		}

		receipt, err := d.chain.Send(ctx, &rec.Address, data)
		if err != nil {
			return fmt.Errorf("%s.initialize: %w", name, err)
		}
		d.executed(kindInitialize, name, describe("initialize", args...), receipt)
	}

	return d.ensure(ctx, name, rec.Address, post)
}

// Ensure makes every fact hold on the contract recorded under name, sending
// one transaction per fact that does not hold yet.
func (d *Deployer) Ensure(ctx context.Context, name registry.Name, facts ...Fact) error {
	rec, err := d.Record(ctx, name)
	if err != nil {
		return err
	}
	return d.ensure(ctx, name, rec.Address, facts)
}

// Record returns the registry record for name, or ErrMissingDependency.
func (d *Deployer) Record(ctx context.Context, name registry.Name) (*registry.Record, error) {
	rec, err := d.store.Get(ctx, d.network, name)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on %s", ErrMissingDependency, name, d.network)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read registry: %w", name, err)
	}
	return rec, nil
}

// Query runs a read-only call of fn on addr and decodes the result into out.
func (d *Deployer) Query(ctx context.Context, addr common.Address, fn *w3.Func, args []any, out ...any) error {
	input, err := fn.EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	output, err := d.chain.Call(ctx, addr, input)
	if err != nil {
		return fmt.Errorf("call %s on %s: %w", fn.Signature, addr.Hex(), err)
	}
	return fn.DecodeReturns(output, out...)
}

func (d *Deployer) ensure(ctx context.Context, name registry.Name, addr common.Address, facts []Fact) error {
	call := func(ctx context.Context, input []byte) ([]byte, error) {
		return d.chain.Call(ctx, addr, input)
	}

	for _, fact := range facts {
		action := fact.Action()

		holds, err := fact.Holds(ctx, call)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, action, err)
		}
		if holds {
			d.skipped(kindSetter, name, action)
			continue
		}

		data, err := fact.Calldata()
		if err != nil {
			return fmt.Errorf("%s.%s: failed to encode: %w", name, action, err)
		}
		receipt, err := d.chain.Send(ctx, &addr, data)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, action, err)
		}
		d.executed(kindSetter, name, action, receipt)
	}
	return nil
}

func (d *Deployer) isInitialized(ctx context.Context, addr common.Address) (bool, error) {
	input, err := funcIsInitialized.EncodeArgs()
	if err != nil {
		return false, err
	}
	output, err := d.chain.Call(ctx, addr, input)
	if err != nil {
		return false, err
	}
	var initialized bool
	if err := funcIsInitialized.DecodeReturns(output, &initialized); err != nil {
		return false, err
	}
	return initialized, nil
}

func (d *Deployer) skipped(kind string, name registry.Name, action string, ctx ...any) {
	d.metrics.observe(kind, outcomeSkipped, 0)
	fields := append([]any{"contract", name.String(), "action", action, "result", outcomeSkipped}, ctx...)
	d.log.Info("Already satisfied", fields...)
}

func (d *Deployer) executed(kind string, name registry.Name, action string, receipt *types.Receipt, ctx ...any) {
	d.metrics.observe(kind, outcomeExecuted, receipt.GasUsed)
	fields := append([]any{"contract", name.String(), "action", action, "result", outcomeExecuted,
		"tx", receipt.TxHash, "gasUsed", receipt.GasUsed}, ctx...)
	d.log.Info("Transaction confirmed", fields...)
}

func formatArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = formatValue(arg)
	}
	return out
}

func copyLibs(libs map[string]common.Address) map[string]common.Address {
	if len(libs) == 0 {
		return nil
	}
	out := make(map[string]common.Address, len(libs))
	for k, v := range libs {
		out[k] = v
	}
	return out
}

func abiRef(art *artifacts.Artifact, name registry.Name) string {
	if art.SourceName != "" {
		return art.SourceName + ":" + art.ContractName
	}
	return name.Artifact
}

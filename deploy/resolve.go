package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parthshah1/perpwizard/registry"
)

// VirtualSuffix marks step ids that configure an existing contract and have
// no registry record of their own, e.g. "Vault:setup".
const VirtualSuffix = ":setup"

// IsVirtual reports whether id names a configuration-only step.
func IsVirtual(id string) bool {
	return strings.HasSuffix(id, VirtualSuffix)
}

// Resolved holds the records of a step's dependencies.
type Resolved map[registry.Name]*registry.Record

// Lookup returns the record for name.
func (r Resolved) Lookup(name registry.Name) (*registry.Record, bool) {
	rec, ok := r[name]
	return rec, ok
}

// Addr returns the address recorded for name, or the zero address.
func (r Resolved) Addr(name registry.Name) common.Address {
	if rec, ok := r[name]; ok {
		return rec.Address
	}
	return common.Address{}
}

// Resolve fetches the records of deps. Virtual step ids are skipped; any
// other dependency without a record fails with ErrMissingDependency.
func (d *Deployer) Resolve(ctx context.Context, deps ...string) (Resolved, error) {
	resolved := make(Resolved, len(deps))
	for _, dep := range deps {
		if IsVirtual(dep) {
			continue
		}

		name, err := registry.ParseName(dep)
		if err != nil {
			return nil, fmt.Errorf("invalid dependency %q: %w", dep, err)
		}

		rec, err := d.Record(ctx, name)
		if err != nil {
			return nil, err
		}
		resolved[name] = rec
	}
	return resolved, nil
}

package registry

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is returned when no record exists for a name on a network.
	ErrNotFound = errors.New("deployment not found")
	// ErrExists is returned by Put when the name already has a record.
	ErrExists = errors.New("deployment already recorded")
)

// Record is one deployed contract instance on one network.
type Record struct {
	Name       Name                      `json:"name"`
	Address    common.Address            `json:"address"`
	TxHash     common.Hash               `json:"txhash"`
	Deployer   common.Address            `json:"deployer"`
	Args       []string                  `json:"args,omitempty"`
	Libraries  map[string]common.Address `json:"libraries,omitempty"`
	ABIRef     string                    `json:"abi_ref,omitempty"`
	DeployedAt time.Time                 `json:"deployed_at"`

	// Newly is set only in the run that created the record.
	Newly bool `json:"-"`
}

// Store persists deployment records and completed step ids per network.
// Implementations assume a single writer per network.
type Store interface {
	// Get returns the record for name or ErrNotFound.
	Get(ctx context.Context, network string, name Name) (*Record, error)
	// Put stores rec if no record exists for rec.Name, else returns ErrExists.
	Put(ctx context.Context, network string, rec *Record) error
	// Delete clears the record for name. Clearing a missing record returns ErrNotFound.
	Delete(ctx context.Context, network string, name Name) error
	// List returns all records sorted by name.
	List(ctx context.Context, network string) ([]*Record, error)

	// StepDone reports whether a run-once step id has completed.
	StepDone(ctx context.Context, network, id string) (bool, error)
	// MarkStep records a run-once step id as completed.
	MarkStep(ctx context.Context, network, id string) error

	Close() error
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name.String() < records[j].Name.String()
	})
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	out.Args = append([]string(nil), rec.Args...)
	if rec.Libraries != nil {
		out.Libraries = make(map[string]common.Address, len(rec.Libraries))
		for k, v := range rec.Libraries {
			out.Libraries[k] = v
		}
	}
	out.Newly = false
	return &out
}

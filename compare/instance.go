// Package compare runs two implementations of the same contract side by side
// and checks that they behave identically: same outcomes, same rejections,
// same events, same views, and bounded gas overhead for the new one.
package compare

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a decoded log entry.
type Event struct {
	Name string
	Args map[string]any
}

// Result is the outcome of one transaction on one implementation.
type Result struct {
	Reverted   bool
	RevertData []byte
	GasUsed    uint64
	Events     []Event
}

// Instance is one deployed implementation.
type Instance interface {
	Address() common.Address
	// DeployGas is the gas used by the creation transaction.
	DeployGas() uint64
	// Transact sends method(args...) from the named account. A revert is
	// reported in the Result, not as an error.
	Transact(ctx context.Context, from, method string, args ...any) (*Result, error)
	// View calls a constant method and returns its decoded outputs.
	View(ctx context.Context, method string, args ...any) ([]any, error)
}

// Deployer creates fresh instances of a named artifact.
type Deployer interface {
	Deploy(ctx context.Context, artifact string, args ...any) (Instance, error)
	// Account returns the address of a named test account.
	Account(name string) common.Address
}

// Pair names the artifacts under comparison and their shared constructor arguments.
type Pair struct {
	New      string
	Original string
	Args     []any
}

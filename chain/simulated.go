package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// DefaultBalance is the genesis balance of every simulated account (1e24 wei).
var DefaultBalance = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// Simulated is an in-process chain that seals a block after every transaction.
type Simulated struct {
	backend *simulated.Backend
}

// NewSimulated starts a simulated chain funding the given keys.
func NewSimulated(keys ...*ecdsa.PrivateKey) *Simulated {
	alloc := make(types.GenesisAlloc, len(keys))
	for _, key := range keys {
		alloc[crypto.PubkeyToAddress(key.PublicKey)] = types.Account{Balance: DefaultBalance}
	}
	return &Simulated{backend: simulated.NewBackend(alloc)}
}

// Client returns a client signing with key. The key must have been funded.
func (s *Simulated) Client(ctx context.Context, key *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	opts = append(opts, WithCommit(func() { s.backend.Commit() }))
	return NewClient(ctx, s.backend.Client(), key, opts...)
}

// Balance returns the balance of addr at the latest block.
func (s *Simulated) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.backend.Client().BalanceAt(ctx, addr, nil)
}

// Close stops the simulated node.
func (s *Simulated) Close() error {
	return s.backend.Close()
}

package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/builtin"
)

// DelegatedAddress returns the f410 address that FEVM assigns to an Ethereum account.
func DelegatedAddress(addr common.Address, testnet bool) (string, error) {
	fil, err := address.NewDelegatedAddress(uint64(builtin.EthereumAddressManagerActorID), addr.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to derive delegated address for %s: %w", addr.Hex(), err)
	}
	prefix := address.MainnetPrefix
	if testnet {
		prefix = address.TestnetPrefix
	}
	return prefix + fil.String()[1:], nil
}

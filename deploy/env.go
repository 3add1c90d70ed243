package deploy

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/parthshah1/perpwizard/config"
)

// Env is handed to every deployment step.
type Env struct {
	Network  *config.Network
	Deployer *Deployer

	// Keeper operates position and order execution.
	Keeper common.Address
	// Admin administers the timelock once governance is handed over.
	Admin common.Address

	Log log.Logger
}

package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnknownNetwork is returned when the selected network has no entry in the chain table.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrMissingVariable is returned when a required setting has no value.
	ErrMissingVariable = errors.New("missing required variable")
)

// DevPrivateKey is Hardhat's account #0. It is only accepted on dev networks.
const DevPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// Config holds all configuration for perpwizard
type Config struct {
	// Network selection
	Network string
	RPC     string

	// Signer and protocol roles
	PrivateKey string
	Keeper     string
	Admin      string

	// Deployment registry, file store unless DSN is set
	DeploymentsDir string
	DeploymentsDSN string

	// Compiled contracts
	ArtifactsDir string

	// Transactions
	DefaultGasLimit uint64

	// Comparison harness
	CreationGasTolerance float64
	CallGasTolerance     float64

	// Observability
	MetricsAddr string
	Verbose     bool
	Antithesis  bool
}

// Load creates a new config from environment variables
func Load() *Config {
	return &Config{
		Network:              getEnv("DEPLOY_NETWORK", "localhost"),
		RPC:                  getEnv("DEPLOY_RPC", ""),
		PrivateKey:           getEnv("DEPLOYER_PRIVATE_KEY", ""),
		Keeper:               getEnv("KEEPER_ADDRESS", ""),
		Admin:                getEnv("ADMIN_ADDRESS", ""),
		DeploymentsDir:       getEnv("DEPLOYMENTS_DIR", "./deployments"),
		DeploymentsDSN:       getEnv("DEPLOYMENTS_DSN", ""),
		ArtifactsDir:         getEnv("ARTIFACTS_DIR", "./artifacts"),
		DefaultGasLimit:      getUint64("DEFAULT_GAS_LIMIT", 0),
		CreationGasTolerance: getFloat64("CREATION_GAS_TOLERANCE", 0.15),
		CallGasTolerance:     getFloat64("CALL_GAS_TOLERANCE", 0.01),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Verbose:              getBool("VERBOSE", false),
		Antithesis:           getBool("ANTITHESIS", false),
	}
}

// Validate resolves the selected network and fills in network defaults.
// It must run before any transaction is attempted.
func (c *Config) Validate() (*Network, error) {
	if c.Network == "" {
		return nil, fmt.Errorf("%w: DEPLOY_NETWORK", ErrMissingVariable)
	}
	network, ok := LookupNetwork(c.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownNetwork, c.Network, strings.Join(NetworkNames(), ", "))
	}

	if c.RPC == "" {
		c.RPC = network.RPC
	}
	if c.RPC == "" {
		return nil, fmt.Errorf("%w: DEPLOY_RPC (network %s has no default endpoint)", ErrMissingVariable, network.Name)
	}

	if c.PrivateKey == "" {
		if !network.Dev {
			return nil, fmt.Errorf("%w: DEPLOYER_PRIVATE_KEY (required on %s)", ErrMissingVariable, network.Name)
		}
		c.PrivateKey = DevPrivateKey
	}
	if _, err := ParsePrivateKey(c.PrivateKey); err != nil {
		return nil, fmt.Errorf("DEPLOYER_PRIVATE_KEY: %w", err)
	}

	for name, value := range map[string]string{"KEEPER_ADDRESS": c.Keeper, "ADMIN_ADDRESS": c.Admin} {
		if value != "" && !common.IsHexAddress(value) {
			return nil, fmt.Errorf("%s: invalid address %q", name, value)
		}
	}

	if c.CreationGasTolerance < 0 || c.CallGasTolerance < 0 {
		return nil, fmt.Errorf("gas tolerances must not be negative")
	}

	return network, nil
}

// Key returns the deployer key. Validate must have succeeded.
func (c *Config) Key() (*ecdsa.PrivateKey, error) {
	return ParsePrivateKey(c.PrivateKey)
}

// Deployer returns the deployer address.
func (c *Config) Deployer() (common.Address, error) {
	key, err := c.Key()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// KeeperAddress returns the keeper role address, defaulting to the deployer.
func (c *Config) KeeperAddress() (common.Address, error) {
	return c.roleOrDeployer(c.Keeper)
}

// AdminAddress returns the timelock admin address, defaulting to the deployer.
func (c *Config) AdminAddress() (common.Address, error) {
	return c.roleOrDeployer(c.Admin)
}

func (c *Config) roleOrDeployer(value string) (common.Address, error) {
	if value != "" {
		return common.HexToAddress(value), nil
	}
	return c.Deployer()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getUint64(key string, fallback uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat64(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

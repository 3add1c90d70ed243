package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/renameio/v2"
	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/config"
)

var AccountsCmd = &cli.Command{
	Name:  "accounts",
	Usage: "Manage keys for protocol roles such as keeper and admin",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Create accounts with roles",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:     "role",
					Usage:    "Role names (can specify multiple)",
					Required: true,
				},
			},
			Action: createAccounts,
		},
		{
			Name:   "list",
			Usage:  "List all accounts",
			Action: listAccounts,
		},
	},
}

// AccountInfo is one role key. Address holds the f410 delegated address on
// Filecoin networks.
type AccountInfo struct {
	EthAddress string `json:"ethAddress"`
	Address    string `json:"address,omitempty"`
	PrivateKey string `json:"privateKey"`
}

type AccountsFile struct {
	Accounts map[string]AccountInfo `json:"accounts"`
}

func accountsPath() string {
	return filepath.Join(cfg.DeploymentsDir, "accounts.json")
}

func loadAccounts(path string) (*AccountsFile, error) {
	accounts := &AccountsFile{Accounts: make(map[string]AccountInfo)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return accounts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	if err := json.Unmarshal(data, accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}
	return accounts, nil
}

func createAccounts(c *cli.Context) error {
	network, err := lookupNetwork()
	if err != nil {
		return err
	}
	path := accountsPath()
	accounts, err := loadAccounts(path)
	if err != nil {
		return err
	}

	for _, role := range c.StringSlice("role") {
		if _, exists := accounts.Accounts[role]; exists {
			fmt.Printf("Account '%s' already exists, skipping\n", role)
			continue
		}

		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to create account for role '%s': %w", role, err)
		}
		ethAddr := crypto.PubkeyToAddress(key.PublicKey)

		info := AccountInfo{
			EthAddress: ethAddr.Hex(),
			PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		}
		if network.Filecoin {
			info.Address, err = config.DelegatedAddress(ethAddr, network.Dev || network.Name == "calibnet")
			if err != nil {
				return err
			}
		}
		accounts.Accounts[role] = info

		if info.Address != "" {
			fmt.Printf("Created '%s': %s (FIL: %s)\n", role, ethAddr.Hex(), info.Address)
		} else {
			fmt.Printf("Created '%s': %s\n", role, ethAddr.Hex())
		}
	}

	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}

	fmt.Printf("\nAccounts saved to %s\n", path)
	return nil
}

func listAccounts(c *cli.Context) error {
	accounts, err := loadAccounts(accountsPath())
	if err != nil {
		return err
	}
	if len(accounts.Accounts) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	roles := make([]string, 0, len(accounts.Accounts))
	for role := range accounts.Accounts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		info := accounts.Accounts[role]
		fmt.Printf("%s:\n", role)
		fmt.Printf("  Ethereum: %s\n", info.EthAddress)
		if info.Address != "" {
			fmt.Printf("  Filecoin: %s\n", info.Address)
		}
		fmt.Printf("  PrivKey:  %s\n\n", info.PrivateKey)
	}
	return nil
}

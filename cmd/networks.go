package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/config"
)

var zeroAddr common.Address

var NetworksCmd = &cli.Command{
	Name:  "networks",
	Usage: "List the configured networks and their assets",
	Action: func(c *cli.Context) error {
		for _, name := range config.NetworkNames() {
			network, _ := config.LookupNetwork(name)

			var traits []string
			if network.Dev {
				traits = append(traits, "dev")
			}
			if network.HasOracle {
				traits = append(traits, "oracle")
			} else {
				traits = append(traits, "mock feeds")
			}
			if network.Filecoin {
				traits = append(traits, "fevm")
			}

			fmt.Printf("%s (chain %d, %s)\n", network.Name, network.ChainID, strings.Join(traits, ", "))
			fmt.Printf("   RPC: %s\n", network.RPC)
			for _, asset := range network.Assets {
				addr := "mock"
				if asset.Address != zeroAddr {
					addr = asset.Address.Hex()
				}
				fmt.Printf("   %-6s %-3d decimals  $%-8d %s\n", asset.Symbol, asset.Decimals, asset.Price, addr)
			}
			fmt.Println()
		}
		return nil
	},
}

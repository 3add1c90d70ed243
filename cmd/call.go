package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/urfave/cli/v2"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/registry"
)

var CallCmd = &cli.Command{
	Name:  "call",
	Usage: "Call a method on a deployed contract",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "Registry name or address of the contract",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "method",
			Usage:    "Method signature, e.g. 'balanceOf(address)'",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "returns",
			Usage: "Return types, e.g. 'uint256' (comma-separated)",
		},
		&cli.StringFlag{
			Name:  "args",
			Usage: "Method arguments (comma-separated)",
		},
		&cli.StringFlag{
			Name:  "types",
			Usage: "Argument types (comma-separated), defaults to the signature's",
		},
		&cli.BoolFlag{
			Name:  "transaction",
			Usage: "Send a transaction instead of a read-only call",
		},
	},
	Action: callContractMethod,
}

func callContractMethod(c *cli.Context) error {
	ctx := c.Context
	methodName := c.String("method")
	isTransaction := c.Bool("transaction")

	fn, err := w3.NewFunc(methodName, c.String("returns"))
	if err != nil {
		return fmt.Errorf("invalid method: %w", err)
	}

	args := config.SplitList(c.String("args"))
	types := config.SplitList(c.String("types"))
	if len(types) == 0 {
		for _, arg := range fn.Args {
			types = append(types, arg.Type.String())
		}
	}
	if len(args) != len(types) {
		return fmt.Errorf("number of arguments (%d) must match number of types (%d)", len(args), len(types))
	}
	convertedArgs, err := config.ConvertArguments(args, types)
	if err != nil {
		return fmt.Errorf("failed to convert arguments: %w", err)
	}

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	contract := c.String("contract")
	var addr common.Address
	if common.IsHexAddress(contract) {
		addr = common.HexToAddress(contract)
	} else {
		name, err := registry.ParseName(contract)
		if err != nil {
			return err
		}
		rec, err := s.deployer.Record(ctx, name)
		if err != nil {
			return err
		}
		addr = rec.Address
	}

	data, err := fn.EncodeArgs(convertedArgs...)
	if err != nil {
		return fmt.Errorf("failed to encode call: %w", err)
	}

	if isTransaction {
		receipt, err := s.client.Send(ctx, &addr, data)
		if err != nil {
			return fmt.Errorf("failed to send transaction: %w", err)
		}

		fmt.Printf("Transaction sent successfully!\n")
		fmt.Printf("Method: %s\n", fn.Signature)
		fmt.Printf("Transaction Hash: %s\n", receipt.TxHash.Hex())
		fmt.Printf("Block: %s\n", receipt.BlockNumber)
		fmt.Printf("Gas Used: %d\n", receipt.GasUsed)
		return nil
	}

	result, err := s.client.Call(ctx, addr, data)
	if err != nil {
		return fmt.Errorf("failed to call contract method: %w", err)
	}

	fmt.Printf("Method: %s\n", fn.Signature)
	if len(fn.Returns) == 0 {
		fmt.Printf("Result: 0x%x\n", result)
		return nil
	}
	values, err := fn.Returns.Unpack(result)
	if err != nil {
		return fmt.Errorf("failed to decode result 0x%x: %w", result, err)
	}
	for i, v := range values {
		fmt.Printf("Result[%d] (%s): %v\n", i, fn.Returns[i].Type, v)
	}
	return nil
}

package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SplitList splits a comma-separated flag value and trims each entry.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// ConvertArguments converts string arguments into ABI values according to types.
func ConvertArguments(args, types []string) ([]any, error) {
	if len(args) != len(types) {
		return nil, fmt.Errorf("number of arguments (%d) must match number of types (%d)", len(args), len(types))
	}

	converted := make([]any, len(args))
	for i, arg := range args {
		convertedArg, err := ConvertArgument(arg, types[i])
		if err != nil {
			return nil, fmt.Errorf("failed to convert argument %d (%s): %w", i, arg, err)
		}
		converted[i] = convertedArg
	}

	return converted, nil
}

// ConvertArgument converts a single argument. Arrays of addresses use '|' as separator.
func ConvertArgument(arg, argType string) (any, error) {
	switch argType {
	case "address":
		if !common.IsHexAddress(arg) {
			return nil, fmt.Errorf("invalid address: %s", arg)
		}
		return common.HexToAddress(arg), nil
	case "address[]":
		var addrs []common.Address
		for _, part := range strings.Split(arg, "|") {
			if part == "" {
				continue
			}
			if !common.IsHexAddress(part) {
				return nil, fmt.Errorf("invalid address: %s", part)
			}
			addrs = append(addrs, common.HexToAddress(part))
		}
		return addrs, nil
	case "uint256", "uint", "int256", "int":
		value, ok := new(big.Int).SetString(arg, 0)
		if !ok {
			return nil, fmt.Errorf("invalid %s value: %s", argType, arg)
		}
		if strings.HasPrefix(argType, "uint") && value.Sign() < 0 {
			return nil, fmt.Errorf("negative %s value: %s", argType, arg)
		}
		return value, nil
	case "uint8":
		value, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid uint8 value: %s", arg)
		}
		return uint8(value), nil
	case "bool":
		return strconv.ParseBool(arg)
	case "string":
		return arg, nil
	case "bytes":
		return hexutil.Decode(arg)
	default:
		return nil, fmt.Errorf("unsupported type: %s", argType)
	}
}

// ParsePrivateKey parses a hex secp256k1 key, 0x prefix optional.
func ParsePrivateKey(privateKeyStr string) (*ecdsa.PrivateKey, error) {
	privateKeyStr = strings.TrimPrefix(privateKeyStr, "0x")

	privateKeyBytes, err := hex.DecodeString(privateKeyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid hex format: %w", err)
	}

	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: got %d bytes, want 32 bytes (secp256k1)", len(privateKeyBytes))
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return privateKey, nil
}

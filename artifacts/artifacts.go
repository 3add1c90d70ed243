// Package artifacts loads compiled contract artifacts in the Hardhat JSON
// layout and links external library references into their creation code.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrNotFound is returned when no artifact file matches a contract name.
	ErrNotFound = errors.New("artifact not found")
	// ErrUnlinkedLibrary is returned when creation code references a library
	// that has no address.
	ErrUnlinkedLibrary = errors.New("unlinked library")
	// ErrNoBytecode is returned for abstract contracts and interfaces.
	ErrNoBytecode = errors.New("artifact has no creation bytecode")
)

// Offset locates one library placeholder inside the creation code, in bytes.
type Offset struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Artifact is one compiled contract.
type Artifact struct {
	ContractName string
	SourceName   string
	ABI          abi.ABI
	// LinkReferences maps source file -> library name -> placeholder offsets.
	LinkReferences map[string]map[string][]Offset

	bytecode         string
	deployedBytecode string
}

type artifactJSON struct {
	ContractName     string                         `json:"contractName"`
	SourceName       string                         `json:"sourceName"`
	ABI              json.RawMessage                `json:"abi"`
	Bytecode         string                         `json:"bytecode"`
	DeployedBytecode string                         `json:"deployedBytecode"`
	LinkReferences   map[string]map[string][]Offset `json:"linkReferences"`
}

// Parse decodes a Hardhat artifact file.
func Parse(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", raw.ContractName, err)
	}

	return &Artifact{
		ContractName:     raw.ContractName,
		SourceName:       raw.SourceName,
		ABI:              parsedABI,
		LinkReferences:   raw.LinkReferences,
		bytecode:         strings.TrimPrefix(raw.Bytecode, "0x"),
		deployedBytecode: strings.TrimPrefix(raw.DeployedBytecode, "0x"),
	}, nil
}

// New builds an artifact from an ABI definition and hex creation code.
func New(name, abiJSON, bytecode string) (*Artifact, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", name, err)
	}
	return &Artifact{
		ContractName: name,
		ABI:          parsedABI,
		bytecode:     strings.TrimPrefix(bytecode, "0x"),
	}, nil
}

// Libraries lists the library names the creation code must be linked against.
func (a *Artifact) Libraries() []string {
	seen := make(map[string]bool)
	var names []string
	for _, libs := range a.LinkReferences {
		for name := range libs {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// DeployedCode returns the runtime code recorded in the artifact, or nil if
// it still contains library placeholders.
func (a *Artifact) DeployedCode() []byte {
	code, err := hexutil.Decode("0x" + a.deployedBytecode)
	if err != nil {
		return nil
	}
	return code
}

// Link returns the creation code with every library placeholder replaced.
// Libraries are looked up by plain name or by "source:name".
func (a *Artifact) Link(libs map[string]common.Address) ([]byte, error) {
	if a.bytecode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, a.ContractName)
	}

	code := []byte(a.bytecode)
	for source, refs := range a.LinkReferences {
		for lib, offsets := range refs {
			addr, ok := libs[lib]
			if !ok {
				addr, ok = libs[source+":"+lib]
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s requires %s (%s)", ErrUnlinkedLibrary, a.ContractName, lib, source)
			}

			hexAddr := strings.ToLower(addr.Hex()[2:])
			for _, off := range offsets {
				start, end := off.Start*2, (off.Start+off.Length)*2
				if off.Length != common.AddressLength || end > len(code) {
					return nil, fmt.Errorf("invalid link reference for %s in %s at %d", lib, a.ContractName, off.Start)
				}
				copy(code[start:end], hexAddr)
			}
		}
	}

	linked, err := hexutil.Decode("0x" + string(code))
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode of %s: %w", a.ContractName, err)
	}
	return linked, nil
}

// DeployData links the creation code and appends the packed constructor arguments.
func (a *Artifact) DeployData(libs map[string]common.Address, args ...any) ([]byte, error) {
	code, err := a.Link(libs)
	if err != nil {
		return nil, err
	}

	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor arguments of %s: %w", a.ContractName, err)
	}
	return append(code, packed...), nil
}

package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"
)

var (
	errFakeRevert = errors.New("execution reverted")

	funcTestInitialize = w3.MustNewFunc("initialize(address,uint256)", "")
)

// fakeContract models the handful of getters and setters the tests touch.
type fakeContract struct {
	code        []byte
	initialized bool
	handlers    map[common.Address]bool
	gov         common.Address
	lastDist    *big.Int
	funding     [3]*big.Int
	answer      *big.Int
}

// fakeChain dispatches calls by selector to in-memory contracts.
type fakeChain struct {
	mu        sync.Mutex
	from      common.Address
	contracts map[common.Address]*fakeContract
	nonce     uint64
	sends     []string

	// failures counts down per selector; a positive value reverts the next send
	failures   map[[4]byte]int
	failDeploy bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		from:      common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		contracts: make(map[common.Address]*fakeContract),
		failures:  make(map[[4]byte]int),
	}
}

func (c *fakeChain) From() common.Address { return c.from }

func (c *fakeChain) failNext(fn *w3.Func, times int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[fn.Selector] = times
}

func (c *fakeChain) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func (c *fakeChain) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	contract, ok := c.contracts[to]
	if !ok || len(data) < 4 {
		return nil, fmt.Errorf("no contract at %s", to)
	}

	switch sel := [4]byte(data[:4]); sel {
	case funcIsInitialized.Selector:
		return funcIsInitialized.EncodeReturns(contract.initialized)
	case funcIsHandler.Selector:
		var target common.Address
		if err := funcIsHandler.DecodeArgs(data, &target); err != nil {
			return nil, err
		}
		return funcIsHandler.EncodeReturns(contract.handlers[target])
	case funcGov.Selector:
		return funcGov.EncodeReturns(contract.gov)
	case funcLastDistributionTime.Selector:
		return funcLastDistributionTime.EncodeReturns(contract.lastDist)
	case funcFundingInterval.Selector:
		return funcFundingInterval.EncodeReturns(contract.funding[0])
	case funcFundingRateFactor.Selector:
		return funcFundingRateFactor.EncodeReturns(contract.funding[1])
	case funcStableFundingRateFactor.Selector:
		return funcStableFundingRateFactor.EncodeReturns(contract.funding[2])
	case funcLatestAnswer.Selector:
		return funcLatestAnswer.EncodeReturns(contract.answer)
	default:
		return nil, fmt.Errorf("%w: unknown selector %x", errFakeRevert, sel)
	}
}

func (c *fakeChain) Send(_ context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	receipt := &types.Receipt{
		Status:  types.ReceiptStatusSuccessful,
		TxHash:  common.BigToHash(new(big.Int).SetUint64(c.nonce)),
		GasUsed: 21000,
	}

	if to == nil {
		if c.failDeploy {
			return nil, fmt.Errorf("%w: constructor", errFakeRevert)
		}
		addr := crypto.CreateAddress(c.from, c.nonce)
		c.contracts[addr] = &fakeContract{
			code:     data,
			handlers: make(map[common.Address]bool),
			lastDist: new(big.Int),
			funding:  [3]*big.Int{new(big.Int), new(big.Int), new(big.Int)},
			answer:   new(big.Int),
		}
		c.sends = append(c.sends, "create")
		receipt.ContractAddress = addr
		return receipt, nil
	}

	contract, ok := c.contracts[*to]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", to)
	}

	sel := [4]byte(data[:4])
	if c.failures[sel] > 0 {
		c.failures[sel]--
		return nil, fmt.Errorf("%w: injected failure", errFakeRevert)
	}

	var err error
	switch sel {
	case funcTestInitialize.Selector:
		if contract.initialized {
			return nil, fmt.Errorf("%w: already initialized", errFakeRevert)
		}
		contract.initialized = true
	case funcSetHandler.Selector:
		var (
			target common.Address
			active bool
		)
		err = funcSetHandler.DecodeArgs(data, &target, &active)
		contract.handlers[target] = active
	case funcSetGov.Selector:
		err = funcSetGov.DecodeArgs(data, &contract.gov)
	case funcUpdateLastDistributionTime.Selector:
		contract.lastDist = big.NewInt(1700000000)
	case funcSetFundingRate.Selector:
		err = funcSetFundingRate.DecodeArgs(data, &contract.funding[0], &contract.funding[1], &contract.funding[2])
	case funcSetLatestAnswer.Selector:
		err = funcSetLatestAnswer.DecodeArgs(data, &contract.answer)
	default:
		return nil, fmt.Errorf("%w: unknown selector %x", errFakeRevert, sel)
	}
	if err != nil {
		return nil, err
	}

	c.sends = append(c.sends, fmt.Sprintf("%x", sel))
	return receipt, nil
}

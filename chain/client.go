// Package chain sends signed transactions and read-only calls over the
// Ethereum JSON-RPC surface, waiting for every transaction to be mined.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrReverted is matched by every error caused by an EVM revert, whether it
// was detected during gas estimation, an eth_call or a mined receipt.
var ErrReverted = errors.New("execution reverted")

// RevertError carries the raw revert data returned by the node.
type RevertError struct {
	Data []byte
	Err  error
}

func (e *RevertError) Error() string {
	if len(e.Data) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (data %s)", e.Err, hexutil.Encode(e.Data))
}

func (e *RevertError) Unwrap() []error {
	return []error{ErrReverted, e.Err}
}

// Backend is the node surface the client needs. Both ethclient.Client and
// the simulated backend's client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Option configures a Client.
type Option func(*Client)

// WithGasLimit uses a fixed gas limit instead of estimating each transaction.
func WithGasLimit(limit uint64) Option {
	return func(c *Client) { c.gasLimit = limit }
}

// WithCommit registers a hook run right after each transaction is submitted.
// The simulated backend uses it to seal a block.
func WithCommit(commit func()) Option {
	return func(c *Client) { c.commit = commit }
}

// WithLogger sets the logger used for transaction tracing.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// Client signs with one key and sends legacy EIP-155 transactions.
type Client struct {
	backend  Backend
	closer   func()
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	commit   func()
	log      log.Logger
}

// Dial connects to rpcURL and returns a client signing with key.
func Dial(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	c, err := NewClient(ctx, ec, key, opts...)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	c := &Client{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		log:     log.Root(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithKey returns a client on the same backend signing with key.
func (c *Client) WithKey(key *ecdsa.PrivateKey) *Client {
	out := *c
	out.key = key
	out.from = crypto.PubkeyToAddress(key.PublicKey)
	out.closer = nil
	return &out
}

// From returns the signer address.
func (c *Client) From() common.Address {
	return c.from
}

// ChainID returns the chain id read at construction.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Backend exposes the underlying node connection.
func (c *Client) Backend() Backend {
	return c.backend
}

// Call runs a read-only call from the signer address against the latest state.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, wrapRevert(err)
	}
	return out, nil
}

// CodeAt returns the runtime code at addr.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.backend.CodeAt(ctx, addr, nil)
}

// Send signs and submits a transaction to `to`, or a contract creation when
// to is nil, and waits for it to be mined. A failed receipt is returned
// together with an error matching ErrReverted.
func (c *Client) Send(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := c.gasLimit
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From: c.from,
			To:   to,
			Data: data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", wrapRevert(err))
		}
	}

	var tx *types.Transaction
	if to == nil {
		tx = types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	} else {
		tx = types.NewTransaction(nonce, *to, big.NewInt(0), gasLimit, gasPrice, data)
	}

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.log.Debug("Transaction sent", "hash", signedTx.Hash(), "nonce", nonce, "gas", gasLimit)

	if c.commit != nil {
		c.commit()
	}

	receipt, err := bind.WaitMined(ctx, c.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	c.log.Debug("Transaction mined", "hash", signedTx.Hash(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: transaction %s failed in block %v", ErrReverted, signedTx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}

// Close releases the node connection if the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func wrapRevert(err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := decodeErrorData(dataErr.ErrorData()); ok {
			return &RevertError{Data: data, Err: err}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return &RevertError{Err: err}
	}
	return err
}

func decodeErrorData(v any) ([]byte, bool) {
	switch data := v.(type) {
	case string:
		decoded, err := hexutil.Decode(data)
		if err != nil {
			return nil, false
		}
		return decoded, true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}

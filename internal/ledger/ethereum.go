package ledger

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

//go:embed contract.abi.json
var contractABI string

// DefaultTimeout bounds a submission when none is configured.
const DefaultTimeout = 60 * time.Second

// Backend is the chain access needed to transact and wait for receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EthereumClient talks to the contract over JSON-RPC.
type EthereumClient struct {
	backend  Backend
	contract *bind.BoundContract
	abi      abi.ABI
	chainID  *big.Int
	timeout  time.Duration
	closer   func()
}

// Dial connects to rpcURL and binds the contract at contractAddress.
func Dial(ctx context.Context, rpcURL, contractAddress string, chainID int64, timeout time.Duration) (*EthereumClient, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger rpc: %w", err)
	}
	c, err := NewEthereumClient(rpc, common.HexToAddress(contractAddress), big.NewInt(chainID), timeout)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closer = rpc.Close
	return c, nil
}

// NewEthereumClient binds the contract at address on backend.
func NewEthereumClient(backend Backend, address common.Address, chainID *big.Int, timeout time.Duration) (*EthereumClient, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &EthereumClient{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		abi:      parsed,
		chainID:  chainID,
		timeout:  timeout,
	}, nil
}

// ParseABI returns the contract ABI.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract abi: %w", err)
	}
	return parsed, nil
}

// SignAndSubmit signs call with key, broadcasts it and waits until it is mined.
func (c *EthereumClient) SignAndSubmit(ctx context.Context, key *ecdsa.PrivateKey, call Call) (Receipt, error) {
	if _, ok := c.abi.Methods[string(call.Action)]; !ok {
		return Receipt{}, &Error{Action: call.Action, Err: fmt.Errorf("unknown contract method")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return Receipt{}, &Error{Action: call.Action, Err: err}
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, string(call.Action), call.Args...)
	if err != nil {
		return Receipt{}, &Error{Action: call.Action, Err: err}
	}
	hash := tx.Hash().Hex()

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return Receipt{}, &Error{Action: call.Action, TxHash: hash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, &Error{Action: call.Action, TxHash: hash, Err: ErrReverted}
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return Receipt{TxHash: hash, BlockNumber: block, GasUsed: receipt.GasUsed}, nil
}

// IsVerified reads the verification flag of address from the contract.
func (c *EthereumClient) IsVerified(ctx context.Context, address string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isVerified", common.HexToAddress(address))
	if err != nil {
		return false, &Error{Action: "isVerified", Err: err}
	}
	if len(out) != 1 {
		return false, &Error{Action: "isVerified", Err: fmt.Errorf("unexpected result count %d", len(out))}
	}
	verified, ok := out[0].(bool)
	if !ok {
		return false, &Error{Action: "isVerified", Err: fmt.Errorf("unexpected result type %T", out[0])}
	}
	return verified, nil
}

// Close releases the RPC connection when the client was created by Dial.
func (c *EthereumClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

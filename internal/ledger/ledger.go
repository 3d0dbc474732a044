// Package ledger submits signed calls to the traceability smart contract.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "farmtrace/internal/errors"
)

// Quantities are sent in grams and prices in cents.
const (
	QuantityScale = 3
	PriceScale    = 2
)

// ErrLedgerDisabled is returned by clients with no contract configured.
var ErrLedgerDisabled = fmt.Errorf("%w: ledger disabled", apperrors.ErrLedger)

// Action is a contract method name.
type Action string

const (
	ActionRegisterUser  Action = "registerUser"
	ActionVerifyUser    Action = "verifyUser"
	ActionCreateBatch   Action = "createBatch"
	ActionTransferBatch Action = "transferBatch"
)

// Call is one contract invocation.
type Call struct {
	Action Action
	Args   []any
}

// Receipt is the confirmation of a mined transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// Client signs and submits contract calls. SignAndSubmit blocks until the
// transaction is mined or fails.
type Client interface {
	SignAndSubmit(ctx context.Context, key *ecdsa.PrivateKey, call Call) (Receipt, error)
	IsVerified(ctx context.Context, address string) (bool, error)
}

// Error describes a failed or reverted contract call.
type Error struct {
	Action Action
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger %s (tx %s): %v", e.Action, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger %s: %v", e.Action, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match apperrors.ErrLedger.
func (e *Error) Is(target error) bool {
	return target == apperrors.ErrLedger
}

// ErrReverted is wrapped by Error when a mined transaction has failed status.
var ErrReverted = errors.New("transaction reverted")

// RegisterUser announces the signer's wallet with its role code.
func RegisterUser(role uint8) Call {
	return Call{Action: ActionRegisterUser, Args: []any{role}}
}

// VerifyUser marks address as verified. Only the contract operator may send it.
func VerifyUser(address string) Call {
	return Call{Action: ActionVerifyUser, Args: []any{common.HexToAddress(address)}}
}

// CreateBatch registers a new batch owned by the signer.
func CreateBatch(id uuid.UUID, produceType string, quantity decimal.Decimal) Call {
	return Call{
		Action: ActionCreateBatch,
		Args:   []any{BatchKey(id), produceType, Units(quantity, QuantityScale)},
	}
}

// TransferBatch moves custody of a batch from the signer to the given address.
func TransferBatch(id uuid.UUID, to string, status uint8, quantity, price decimal.Decimal) Call {
	return Call{
		Action: ActionTransferBatch,
		Args: []any{
			BatchKey(id),
			common.HexToAddress(to),
			status,
			Units(quantity, QuantityScale),
			Units(price, PriceScale),
		},
	}
}

// BatchKey is the contract identifier of a batch: its UUID left padded to 32 bytes.
func BatchKey(id uuid.UUID) [32]byte {
	var key [32]byte
	copy(key[16:], id[:])
	return key
}

// BatchKeyHex renders BatchKey as 0x-prefixed hex.
func BatchKeyHex(id uuid.UUID) string {
	key := BatchKey(id)
	return hexutil.Encode(key[:])
}

// Units converts d into an integer of the given decimal scale, truncating
// anything finer. Negative values become zero.
func Units(d decimal.Decimal, scale int32) *big.Int {
	if d.IsNegative() {
		return new(big.Int)
	}
	return d.Shift(scale).Truncate(0).BigInt()
}

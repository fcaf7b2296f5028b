// Package chain is the gateway to the chain indexer: UTxO listing,
// protocol parameters and transaction submission. Every ClientI method is
// scoped to its one call and bounded by a caller-supplied deadline.
package chain

import (
	"context"

	"github.com/torrejonv/multisig-coordinator/model"
)

// ProtocolParams is the subset of chain parameters the builder needs.
// Deposit and size fields ride along for parameter display; the fee fields
// are the ones arithmetic depends on.
type ProtocolParams struct {
	MinFeeA          uint64 `json:"min_fee_a"`
	MinFeeB          uint64 `json:"min_fee_b"`
	PoolDeposit      uint64 `json:"pool_deposit"`
	KeyDeposit       uint64 `json:"key_deposit"`
	MaxValSize       uint64 `json:"max_val_size"`
	MaxTxSize        uint64 `json:"max_tx_size"`
	CoinsPerUTxOSize uint64 `json:"coins_per_utxo_size"`
}

// ClientI is the chain gateway contract. Implementations must treat each
// method as one scoped network request and release the underlying
// connection on every exit path.
type ClientI interface {
	// UTXOs returns all unspent outputs at a bech32 address. The returned
	// order is whatever the indexer produced for this one call; callers
	// must not re-fetch mid-build.
	UTXOs(ctx context.Context, address string) ([]*model.UTxO, error)

	// ProtocolParameters fetches the current chain parameters.
	ProtocolParameters(ctx context.Context) (*ProtocolParams, error)

	// SubmitTx submits a serialized transaction and returns its hash on
	// acceptance. Rejection surfaces as ERR_SUBMIT_REJECTED with the
	// node's diagnostic attached.
	SubmitTx(ctx context.Context, rawTx []byte) (string, error)

	// Health reports whether the indexer is reachable.
	Health(ctx context.Context) error
}

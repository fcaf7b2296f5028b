package txbuilder

import (
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/services/chain"
)

// witnessSizeEstimate is the conservative serialized size of one key
// witness (vkey + signature + cbor framing). The real size is ~100 bytes;
// 300 keeps the declared fee above the post-witness minimum even if the
// final assembly framing grows.
const witnessSizeEstimate = 300

// MinFee is the chain's size-linear fee floor: a*size + b.
func MinFee(txSize int, params *chain.ProtocolParams) (uint64, error) {
	size, err := safeconversion.IntToUint64(txSize)
	if err != nil {
		return 0, errors.New(errors.ERR_ERROR, "transaction size underflow", err)
	}

	return params.MinFeeA*size + params.MinFeeB, nil
}

// WitnessFeeBuffer is the fee headroom reserved for the m key witnesses
// that will be appended after the body is finalized.
func WitnessFeeBuffer(params *chain.ProtocolParams, mRequired uint32) uint64 {
	return params.MinFeeA * witnessSizeEstimate * uint64(mRequired)
}

// bufferedMinFee is the declared-fee policy: the size-linear minimum of the
// serialized unsigned transaction plus the witness buffer.
func bufferedMinFee(unsignedTxSize int, params *chain.ProtocolParams, mRequired uint32) (uint64, error) {
	minFee, err := MinFee(unsignedTxSize, params)
	if err != nil {
		return 0, err
	}

	return minFee + WitnessFeeBuffer(params, mRequired), nil
}

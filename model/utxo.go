package model

import (
	"encoding/hex"

	"github.com/torrejonv/multisig-coordinator/errors"
)

// TxHashSize is the byte length of a transaction hash.
const TxHashSize = 32

// UTxO is one unspent output at the controlled script address.
type UTxO struct {
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	Value       *Value `json:"-"`
}

// NewUTxO validates the tx hash and wraps the parts into a UTxO.
func NewUTxO(txHash string, index uint32, value *Value) (*UTxO, error) {
	b, err := hex.DecodeString(txHash)
	if err != nil || len(b) != TxHashSize {
		return nil, errors.NewInvalidAddressError("tx hash %q is not %d hex bytes", txHash, TxHashSize)
	}

	return &UTxO{
		TxHash:      txHash,
		OutputIndex: index,
		Value:       value,
	}, nil
}

// TxHashBytes returns the raw transaction hash.
func (u *UTxO) TxHashBytes() []byte {
	b, _ := hex.DecodeString(u.TxHash)
	return b
}

// SumUTxOs adds up the values of a UTxO slice.
func SumUTxOs(utxos []*UTxO) *Value {
	total := NewValue(0)
	for _, u := range utxos {
		total = total.Add(u.Value)
	}

	return total
}

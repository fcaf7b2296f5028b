// Package txbuilder holds the transaction wire primitives and the
// unsigned-body builder. The CBOR layout follows the chain's standard
// encoding: integer-keyed body map, integer-keyed witness-set map, and the
// four-element transaction tuple.
package txbuilder

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
)

// BodyHashSize is the byte length of a transaction body hash.
const BodyHashSize = 32

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}

	if cborDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// TxInput is one transaction input: (tx hash, output index).
type TxInput struct {
	_      struct{} `cbor:",toarray"`
	TxHash []byte
	Index  uint32
}

// TxOutput pairs a raw address with a value. The value encodes as a bare
// coin when no assets are present, or as [coin, multiasset] otherwise.
type TxOutput struct {
	Address []byte
	Value   *model.Value
}

// MarshalCBOR implements cbor.Marshaler.
func (o *TxOutput) MarshalCBOR() ([]byte, error) {
	if !o.Value.HasAssets() {
		return cborEnc.Marshal([]interface{}{o.Address, o.Value.Coin})
	}

	return cborEnc.Marshal([]interface{}{o.Address, []interface{}{o.Value.Coin, multiAssetFromValue(o.Value)}})
}

// UnmarshalCBOR implements cbor.Unmarshaler, accepting both value shapes.
func (o *TxOutput) UnmarshalCBOR(data []byte) error {
	var items []cbor.RawMessage
	if err := cborDec.Unmarshal(data, &items); err != nil {
		return errors.NewInvalidWitnessCborError("output is not a cbor array", err)
	}

	if len(items) < 2 {
		return errors.NewInvalidWitnessCborError("output has %d elements, want at least 2", len(items))
	}

	if err := cborDec.Unmarshal(items[0], &o.Address); err != nil {
		return errors.NewInvalidWitnessCborError("output address is not a byte string", err)
	}

	var coin uint64
	if err := cborDec.Unmarshal(items[1], &coin); err == nil {
		o.Value = model.NewValue(coin)
		return nil
	}

	var pair []cbor.RawMessage
	if err := cborDec.Unmarshal(items[1], &pair); err != nil || len(pair) != 2 {
		return errors.NewInvalidWitnessCborError("output value is neither a coin nor a [coin, multiasset] pair")
	}

	if err := cborDec.Unmarshal(pair[0], &coin); err != nil {
		return errors.NewInvalidWitnessCborError("output coin is not an unsigned integer", err)
	}

	var assets multiAsset
	if err := cborDec.Unmarshal(pair[1], &assets); err != nil {
		return errors.NewInvalidWitnessCborError("output multiasset map is malformed", err)
	}

	o.Value = valueFromMultiAsset(coin, assets)

	return nil
}

type multiAsset map[cbor.ByteString]map[cbor.ByteString]uint64

func multiAssetFromValue(v *model.Value) multiAsset {
	out := make(multiAsset, len(v.Assets))

	for policy, names := range v.Assets {
		pb, _ := hex.DecodeString(policy)
		inner := make(map[cbor.ByteString]uint64, len(names))

		for name, qty := range names {
			nb, _ := hex.DecodeString(name)
			inner[cbor.ByteString(nb)] = qty
		}

		out[cbor.ByteString(pb)] = inner
	}

	return out
}

func valueFromMultiAsset(coin uint64, assets multiAsset) *model.Value {
	v := model.NewValue(coin)

	for policy, names := range assets {
		ph := hex.EncodeToString([]byte(policy))
		for name, qty := range names {
			if qty == 0 {
				continue
			}

			if v.Assets[ph] == nil {
				v.Assets[ph] = map[string]uint64{}
			}

			v.Assets[ph][hex.EncodeToString([]byte(name))] = qty
		}
	}

	return v
}

// TxBody is the transaction body map. TTL is only emitted when the
// controlling script carries an expiry.
type TxBody struct {
	Inputs          []*TxInput  `cbor:"0,keyasint"`
	Outputs         []*TxOutput `cbor:"1,keyasint"`
	Fee             uint64      `cbor:"2,keyasint"`
	TTL             uint64      `cbor:"3,keyasint,omitempty"`
	RequiredSigners [][]byte    `cbor:"14,keyasint,omitempty"`
}

// Bytes serializes the body deterministically.
func (b *TxBody) Bytes() ([]byte, error) {
	data, err := cborEnc.Marshal(b)
	if err != nil {
		return nil, errors.New(errors.ERR_ERROR, "body serialization failed", err)
	}

	return data, nil
}

// Hash computes the body hash, which doubles as the session id.
func (b *TxBody) Hash() ([]byte, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	return HashBodyBytes(data)
}

// HashBodyBytes hashes already-serialized body bytes: blake2b-256.
func HashBodyBytes(body []byte) ([]byte, error) {
	h, err := blake2b.New(BodyHashSize, nil)
	if err != nil {
		return nil, errors.New(errors.ERR_ERROR, "blake2b init failed", err)
	}

	if _, err = h.Write(body); err != nil {
		return nil, errors.New(errors.ERR_ERROR, "blake2b write failed", err)
	}

	return h.Sum(nil), nil
}

// VkeyWitness is one key witness: (verification key, signature over the
// body hash).
type VkeyWitness struct {
	_         struct{} `cbor:",toarray"`
	Vkey      []byte
	Signature []byte
}

// KeyHash returns the witness's signer identity.
func (w *VkeyWitness) KeyHash() (model.KeyHash, error) {
	return model.HashVerificationKey(w.Vkey)
}

// WitnessSet is the integer-keyed witness container.
type WitnessSet struct {
	VkeyWitnesses []*VkeyWitness         `cbor:"0,keyasint,omitempty"`
	NativeScripts []*nativescript.Script `cbor:"1,keyasint,omitempty"`
}

// Bytes serializes the witness set.
func (ws *WitnessSet) Bytes() ([]byte, error) {
	data, err := cborEnc.Marshal(ws)
	if err != nil {
		return nil, errors.New(errors.ERR_ERROR, "witness set serialization failed", err)
	}

	return data, nil
}

// ParseWitnessSet decodes a serialized witness set.
func ParseWitnessSet(data []byte) (*WitnessSet, error) {
	var ws WitnessSet
	if err := cborDec.Unmarshal(data, &ws); err != nil {
		return nil, errors.NewInvalidWitnessCborError("witness set cbor is malformed", err)
	}

	return &ws, nil
}

// Tx is the four-element transaction tuple: body, witness set, validity
// flag, auxiliary data (always null here; the coordinator attaches no
// metadata).
type Tx struct {
	_             struct{} `cbor:",toarray"`
	Body          *TxBody
	WitnessSet    *WitnessSet
	IsValid       bool
	AuxiliaryData interface{}
}

// NewUnsignedTx wraps a body and the controlling script into the unsigned
// transaction signers receive.
func NewUnsignedTx(body *TxBody, script *nativescript.Script) *Tx {
	return &Tx{
		Body:       body,
		WitnessSet: &WitnessSet{NativeScripts: []*nativescript.Script{script}},
		IsValid:    true,
	}
}

// Bytes serializes the transaction.
func (t *Tx) Bytes() ([]byte, error) {
	data, err := cborEnc.Marshal(t)
	if err != nil {
		return nil, errors.New(errors.ERR_ERROR, "transaction serialization failed", err)
	}

	return data, nil
}

// ParseTx decodes a serialized transaction.
func ParseTx(data []byte) (*Tx, error) {
	var tx Tx
	if err := cborDec.Unmarshal(data, &tx); err != nil {
		return nil, errors.NewInvalidWitnessCborError("transaction cbor is malformed", err)
	}

	return &tx, nil
}

// Package nativescript parses, serializes and analyzes the chain's native
// multisig/timelock script trees. A script tree is a directed acyclic sum
// type; a single recursive walk is all the analysis ever needed.
package nativescript

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
)

// Script node kinds, matching the on-chain CBOR tags.
const (
	KindPubkey           uint64 = 0
	KindAll              uint64 = 1
	KindAny              uint64 = 2
	KindAtLeast          uint64 = 3
	KindInvalidBefore    uint64 = 4
	KindInvalidHereafter uint64 = 5
)

// ScriptHashSize is the byte length of a script hash.
const ScriptHashSize = 28

// scriptHashPrefix tags the hashed preimage as a native (not Plutus) script.
const scriptHashPrefix = 0x00

// Script is one node of a native script tree.
//
// Exactly the fields relevant to Kind are set: KeyHash for Pubkey, Scripts
// for All/Any/AtLeast, N for AtLeast, Slot for the timelock kinds. Unknown
// kinds keep their raw CBOR so they round-trip byte-exact.
type Script struct {
	Kind    uint64
	KeyHash []byte
	Scripts []*Script
	N       uint64
	Slot    uint64
	raw     cbor.RawMessage
}

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

// Parse decodes the standard binary form of a native script tree.
func Parse(scriptBytes []byte) (*Script, error) {
	var items []cbor.RawMessage
	if err := cborDec.Unmarshal(scriptBytes, &items); err != nil {
		return nil, errors.NewInvalidScriptError("script is not a cbor array", err)
	}

	if len(items) == 0 {
		return nil, errors.NewInvalidScriptError("script node is an empty array")
	}

	var kind uint64
	if err := cborDec.Unmarshal(items[0], &kind); err != nil {
		return nil, errors.NewInvalidScriptError("script node tag is not an unsigned integer", err)
	}

	s := &Script{Kind: kind}

	switch kind {
	case KindPubkey:
		if len(items) != 2 {
			return nil, errors.NewInvalidScriptError("pubkey node must have 2 elements, got %d", len(items))
		}

		if err := cborDec.Unmarshal(items[1], &s.KeyHash); err != nil {
			return nil, errors.NewInvalidScriptError("pubkey node hash is not a byte string", err)
		}

		if len(s.KeyHash) != model.KeyHashSize {
			return nil, errors.NewInvalidScriptError("pubkey hash must be %d bytes, got %d", model.KeyHashSize, len(s.KeyHash))
		}

	case KindAll, KindAny:
		if len(items) != 2 {
			return nil, errors.NewInvalidScriptError("combinator node must have 2 elements, got %d", len(items))
		}

		subs, err := parseSubScripts(items[1])
		if err != nil {
			return nil, err
		}

		s.Scripts = subs

	case KindAtLeast:
		if len(items) != 3 {
			return nil, errors.NewInvalidScriptError("at-least node must have 3 elements, got %d", len(items))
		}

		if err := cborDec.Unmarshal(items[1], &s.N); err != nil {
			return nil, errors.NewInvalidScriptError("at-least threshold is not an unsigned integer", err)
		}

		subs, err := parseSubScripts(items[2])
		if err != nil {
			return nil, err
		}

		s.Scripts = subs

	case KindInvalidBefore, KindInvalidHereafter:
		if len(items) != 2 {
			return nil, errors.NewInvalidScriptError("timelock node must have 2 elements, got %d", len(items))
		}

		if err := cborDec.Unmarshal(items[1], &s.Slot); err != nil {
			return nil, errors.NewInvalidScriptError("timelock slot is not an unsigned integer", err)
		}

	default:
		// keep unknown nodes opaque; they round-trip and stay inert
		s.raw = append(cbor.RawMessage(nil), scriptBytes...)
	}

	return s, nil
}

// ParseHex decodes a hex-encoded script.
func ParseHex(scriptHex string) (*Script, error) {
	b, err := hex.DecodeString(scriptHex)
	if err != nil {
		return nil, errors.NewInvalidScriptError("script hex is malformed", err)
	}

	return Parse(b)
}

func parseSubScripts(raw cbor.RawMessage) ([]*Script, error) {
	var items []cbor.RawMessage
	if err := cborDec.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewInvalidScriptError("sub-script list is not a cbor array", err)
	}

	subs := make([]*Script, 0, len(items))

	for _, item := range items {
		sub, err := Parse(item)
		if err != nil {
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

// Bytes re-serializes the script into its standard binary form. Parse and
// Bytes round-trip for every well-formed tree.
func (s *Script) Bytes() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}

	var node []interface{}

	switch s.Kind {
	case KindPubkey:
		node = []interface{}{s.Kind, s.KeyHash}

	case KindAll, KindAny:
		subs, err := s.subBytes()
		if err != nil {
			return nil, err
		}

		node = []interface{}{s.Kind, subs}

	case KindAtLeast:
		subs, err := s.subBytes()
		if err != nil {
			return nil, err
		}

		node = []interface{}{s.Kind, s.N, subs}

	case KindInvalidBefore, KindInvalidHereafter:
		node = []interface{}{s.Kind, s.Slot}

	default:
		return nil, errors.NewInvalidScriptError("cannot serialize unknown script kind %d without raw bytes", s.Kind)
	}

	b, err := cborEnc.Marshal(node)
	if err != nil {
		return nil, errors.NewInvalidScriptError("script serialization failed", err)
	}

	return b, nil
}

func (s *Script) subBytes() ([]cbor.RawMessage, error) {
	subs := make([]cbor.RawMessage, 0, len(s.Scripts))

	for _, sub := range s.Scripts {
		b, err := sub.Bytes()
		if err != nil {
			return nil, err
		}

		subs = append(subs, b)
	}

	return subs, nil
}

// MarshalCBOR implements cbor.Marshaler so a Script can sit directly inside
// a witness set.
func (s *Script) MarshalCBOR() ([]byte, error) {
	return s.Bytes()
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *Script) UnmarshalCBOR(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}

	*s = *parsed

	return nil
}

// Hash computes the script hash used as a payment credential: blake2b-224
// over the native-script tag byte followed by the serialized tree.
func (s *Script) Hash() ([]byte, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}

	return HashScriptBytes(b)
}

// HashScriptBytes hashes an already-serialized native script.
func HashScriptBytes(scriptBytes []byte) ([]byte, error) {
	h, err := blake2b.New(ScriptHashSize, nil)
	if err != nil {
		return nil, errors.New(errors.ERR_ERROR, "blake2b init failed", err)
	}

	if _, err = h.Write([]byte{scriptHashPrefix}); err != nil {
		return nil, errors.New(errors.ERR_ERROR, "blake2b write failed", err)
	}

	if _, err = h.Write(scriptBytes); err != nil {
		return nil, errors.New(errors.ERR_ERROR, "blake2b write failed", err)
	}

	return h.Sum(nil), nil
}

// EnterpriseAddress derives the payment-only bech32 address controlled by
// this script.
func (s *Script) EnterpriseAddress(networkID uint8) (*model.Address, error) {
	hash, err := s.Hash()
	if err != nil {
		return nil, err
	}

	return model.NewEnterpriseScriptAddress(hash, networkID)
}

// BaseAddress derives the bech32 base address with this script as payment
// credential and stake as the staking credential.
func (s *Script) BaseAddress(stake *Script, networkID uint8) (*model.Address, error) {
	paymentHash, err := s.Hash()
	if err != nil {
		return nil, err
	}

	stakeHash, err := stake.Hash()
	if err != nil {
		return nil, err
	}

	return model.NewBaseScriptAddress(paymentHash, stakeHash, networkID)
}

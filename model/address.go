package model

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/torrejonv/multisig-coordinator/errors"
)

// Shelley address header types (high nibble of the first byte). Only the
// ones this coordinator produces or needs to recognize are named.
const (
	addrTypeBaseScriptScript = 0x03
	addrTypeEnterpriseScript = 0x07
)

const (
	hrpMainnet = "addr"
	hrpTestnet = "addr_test"
)

// Address is a decoded Shelley address: the raw header+credential bytes
// that go into a transaction output, plus its bech32 form.
type Address struct {
	Bech32 string
	Raw    []byte
}

// NetworkID extracts the network id from the header byte.
func (a *Address) NetworkID() uint8 {
	if len(a.Raw) == 0 {
		return 0
	}

	return a.Raw[0] & 0x0f
}

// HeaderType returns the address type nibble.
func (a *Address) HeaderType() uint8 {
	if len(a.Raw) == 0 {
		return 0xff
	}

	return a.Raw[0] >> 4
}

// String returns the bech32 form.
func (a *Address) String() string {
	return a.Bech32
}

// DecodeAddress parses a lowercase bech32 address and checks it belongs to
// networkID. Any Shelley payment type is accepted; the builder does not
// care whether a destination is key- or script-controlled.
func DecodeAddress(addr string, networkID uint8) (*Address, error) {
	addr = strings.TrimSpace(addr)

	hrp, data5, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, errors.NewInvalidAddressError("address %q is not valid bech32", addr, err)
	}

	wantHRP := hrpTestnet
	if networkID == 1 {
		wantHRP = hrpMainnet
	}

	if hrp != wantHRP {
		return nil, errors.NewInvalidAddressError("address %q has prefix %q, want %q for this network", addr, hrp, wantHRP)
	}

	raw, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return nil, errors.NewInvalidAddressError("address %q payload is malformed", addr, err)
	}

	if len(raw) < 1+KeyHashSize {
		return nil, errors.NewInvalidAddressError("address %q payload too short", addr)
	}

	if raw[0]&0x0f != networkID {
		return nil, errors.NewInvalidAddressError("address %q network id %d does not match %d", addr, raw[0]&0x0f, networkID)
	}

	return &Address{Bech32: addr, Raw: raw}, nil
}

// EncodeAddress converts raw header+credential bytes into bech32 with the
// HRP implied by the header's network id.
func EncodeAddress(raw []byte) (*Address, error) {
	if len(raw) < 1+KeyHashSize {
		return nil, errors.NewInvalidAddressError("address payload too short: %d bytes", len(raw))
	}

	hrp := hrpTestnet
	if raw[0]&0x0f == 1 {
		hrp = hrpMainnet
	}

	data5, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return nil, errors.NewInvalidAddressError("address payload cannot be bit-packed", err)
	}

	encoded, err := bech32.Encode(hrp, data5)
	if err != nil {
		return nil, errors.NewInvalidAddressError("bech32 encoding failed", err)
	}

	return &Address{Bech32: encoded, Raw: raw}, nil
}

// NewEnterpriseScriptAddress builds the payment-only address controlled by
// a script hash.
func NewEnterpriseScriptAddress(scriptHash []byte, networkID uint8) (*Address, error) {
	if len(scriptHash) != KeyHashSize {
		return nil, errors.NewInvalidScriptError("script hash must be %d bytes, got %d", KeyHashSize, len(scriptHash))
	}

	raw := make([]byte, 0, 1+KeyHashSize)
	raw = append(raw, addrTypeEnterpriseScript<<4|networkID&0x0f)
	raw = append(raw, scriptHash...)

	return EncodeAddress(raw)
}

// NewBaseScriptAddress builds the base address whose payment and stake
// credentials are both script hashes.
func NewBaseScriptAddress(paymentHash, stakeHash []byte, networkID uint8) (*Address, error) {
	if len(paymentHash) != KeyHashSize || len(stakeHash) != KeyHashSize {
		return nil, errors.NewInvalidScriptError("script hashes must be %d bytes", KeyHashSize)
	}

	raw := make([]byte, 0, 1+2*KeyHashSize)
	raw = append(raw, addrTypeBaseScriptScript<<4|networkID&0x0f)
	raw = append(raw, paymentHash...)
	raw = append(raw, stakeHash...)

	return EncodeAddress(raw)
}

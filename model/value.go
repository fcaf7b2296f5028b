// Package model holds the chain-facing data types the coordinator operates
// on: multi-asset values, unspent outputs, signer key hashes and bech32
// addresses.
package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/torrejonv/multisig-coordinator/errors"
)

// LovelaceUnit is the wire unit denoting the native coin. It is never a
// multi-asset entry.
const LovelaceUnit = "lovelace"

const (
	policyIDHexLen  = 56
	maxAssetNameLen = 32
)

// Value is a (coin, multi-asset) pair. Assets maps policy-id hex to asset
// name hex to quantity. Every stored quantity is strictly positive; zero
// entries are pruned on construction and after arithmetic.
type Value struct {
	Coin   uint64
	Assets map[string]map[string]uint64
}

// NewValue returns a Value holding coin lovelace and no assets.
func NewValue(coin uint64) *Value {
	return &Value{Coin: coin, Assets: map[string]map[string]uint64{}}
}

// Clone returns a deep copy.
func (v *Value) Clone() *Value {
	out := NewValue(v.Coin)

	for policy, names := range v.Assets {
		m := make(map[string]uint64, len(names))
		for name, qty := range names {
			m[name] = qty
		}

		out.Assets[policy] = m
	}

	return out
}

// IsEmpty reports whether the value carries no coin and no assets.
func (v *Value) IsEmpty() bool {
	return v.Coin == 0 && len(v.Assets) == 0
}

// HasAssets reports whether any multi-asset entry is present.
func (v *Value) HasAssets() bool {
	return len(v.Assets) > 0
}

// AssetQty returns the quantity of (policy, name), zero if absent.
func (v *Value) AssetQty(policy, name string) uint64 {
	if names, ok := v.Assets[policy]; ok {
		return names[name]
	}

	return 0
}

func (v *Value) setAsset(policy, name string, qty uint64) {
	if qty == 0 {
		if names, ok := v.Assets[policy]; ok {
			delete(names, name)
			if len(names) == 0 {
				delete(v.Assets, policy)
			}
		}

		return
	}

	names, ok := v.Assets[policy]
	if !ok {
		names = map[string]uint64{}
		v.Assets[policy] = names
	}

	names[name] = qty
}

// Add returns v + other componentwise. Quantities fit in uint64 by chain
// rule; overflow here is a programmer error, not a user error.
func (v *Value) Add(other *Value) *Value {
	out := v.Clone()
	out.Coin += other.Coin

	for policy, names := range other.Assets {
		for name, qty := range names {
			out.setAsset(policy, name, out.AssetQty(policy, name)+qty)
		}
	}

	return out
}

// Sub returns v - other, failing if any component would go negative. Coin
// underflow surfaces as insufficient ada, asset underflow as insufficient
// tokens, so callers can pass the error straight through.
func (v *Value) Sub(other *Value) (*Value, error) {
	if other.Coin > v.Coin {
		return nil, errors.NewInsufficientAdaError("have %d lovelace, need %d", v.Coin, other.Coin)
	}

	out := v.Clone()
	out.Coin -= other.Coin

	for policy, names := range other.Assets {
		for name, qty := range names {
			have := out.AssetQty(policy, name)
			if qty > have {
				return nil, errors.NewInsufficientTokensError("asset %s%s: have %d, need %d", policy, name, have, qty)
			}

			out.setAsset(policy, name, have-qty)
		}
	}

	return out, nil
}

// AddAssetsFromWire folds a list of (unit, quantity) wire entries into v.
// Quantities are decimal strings to avoid 53-bit truncation in clients.
// The special unit "lovelace" adds to the coin component.
func (v *Value) AddAssetsFromWire(entries []WireAsset) (*Value, error) {
	out := v.Clone()

	for _, e := range entries {
		qty, err := strconv.ParseUint(e.Quantity, 10, 64)
		if err != nil {
			return nil, errors.NewInvalidUnitError("quantity %q for unit %q is not a decimal uint64", e.Quantity, e.Unit, err)
		}

		if e.Unit == LovelaceUnit {
			out.Coin += qty
			continue
		}

		policy, name, err := SplitUnit(e.Unit)
		if err != nil {
			return nil, err
		}

		out.setAsset(policy, name, out.AssetQty(policy, name)+qty)
	}

	return out, nil
}

// EnsureMinAdaIfTokens bumps the coin component up to floor when the value
// carries assets and sits below it. Values without assets are untouched.
func (v *Value) EnsureMinAdaIfTokens(floor uint64) {
	if v.HasAssets() && v.Coin < floor {
		v.Coin = floor
	}
}

// WireAsset is one (unit, quantity) pair as the indexer and the HTTP
// surface exchange it.
type WireAsset struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// ToWire flattens v into the canonical wire form: lovelace first, then
// assets sorted by unit hex. The ordering is stable so serialized previews
// compare byte-equal.
func (v *Value) ToWire() []WireAsset {
	out := make([]WireAsset, 0, 1+len(v.Assets))
	out = append(out, WireAsset{Unit: LovelaceUnit, Quantity: strconv.FormatUint(v.Coin, 10)})

	for _, policy := range sortedKeys(v.Assets) {
		names := v.Assets[policy]
		for _, name := range sortedKeys(names) {
			out = append(out, WireAsset{
				Unit:     policy + name,
				Quantity: strconv.FormatUint(names[name], 10),
			})
		}
	}

	return out
}

// SplitUnit splits a concatenated unit into (policy hex, asset name hex),
// validating lengths and hex alphabet. The name may be empty.
func SplitUnit(unit string) (string, string, error) {
	unit = strings.ToLower(unit)

	if len(unit) < policyIDHexLen {
		return "", "", errors.NewInvalidUnitError("unit %q shorter than a policy id", unit)
	}

	policy, name := unit[:policyIDHexLen], unit[policyIDHexLen:]

	if !isHex(policy) || !isHex(name) {
		return "", "", errors.NewInvalidUnitError("unit %q is not hex", unit)
	}

	if len(name)%2 != 0 || len(name)/2 > maxAssetNameLen {
		return "", "", errors.NewInvalidUnitError("asset name in unit %q exceeds %d bytes", unit, maxAssetNameLen)
	}

	return policy, name, nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

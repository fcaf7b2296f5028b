package nativescript

import (
	"encoding/hex"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
)

func keyHashBytes(fill byte) []byte {
	b := make([]byte, model.KeyHashSize)
	for i := range b {
		b[i] = fill
	}

	return b
}

func pubkey(fill byte) *Script {
	return &Script{Kind: KindPubkey, KeyHash: keyHashBytes(fill)}
}

func TestScriptRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		script *Script
	}{
		{"pubkey", pubkey(0xaa)},
		{"all", &Script{Kind: KindAll, Scripts: []*Script{pubkey(0xaa), pubkey(0xbb)}}},
		{"any", &Script{Kind: KindAny, Scripts: []*Script{pubkey(0xaa), pubkey(0xbb)}}},
		{"atLeast", &Script{Kind: KindAtLeast, N: 2, Scripts: []*Script{pubkey(0xaa), pubkey(0xbb), pubkey(0xcc)}}},
		{"invalidBefore", &Script{Kind: KindInvalidBefore, Slot: 12345}},
		{"invalidHereafter", &Script{Kind: KindInvalidHereafter, Slot: 99999}},
		{"nested", &Script{Kind: KindAll, Scripts: []*Script{
			{Kind: KindAtLeast, N: 1, Scripts: []*Script{pubkey(0x01), pubkey(0x02)}},
			{Kind: KindInvalidHereafter, Slot: 500},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.script.Bytes()
			require.NoError(t, err)

			parsed, err := Parse(b)
			require.NoError(t, err)

			b2, err := parsed.Bytes()
			require.NoError(t, err)
			assert.Equal(t, b, b2)
		})
	}
}

func TestParseRejectsMalformedNodes(t *testing.T) {
	// not an array
	_, err := Parse([]byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidScript))

	// empty array
	b, err := cborEnc.Marshal([]interface{}{})
	require.NoError(t, err)
	_, err = Parse(b)
	require.Error(t, err)

	// pubkey with a short hash
	b, err = cborEnc.Marshal([]interface{}{KindPubkey, []byte{1, 2, 3}})
	require.NoError(t, err)
	_, err = Parse(b)
	require.Error(t, err)

	// at-least with a missing sub-script list
	b, err = cborEnc.Marshal([]interface{}{KindAtLeast, uint64(2)})
	require.NoError(t, err)
	_, err = Parse(b)
	require.Error(t, err)
}

func TestUnknownKindRoundTripsOpaque(t *testing.T) {
	raw, err := cborEnc.Marshal([]interface{}{uint64(9), "future"})
	require.NoError(t, err)

	s, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), s.Kind)

	out, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), out)
}

func TestScriptHashMatchesReferenceDerivation(t *testing.T) {
	s := &Script{Kind: KindAtLeast, N: 2, Scripts: []*Script{pubkey(0xaa), pubkey(0xbb), pubkey(0xcc)}}

	b, err := s.Bytes()
	require.NoError(t, err)

	hash, err := s.Hash()
	require.NoError(t, err)
	require.Len(t, hash, ScriptHashSize)

	// independent derivation: blake2b-224 over tag byte plus serialized tree
	h, err := blake2b.New(ScriptHashSize, nil)
	require.NoError(t, err)
	_, err = h.Write(append([]byte{0x00}, b...))
	require.NoError(t, err)

	assert.Equal(t, h.Sum(nil), hash)
}

func TestScriptCBORInterfaces(t *testing.T) {
	s := &Script{Kind: KindAll, Scripts: []*Script{pubkey(0x11)}}

	b, err := cbor.Marshal(s)
	require.NoError(t, err)

	var decoded Script
	require.NoError(t, cbor.Unmarshal(b, &decoded))

	out, err := decoded.Bytes()
	require.NoError(t, err)

	direct, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, direct, out)
}

func TestEnterpriseAddressDerivation(t *testing.T) {
	s := pubkeyTree()

	addr, err := s.EnterpriseAddress(0)
	require.NoError(t, err)

	hash, err := s.Hash()
	require.NoError(t, err)

	decoded, err := model.DecodeAddress(addr.Bech32, 0)
	require.NoError(t, err)
	assert.Equal(t, hash, decoded.Raw[1:])
	assert.Equal(t, hex.EncodeToString(hash), hex.EncodeToString(decoded.Raw[1:]))
}

func TestBaseAddressDerivation(t *testing.T) {
	payment := pubkeyTree()
	stake := pubkey(0x77)

	addr, err := payment.BaseAddress(stake, 1)
	require.NoError(t, err)

	payHash, err := payment.Hash()
	require.NoError(t, err)
	stakeHash, err := stake.Hash()
	require.NoError(t, err)

	decoded, err := model.DecodeAddress(addr.Bech32, 1)
	require.NoError(t, err)
	assert.Equal(t, payHash, decoded.Raw[1:1+model.KeyHashSize])
	assert.Equal(t, stakeHash, decoded.Raw[1+model.KeyHashSize:])
}

func pubkeyTree() *Script {
	return &Script{Kind: KindAll, Scripts: []*Script{pubkey(0xaa), pubkey(0xbb)}}
}

package txbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
)

const tokenPolicy = "d894897411707efa755a76deb66d26dfd50593f2e70863e1661e98a0"

func coinOutput(t *testing.T, coin uint64) *TxOutput {
	t.Helper()

	addr := testAddress(t, 0x01)

	return &TxOutput{Address: addr.Raw, Value: model.NewValue(coin)}
}

func testAddress(t *testing.T, fill byte) *model.Address {
	t.Helper()

	hash := make([]byte, model.KeyHashSize)
	for i := range hash {
		hash[i] = fill
	}

	addr, err := model.NewEnterpriseScriptAddress(hash, 0)
	require.NoError(t, err)

	return addr
}

func tokenValue(coin, qty uint64) *model.Value {
	v := model.NewValue(coin)
	v.Assets = map[string]map[string]uint64{tokenPolicy: {"aabb": qty}}

	return v
}

func TestTxOutputRoundTripCoinOnly(t *testing.T) {
	out := coinOutput(t, 5_000_000)

	b, err := cborEnc.Marshal(out)
	require.NoError(t, err)

	var decoded TxOutput
	require.NoError(t, cborDec.Unmarshal(b, &decoded))

	assert.Equal(t, out.Address, decoded.Address)
	assert.Equal(t, uint64(5_000_000), decoded.Value.Coin)
	assert.False(t, decoded.Value.HasAssets())
}

func TestTxOutputRoundTripWithAssets(t *testing.T) {
	addr := testAddress(t, 0x02)
	out := &TxOutput{Address: addr.Raw, Value: tokenValue(2_000_000, 7)}

	b, err := cborEnc.Marshal(out)
	require.NoError(t, err)

	var decoded TxOutput
	require.NoError(t, cborDec.Unmarshal(b, &decoded))

	assert.Equal(t, uint64(2_000_000), decoded.Value.Coin)
	assert.Equal(t, uint64(7), decoded.Value.AssetQty(tokenPolicy, "aabb"))
}

func TestTxBodyHashIsDeterministic(t *testing.T) {
	body := &TxBody{
		Inputs:  []*TxInput{{TxHash: make([]byte, 32), Index: 0}},
		Outputs: []*TxOutput{coinOutput(t, 1_000_000)},
		Fee:     170_000,
	}

	h1, err := body.Hash()
	require.NoError(t, err)
	require.Len(t, h1, BodyHashSize)

	h2, err := body.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// independent derivation over the serialized bytes
	bodyBytes, err := body.Bytes()
	require.NoError(t, err)

	ref, err := blake2b.New(BodyHashSize, nil)
	require.NoError(t, err)
	_, err = ref.Write(bodyBytes)
	require.NoError(t, err)
	assert.Equal(t, ref.Sum(nil), h1)

	// a different fee must change the hash
	body.Fee++
	h3, err := body.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestUnsignedTxRoundTrip(t *testing.T) {
	script := &nativescript.Script{Kind: nativescript.KindPubkey, KeyHash: make([]byte, model.KeyHashSize)}
	body := &TxBody{
		Inputs:          []*TxInput{{TxHash: make([]byte, 32), Index: 1}},
		Outputs:         []*TxOutput{coinOutput(t, 3_000_000)},
		Fee:             200_000,
		RequiredSigners: [][]byte{make([]byte, model.KeyHashSize)},
	}

	tx := NewUnsignedTx(body, script)

	b, err := tx.Bytes()
	require.NoError(t, err)

	decoded, err := ParseTx(b)
	require.NoError(t, err)
	assert.True(t, decoded.IsValid)
	require.NotNil(t, decoded.WitnessSet)
	require.Len(t, decoded.WitnessSet.NativeScripts, 1)
	assert.Empty(t, decoded.WitnessSet.VkeyWitnesses)
	assert.Equal(t, uint64(200_000), decoded.Body.Fee)
	require.Len(t, decoded.Body.RequiredSigners, 1)

	// the body serializes identically whether alone or inside the tx
	direct, err := body.Bytes()
	require.NoError(t, err)
	reencoded, err := decoded.Body.Bytes()
	require.NoError(t, err)
	assert.Equal(t, direct, reencoded)
}

func TestWitnessSetRoundTrip(t *testing.T) {
	ws := &WitnessSet{
		VkeyWitnesses: []*VkeyWitness{{Vkey: make([]byte, 32), Signature: make([]byte, 64)}},
	}

	b, err := ws.Bytes()
	require.NoError(t, err)

	decoded, err := ParseWitnessSet(b)
	require.NoError(t, err)
	require.Len(t, decoded.VkeyWitnesses, 1)
	assert.Len(t, decoded.VkeyWitnesses[0].Signature, 64)
}

func TestParseWitnessSetRejectsGarbage(t *testing.T) {
	_, err := ParseWitnessSet([]byte{0xff, 0x00})
	require.Error(t, err)
}

func TestVkeyWitnessKeyHash(t *testing.T) {
	vkey := []byte(strings.Repeat("k", 32))
	w := &VkeyWitness{Vkey: vkey, Signature: make([]byte, 64)}

	kh, err := w.KeyHash()
	require.NoError(t, err)

	want, err := model.HashVerificationKey(vkey)
	require.NoError(t, err)
	assert.Equal(t, want, kh)
}

package txbuilder

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
	"github.com/torrejonv/multisig-coordinator/services/chain"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

type fixture struct {
	scriptHex string
	multisig  string
	dest      string
	required  []model.KeyHash
	mRequired uint32
	gateway   *chain.Mock
	params    *chain.ProtocolParams
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	leaf := func(fill byte) *nativescript.Script {
		h := make([]byte, model.KeyHashSize)
		for i := range h {
			h[i] = fill
		}

		return &nativescript.Script{Kind: nativescript.KindPubkey, KeyHash: h}
	}

	script := &nativescript.Script{
		Kind:    nativescript.KindAtLeast,
		N:       2,
		Scripts: []*nativescript.Script{leaf(0xa1), leaf(0xb2), leaf(0xc3)},
	}

	scriptBytes, err := script.Bytes()
	require.NoError(t, err)

	addr, err := script.EnterpriseAddress(0)
	require.NoError(t, err)

	destHash := make([]byte, model.KeyHashSize)
	for i := range destHash {
		destHash[i] = 0xdd
	}

	dest, err := model.NewEnterpriseScriptAddress(destHash, 0)
	require.NoError(t, err)

	summary, err := nativescript.Summarize(scriptBytes)
	require.NoError(t, err)

	params := &chain.ProtocolParams{MinFeeA: 44, MinFeeB: 155381, MaxTxSize: 16384}

	return &fixture{
		scriptHex: hex.EncodeToString(scriptBytes),
		multisig:  addr.Bech32,
		dest:      dest.Bech32,
		required:  summary.RequiredKeyHashes,
		mRequired: summary.MRequired,
		gateway:   &chain.Mock{MockParams: params},
		params:    params,
	}
}

func (f *fixture) addUTxO(t *testing.T, index uint32, value *model.Value) {
	t.Helper()

	u, err := model.NewUTxO(strings.Repeat("1a", 32), index, value)
	require.NoError(t, err)

	f.gateway.MockUTxOs = append(f.gateway.MockUTxOs, u)
}

func (f *fixture) options(mode Mode) *Options {
	return &Options{
		MultisigAddress:   f.multisig,
		PaymentScriptHex:  f.scriptHex,
		RequiredKeyHashes: f.required,
		MRequired:         f.mRequired,
		Mode:              mode,
		DestAddress:       f.dest,
		MinAdaLovelace:    2_000_000,
		NetworkID:         0,
	}
}

func buildWith(t *testing.T, f *fixture, opts *Options) *Artifact {
	t.Helper()

	artifact, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.NoError(t, err)

	return artifact
}

func decodeBody(t *testing.T, artifact *Artifact) *TxBody {
	t.Helper()

	tx, err := ParseTx(artifact.TxBytes)
	require.NoError(t, err)

	return tx.Body
}

func assertConservation(t *testing.T, utxos []*model.UTxO, body *TxBody) {
	t.Helper()

	totalIn := model.SumUTxOs(utxos)

	sumOut := model.NewValue(body.Fee)
	for _, o := range body.Outputs {
		sumOut = sumOut.Add(o.Value)
	}

	left, err := totalIn.Sub(sumOut)
	require.NoError(t, err)
	assert.True(t, left.IsEmpty(), "inputs must equal outputs plus fee exactly")
}

// Sweep of a single coin-only utxo: one min-ada output plus coin change,
// both to the destination.
func TestBuildSweepCoinOnly(t *testing.T) {
	f := newFixture(t)
	f.addUTxO(t, 0, model.NewValue(10_000_000))

	artifact := buildWith(t, f, f.options(ModeSweepAll))
	body := decodeBody(t, artifact)

	require.Len(t, body.Outputs, 2)

	dest, err := model.DecodeAddress(f.dest, 0)
	require.NoError(t, err)

	assert.Equal(t, dest.Raw, body.Outputs[0].Address)
	assert.Equal(t, uint64(2_000_000), body.Outputs[0].Value.Coin)
	assert.False(t, body.Outputs[0].Value.HasAssets())

	assert.Equal(t, dest.Raw, body.Outputs[1].Address)
	assert.Equal(t, 10_000_000-2_000_000-body.Fee, body.Outputs[1].Value.Coin)
	assert.False(t, body.Outputs[1].Value.HasAssets())

	assertConservation(t, f.gateway.MockUTxOs, body)

	// fee sits between the bare minimum and the buffered minimum, with a
	// little room for coin-width drift between the two pricing passes
	minFee, err := MinFee(len(artifact.TxBytes), f.params)
	require.NoError(t, err)
	buffer := WitnessFeeBuffer(f.params, f.mRequired)

	assert.GreaterOrEqual(t, body.Fee, minFee)
	assert.LessOrEqual(t, body.Fee, minFee+buffer+5*f.params.MinFeeA)

	assert.Equal(t, artifact.SessionID, sessionIDOf(t, body))
}

func sessionIDOf(t *testing.T, body *TxBody) string {
	t.Helper()

	h, err := body.Hash()
	require.NoError(t, err)

	return hex.EncodeToString(h)
}

// Sweep with tokens: every token rides the min-ada output, change is pure
// coin.
func TestBuildSweepWithTokens(t *testing.T) {
	f := newFixture(t)

	v := model.NewValue(5_000_000)
	v.Assets = map[string]map[string]uint64{tokenPolicy: {"aabb": 7}}
	f.addUTxO(t, 0, v)

	artifact := buildWith(t, f, f.options(ModeSweepAll))
	body := decodeBody(t, artifact)

	require.Len(t, body.Outputs, 2)
	assert.Equal(t, uint64(2_000_000), body.Outputs[0].Value.Coin)
	assert.Equal(t, uint64(7), body.Outputs[0].Value.AssetQty(tokenPolicy, "aabb"))

	assert.Equal(t, 5_000_000-2_000_000-body.Fee, body.Outputs[1].Value.Coin)
	assert.False(t, body.Outputs[1].Value.HasAssets())

	assertConservation(t, f.gateway.MockUTxOs, body)
}

// Explicit outputs asking for more of a token than the inputs carry.
func TestBuildExplicitInsufficientTokens(t *testing.T) {
	f := newFixture(t)

	v := model.NewValue(10_000_000)
	v.Assets = map[string]map[string]uint64{tokenPolicy: {"aabb": 5}}
	f.addUTxO(t, 0, v)

	opts := f.options(ModeExplicit)
	opts.Outputs = []RequestedOutput{{
		Address: f.dest,
		Coin:    "1500000",
		Assets:  []model.WireAsset{{Unit: tokenPolicy + "aabb", Quantity: "6"}},
	}}

	_, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientTokens))
}

// Explicit output with zero coin and tokens gets bumped to the floor and
// change goes back to the multisig address.
func TestBuildExplicitZeroCoinTokenOutputBumped(t *testing.T) {
	f := newFixture(t)

	v := model.NewValue(10_000_000)
	v.Assets = map[string]map[string]uint64{tokenPolicy: {"aabb": 5}}
	f.addUTxO(t, 0, v)

	opts := f.options(ModeExplicit)
	opts.Outputs = []RequestedOutput{{
		Address: f.dest,
		Assets:  []model.WireAsset{{Unit: tokenPolicy + "aabb", Quantity: "5"}},
	}}

	artifact := buildWith(t, f, opts)
	body := decodeBody(t, artifact)

	require.Len(t, body.Outputs, 2)
	assert.Equal(t, uint64(2_000_000), body.Outputs[0].Value.Coin)
	assert.Equal(t, uint64(5), body.Outputs[0].Value.AssetQty(tokenPolicy, "aabb"))

	multisig, err := model.DecodeAddress(f.multisig, 0)
	require.NoError(t, err)
	assert.Equal(t, multisig.Raw, body.Outputs[1].Address)
	assert.False(t, body.Outputs[1].Value.HasAssets())

	assertConservation(t, f.gateway.MockUTxOs, body)
}

func TestBuildEmptyUTxOSet(t *testing.T) {
	f := newFixture(t)

	for _, mode := range []Mode{ModeSweepAll, ModeExplicit} {
		opts := f.options(mode)
		opts.Outputs = []RequestedOutput{{Address: f.dest, Coin: "1000000"}}

		_, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientAda), "mode %s", mode)
	}
}

func TestBuildChangeBelowMinAda(t *testing.T) {
	f := newFixture(t)

	v := model.NewValue(2_600_000)
	v.Assets = map[string]map[string]uint64{tokenPolicy: {"aabb": 5}}
	f.addUTxO(t, 0, v)

	// output takes most of the coin but leaves tokens behind; the change
	// cannot reach the floor
	opts := f.options(ModeExplicit)
	opts.Outputs = []RequestedOutput{{
		Address: f.dest,
		Coin:    "2000000",
		Assets:  []model.WireAsset{{Unit: tokenPolicy + "aabb", Quantity: "2"}},
	}}

	_, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrChangeBelowMinAda))
}

func TestBuildRejectsScriptAddressMismatch(t *testing.T) {
	f := newFixture(t)
	f.addUTxO(t, 0, model.NewValue(10_000_000))

	opts := f.options(ModeSweepAll)
	opts.MultisigAddress = f.dest // not the script's address

	_, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidScript))
}

func TestBuildValidatesMode(t *testing.T) {
	f := newFixture(t)

	opts := f.options(Mode("bogus"))
	_, err := Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidMode))

	opts = f.options(ModeSweepAll)
	opts.DestAddress = ""
	_, err = Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingParams))

	opts = f.options(ModeExplicit)
	opts.Outputs = nil
	_, err = Build(context.Background(), ulogger.NewVerboseTestLogger(t), f.gateway, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingParams))
}

func TestBuildPopulatesRequiredSignersAndPreview(t *testing.T) {
	f := newFixture(t)
	f.addUTxO(t, 0, model.NewValue(10_000_000))

	artifact := buildWith(t, f, f.options(ModeSweepAll))
	body := decodeBody(t, artifact)

	require.Len(t, body.RequiredSigners, 3)
	for i, kh := range f.required {
		assert.Equal(t, kh.Bytes(), body.RequiredSigners[i])
	}

	require.NotNil(t, artifact.Preview)
	require.Len(t, artifact.Preview.Inputs, 1)
	assert.Equal(t, strings.Repeat("1a", 32), artifact.Preview.Inputs[0].TxHash)
	require.Len(t, artifact.Preview.Outputs, 2)
	assert.Equal(t, f.dest, artifact.Preview.Outputs[0].Address)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("sweep_all")
	require.NoError(t, err)
	assert.Equal(t, ModeSweepAll, m)

	m, err = ParseMode("explicit")
	require.NoError(t, err)
	assert.Equal(t, ModeExplicit, m)

	_, err = ParseMode("other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidMode))
}

package txbuilder

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
	"github.com/torrejonv/multisig-coordinator/services/chain"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

// Build modes.
type Mode string

const (
	// ModeSweepAll moves the entire balance (coin and every token) to a
	// single destination.
	ModeSweepAll Mode = "sweep_all"
	// ModeExplicit pays the requested outputs and returns change to the
	// multisig address.
	ModeExplicit Mode = "explicit"
)

// ParseMode validates a wire mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSweepAll, ModeExplicit:
		return Mode(s), nil
	default:
		return "", errors.NewInvalidModeError("mode %q is not one of %q, %q", s, ModeSweepAll, ModeExplicit)
	}
}

// RequestedOutput is one explicit-mode output as requested over the wire.
type RequestedOutput struct {
	Address string            `json:"address"`
	Coin    string            `json:"coin"`
	Assets  []model.WireAsset `json:"assets,omitempty"`
}

// Options carries everything a build needs. The signer configuration
// (required hashes, threshold) is taken as given, not re-derived from the
// script; the script is only cross-checked against the spend address.
type Options struct {
	MultisigAddress   string
	PaymentScriptHex  string
	RequiredKeyHashes []model.KeyHash
	MRequired         uint32
	Mode              Mode
	DestAddress       string
	Outputs           []RequestedOutput
	MinAdaLovelace    uint64
	NetworkID         uint8
}

// PreviewInput is one selected input as shown to a human before signing.
type PreviewInput struct {
	TxHash      string            `json:"tx_hash"`
	OutputIndex uint32            `json:"output_index"`
	Amount      []model.WireAsset `json:"amount"`
}

// PreviewOutput is one produced output as shown to a human before signing.
type PreviewOutput struct {
	Address string            `json:"address"`
	Amount  []model.WireAsset `json:"amount"`
}

// Preview is the literal effect of the built transaction.
type Preview struct {
	Inputs  []PreviewInput  `json:"inputs"`
	Outputs []PreviewOutput `json:"outputs"`
	Fee     string          `json:"fee"`
}

// Artifact is the result of a successful build. SessionID is the lowercase
// hex body hash.
type Artifact struct {
	SessionID   string
	BodyBytes   []byte
	TxBytes     []byte
	ScriptBytes []byte
	Fee         uint64
	Preview     *Preview
}

// Build fetches chain state once and deterministically constructs the
// unsigned transaction body.
//
// Fee policy: two passes of buffered min-fee. Pass one prices the
// transaction without change and reserves headroom for m witnesses; the
// change output is then added and the fee recomputed over the larger body.
func Build(ctx context.Context, logger ulogger.Logger, gateway chain.ClientI, opts *Options) (*Artifact, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	script, err := nativescript.ParseHex(opts.PaymentScriptHex)
	if err != nil {
		return nil, err
	}

	scriptBytes, err := script.Bytes()
	if err != nil {
		return nil, err
	}

	spendAddr, err := model.DecodeAddress(opts.MultisigAddress, opts.NetworkID)
	if err != nil {
		return nil, err
	}

	// cross-check: the script must actually control the spend address
	scriptHash, err := script.Hash()
	if err != nil {
		return nil, err
	}

	if hex.EncodeToString(spendAddr.Raw[1:1+model.KeyHashSize]) != hex.EncodeToString(scriptHash) {
		return nil, errors.NewInvalidScriptError("script hash %x does not match the payment credential of %s", scriptHash, opts.MultisigAddress)
	}

	utxos, err := gateway.UTXOs(ctx, opts.MultisigAddress)
	if err != nil {
		return nil, err
	}

	if len(utxos) == 0 {
		return nil, errors.NewInsufficientAdaError("no utxos at %s", opts.MultisigAddress)
	}

	params, err := gateway.ProtocolParameters(ctx)
	if err != nil {
		return nil, err
	}

	totalIn := model.SumUTxOs(utxos)

	outputs, changeAddr, err := buildOutputs(opts, totalIn)
	if err != nil {
		return nil, err
	}

	// remainder before fee; token shortfalls surface here
	sumOut := model.NewValue(0)
	for _, o := range outputs {
		sumOut = sumOut.Add(o.Value)
	}

	remainder, err := totalIn.Sub(sumOut)
	if err != nil {
		return nil, err
	}

	summary, err := nativescript.Summarize(scriptBytes)
	if err != nil {
		return nil, err
	}

	body := &TxBody{
		Inputs:          inputsFromUTxOs(utxos),
		Outputs:         outputs,
		RequiredSigners: signerHashes(opts.RequiredKeyHashes),
	}
	if summary.InvalidHereafter != nil {
		body.TTL = *summary.InvalidHereafter
	}

	// pass 1: price the change-less transaction with witness headroom
	fee, err := priceBody(body, script, params, opts.MRequired)
	if err != nil {
		return nil, err
	}

	change, err := changeValue(remainder, fee, opts.MinAdaLovelace)
	if err != nil {
		return nil, err
	}

	if change != nil {
		body.Outputs = append(body.Outputs, &TxOutput{Address: changeAddr.Raw, Value: change})

		// pass 2: the change output grew the body; reprice and rebalance
		fee2, err := priceBody(body, script, params, opts.MRequired)
		if err != nil {
			return nil, err
		}

		if fee2 != fee {
			fee = fee2

			change, err = changeValue(remainder, fee, opts.MinAdaLovelace)
			if err != nil {
				return nil, err
			}

			body.Outputs = body.Outputs[:len(body.Outputs)-1]
			if change != nil {
				body.Outputs = append(body.Outputs, &TxOutput{Address: changeAddr.Raw, Value: change})
			}
		}
	}

	body.Fee = fee

	if err := checkConservation(totalIn, body); err != nil {
		return nil, err
	}

	bodyBytes, err := body.Bytes()
	if err != nil {
		return nil, err
	}

	bodyHash, err := HashBodyBytes(bodyBytes)
	if err != nil {
		return nil, err
	}

	unsignedTx := NewUnsignedTx(body, script)

	txBytes, err := unsignedTx.Bytes()
	if err != nil {
		return nil, err
	}

	sessionID := hex.EncodeToString(bodyHash)

	logger.Infof("built unsigned tx %s: %d inputs, %d outputs, fee %d", sessionID, len(body.Inputs), len(body.Outputs), fee)

	return &Artifact{
		SessionID:   sessionID,
		BodyBytes:   bodyBytes,
		TxBytes:     txBytes,
		ScriptBytes: scriptBytes,
		Fee:         fee,
		Preview:     buildPreview(utxos, body, fee),
	}, nil
}

func validateOptions(opts *Options) error {
	if opts.MultisigAddress == "" || opts.PaymentScriptHex == "" {
		return errors.NewMissingParamsError("multisig address and payment script are required")
	}

	if len(opts.RequiredKeyHashes) == 0 || opts.MRequired == 0 {
		return errors.NewMissingParamsError("required key hashes and threshold are required")
	}

	switch opts.Mode {
	case ModeSweepAll:
		if opts.DestAddress == "" {
			return errors.NewMissingParamsError("dest address is required for %s", ModeSweepAll)
		}
	case ModeExplicit:
		if len(opts.Outputs) == 0 {
			return errors.NewMissingParamsError("at least one output is required for %s", ModeExplicit)
		}
	default:
		return errors.NewInvalidModeError("mode %q is not one of %q, %q", opts.Mode, ModeSweepAll, ModeExplicit)
	}

	return nil
}

// buildOutputs constructs the requested output list and decides where
// change goes: the destination for a sweep, the multisig address itself
// for explicit payments.
func buildOutputs(opts *Options, totalIn *model.Value) ([]*TxOutput, *model.Address, error) {
	switch opts.Mode {
	case ModeSweepAll:
		dest, err := model.DecodeAddress(opts.DestAddress, opts.NetworkID)
		if err != nil {
			return nil, nil, err
		}

		// every token swept in one output, riding on the minimum coin
		swept := model.NewValue(opts.MinAdaLovelace)
		for policy, names := range totalIn.Assets {
			m := make(map[string]uint64, len(names))
			for name, qty := range names {
				m[name] = qty
			}

			swept.Assets[policy] = m
		}

		return []*TxOutput{{Address: dest.Raw, Value: swept}}, dest, nil

	case ModeExplicit:
		spend, err := model.DecodeAddress(opts.MultisigAddress, opts.NetworkID)
		if err != nil {
			return nil, nil, err
		}

		outputs := make([]*TxOutput, 0, len(opts.Outputs))

		for _, req := range opts.Outputs {
			addr, err := model.DecodeAddress(req.Address, opts.NetworkID)
			if err != nil {
				return nil, nil, err
			}

			coin := uint64(0)
			if req.Coin != "" {
				coin, err = strconv.ParseUint(req.Coin, 10, 64)
				if err != nil {
					return nil, nil, errors.NewInvalidUnitError("coin %q is not a decimal uint64", req.Coin, err)
				}
			}

			value, err := model.NewValue(coin).AddAssetsFromWire(req.Assets)
			if err != nil {
				return nil, nil, err
			}

			value.EnsureMinAdaIfTokens(opts.MinAdaLovelace)

			outputs = append(outputs, &TxOutput{Address: addr.Raw, Value: value})
		}

		return outputs, spend, nil
	}

	return nil, nil, errors.NewInvalidModeError("mode %q", opts.Mode)
}

// priceBody serializes the unsigned transaction as it stands and returns
// the buffered minimum fee for it.
func priceBody(body *TxBody, script *nativescript.Script, params *chain.ProtocolParams, mRequired uint32) (uint64, error) {
	txBytes, err := NewUnsignedTx(body, script).Bytes()
	if err != nil {
		return 0, err
	}

	return bufferedMinFee(len(txBytes), params, mRequired)
}

// changeValue computes the change output value: remainder minus fee. A nil
// return means no change output is needed. Change that carries tokens but
// cannot reach the coin floor is an error, not a bump: bumping would break
// conservation.
func changeValue(remainder *model.Value, fee, minAda uint64) (*model.Value, error) {
	change, err := remainder.Sub(model.NewValue(fee))
	if err != nil {
		return nil, errors.NewInsufficientAdaError("cannot cover fee %d", fee, err)
	}

	if change.IsEmpty() {
		return nil, nil
	}

	if change.HasAssets() && change.Coin < minAda {
		return nil, errors.NewChangeBelowMinAdaError("change carries tokens but only %d lovelace, floor is %d", change.Coin, minAda)
	}

	return change, nil
}

// checkConservation verifies Σ inputs = Σ outputs + fee exactly. The
// builder refuses to emit a body that fails this.
func checkConservation(totalIn *model.Value, body *TxBody) error {
	sumOut := model.NewValue(body.Fee)
	for _, o := range body.Outputs {
		sumOut = sumOut.Add(o.Value)
	}

	left, err := totalIn.Sub(sumOut)
	if err != nil {
		return errors.New(errors.ERR_ERROR, "conservation violated: outputs plus fee exceed inputs", err)
	}

	if !left.IsEmpty() {
		return errors.New(errors.ERR_ERROR, "conservation violated: %d lovelace and %d asset policies unaccounted for", left.Coin, len(left.Assets))
	}

	return nil
}

func inputsFromUTxOs(utxos []*model.UTxO) []*TxInput {
	inputs := make([]*TxInput, 0, len(utxos))
	for _, u := range utxos {
		inputs = append(inputs, &TxInput{TxHash: u.TxHashBytes(), Index: u.OutputIndex})
	}

	return inputs
}

func signerHashes(hashes []model.KeyHash) [][]byte {
	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, h.Bytes())
	}

	return out
}

func buildPreview(utxos []*model.UTxO, body *TxBody, fee uint64) *Preview {
	p := &Preview{
		Fee:     strconv.FormatUint(fee, 10),
		Inputs:  make([]PreviewInput, 0, len(utxos)),
		Outputs: make([]PreviewOutput, 0, len(body.Outputs)),
	}

	for _, u := range utxos {
		p.Inputs = append(p.Inputs, PreviewInput{
			TxHash:      u.TxHash,
			OutputIndex: u.OutputIndex,
			Amount:      u.Value.ToWire(),
		})
	}

	for _, o := range body.Outputs {
		addr, err := model.EncodeAddress(o.Address)
		addrStr := ""
		if err == nil {
			addrStr = addr.Bech32
		}

		p.Outputs = append(p.Outputs, PreviewOutput{
			Address: addrStr,
			Amount:  o.Value.ToWire(),
		})
	}

	return p
}

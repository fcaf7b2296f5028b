package coordinator

import (
	"encoding/hex"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/txbuilder"
)

// SubmitWitnessResponse reports which signers a witness blob contributed
// and which it carried that the session does not recognize.
type SubmitWitnessResponse struct {
	Accepted  []model.KeyHash `json:"accepted"`
	Ignored   []model.KeyHash `json:"ignored"`
	Collected int             `json:"collected"`
	Required  int             `json:"required"`
}

// SubmitWitness ingests a witness blob for a session. The blob may be a
// bare witness set or a full signed transaction; either way each contained
// key witness is checked against the allow-list, re-wrapped as a
// single-key witness set and stored under its key hash. Re-submitting a
// key's witness replaces the previous one.
//
// declaredSigner is advisory: it names who the submitter believes signed,
// and is only used for log correlation. The stored identity always comes
// from hashing the verification key.
func (co *Coordinator) SubmitWitness(sessionID, witnessHex, declaredSigner string) (*SubmitWitnessResponse, error) {
	rec, err := co.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	blob, err := hex.DecodeString(witnessHex)
	if err != nil {
		return nil, errors.NewInvalidWitnessCborError("witness blob is not hex", err)
	}

	witnesses, err := extractKeyWitnesses(blob)
	if err != nil {
		return nil, err
	}

	resp := &SubmitWitnessResponse{
		Accepted: []model.KeyHash{},
		Ignored:  []model.KeyHash{},
		Required: int(rec.MRequired()),
	}

	for _, w := range witnesses {
		kh, err := w.KeyHash()
		if err != nil {
			return nil, errors.NewInvalidWitnessCborError("witness verification key is malformed", err)
		}

		if !rec.Allowed(kh) {
			resp.Ignored = append(resp.Ignored, kh)
			continue
		}

		// re-wrap as a single-key witness set so nothing else from the
		// submitted blob can ride along into the final transaction
		normalized, err := (&txbuilder.WitnessSet{VkeyWitnesses: []*txbuilder.VkeyWitness{w}}).Bytes()
		if err != nil {
			return nil, err
		}

		if err := rec.SetWitness(kh, normalized); err != nil {
			return nil, err
		}

		resp.Accepted = append(resp.Accepted, kh)
	}

	resp.Collected = rec.WitnessCount()

	if len(resp.Accepted) == 0 {
		prometheusCoordinatorWitness.WithLabelValues("rejected").Inc()

		requiredStrs := make([]string, 0, len(rec.Required()))
		for _, kh := range rec.Required() {
			requiredStrs = append(requiredStrs, kh.String())
		}

		ignoredStrs := make([]string, 0, len(resp.Ignored))
		for _, kh := range resp.Ignored {
			ignoredStrs = append(ignoredStrs, kh.String())
		}

		return nil, errors.New(errors.ERR_SIGNER_NOT_ALLOWED, "no allowed signer in witness blob").WithData(&errors.SignerNotAllowedData{
			Required: requiredStrs,
			Accepted: []string{},
			Ignored:  ignoredStrs,
		})
	}

	prometheusCoordinatorWitness.WithLabelValues("accepted").Inc()

	co.logger.Infof("session %s: witness from %v accepted (declared %q), %d of %d collected",
		sessionID, resp.Accepted, declaredSigner, resp.Collected, resp.Required)

	return resp, nil
}

// extractKeyWitnesses accepts the two blob shapes signers send back: a
// serialized witness set, or a full transaction the wallet signed, whose
// witness set is then lifted out.
func extractKeyWitnesses(blob []byte) ([]*txbuilder.VkeyWitness, error) {
	if ws, err := txbuilder.ParseWitnessSet(blob); err == nil && len(ws.VkeyWitnesses) > 0 {
		return ws.VkeyWitnesses, nil
	}

	tx, err := txbuilder.ParseTx(blob)
	if err != nil {
		return nil, errors.NewInvalidWitnessCborError("blob is neither a witness set nor a transaction")
	}

	if tx.WitnessSet == nil || len(tx.WitnessSet.VkeyWitnesses) == 0 {
		return nil, errors.NewInvalidWitnessCborError("blob contains no key witnesses")
	}

	return tx.WitnessSet.VkeyWitnesses, nil
}

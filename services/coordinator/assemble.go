package coordinator

import (
	"context"
	"sort"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
	"github.com/torrejonv/multisig-coordinator/txbuilder"
)

// SubmitResponse carries the chain's hash for the accepted transaction.
type SubmitResponse struct {
	TxHash string `json:"tx_hash"`
}

// Submit assembles the final transaction from a session's body, native
// script and collected witnesses, and hands it to the chain gateway.
// Success removes the session; rejection leaves it intact so more or
// corrected witnesses can still arrive.
func (co *Coordinator) Submit(ctx context.Context, sessionID string) (*SubmitResponse, error) {
	rec, err := co.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	collected := rec.WitnessCount()
	required := int(rec.MRequired())

	if collected < required {
		return nil, errors.New(errors.ERR_NOT_ENOUGH_WITNESSES, "%d of %d witnesses collected", collected, required).WithData(&errors.NotEnoughWitnessesData{
			Collected: collected,
			Required:  required,
		})
	}

	finalTx, err := co.assemble(rec.TxBytes(), rec.ScriptBytes(), rec.Witnesses())
	if err != nil {
		// a stored witness that no longer parses is fatal for the session
		// only; clear it and surface the failure as a rejection
		co.store.Delete(sessionID)
		prometheusCoordinatorSubmit.WithLabelValues("corrupt").Inc()

		return nil, errors.New(errors.ERR_SUBMIT_REJECTED, "session %s assembly failed and was cleared", sessionID, err)
	}

	txHash, err := co.gateway.SubmitTx(ctx, finalTx)
	if err != nil {
		prometheusCoordinatorSubmit.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if err := rec.MarkSubmitted(); err != nil {
		co.logger.Errorf("session %s: %v", sessionID, err)
	}

	co.store.Delete(sessionID)
	prometheusCoordinatorSubmit.WithLabelValues("ok").Inc()

	co.logger.Infof("session %s submitted as %s with %d witnesses", sessionID, txHash, collected)

	return &SubmitResponse{TxHash: txHash}, nil
}

// assemble pairs the original body with a fresh witness set holding the
// native script and every collected key witness, ordered by signer key
// hash so the result is deterministic regardless of arrival order.
func (co *Coordinator) assemble(txBytes, scriptBytes []byte, witnesses map[model.KeyHash][]byte) ([]byte, error) {
	unsigned, err := txbuilder.ParseTx(txBytes)
	if err != nil {
		return nil, err
	}

	script, err := nativescript.Parse(scriptBytes)
	if err != nil {
		return nil, err
	}

	finalWS := &txbuilder.WitnessSet{
		NativeScripts: []*nativescript.Script{script},
	}

	keys := sortedWitnessKeys(witnesses)
	for _, kh := range keys {
		ws, err := txbuilder.ParseWitnessSet(witnesses[kh])
		if err != nil {
			return nil, err
		}

		finalWS.VkeyWitnesses = append(finalWS.VkeyWitnesses, ws.VkeyWitnesses...)
	}

	finalTx := &txbuilder.Tx{
		Body:       unsigned.Body,
		WitnessSet: finalWS,
		IsValid:    true,
	}

	return finalTx.Bytes()
}

func sortedWitnessKeys(witnesses map[model.KeyHash][]byte) []model.KeyHash {
	keys := make([]model.KeyHash, 0, len(witnesses))
	for k := range witnesses {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

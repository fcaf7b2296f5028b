// Package coordinator orchestrates the build-sign-submit cycle: it drives
// the transaction builder, tracks sessions, ingests witnesses against the
// allow-list and assembles the final transaction for submission.
package coordinator

import (
	"context"
	"encoding/hex"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/nativescript"
	"github.com/torrejonv/multisig-coordinator/services/chain"
	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/stores/session"
	"github.com/torrejonv/multisig-coordinator/txbuilder"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

// Coordinator owns the session store for its lifetime and talks to the
// chain only through the gateway.
type Coordinator struct {
	logger   ulogger.Logger
	settings *settings.Settings
	gateway  chain.ClientI
	store    *session.Store
	required []model.KeyHash
}

// New validates the configured signer allow-list once and returns a ready
// coordinator.
func New(logger ulogger.Logger, tSettings *settings.Settings, gateway chain.ClientI, store *session.Store) (*Coordinator, error) {
	initPrometheusMetrics()

	required := make([]model.KeyHash, 0, len(tSettings.Multisig.RequiredKeyHashes))

	for _, s := range tSettings.Multisig.RequiredKeyHashes {
		kh, err := model.NewKeyHashFromHex(s)
		if err != nil {
			return nil, err
		}

		required = append(required, kh)
	}

	return &Coordinator{
		logger:   logger,
		settings: tSettings,
		gateway:  gateway,
		store:    store,
		required: required,
	}, nil
}

// CreateSessionRequest selects the build mode and, depending on it, the
// destination or the explicit output list. An omitted destination falls
// back to the configured default.
type CreateSessionRequest struct {
	Mode        string                      `json:"mode"`
	DestAddress string                      `json:"dest_address,omitempty"`
	Outputs     []txbuilder.RequestedOutput `json:"outputs,omitempty"`
}

// CreateSessionResponse identifies the new session and shows what signing
// it would authorize.
type CreateSessionResponse struct {
	SessionID string             `json:"session_id"`
	Preview   *txbuilder.Preview `json:"preview"`
	M         uint32             `json:"m"`
	Required  []model.KeyHash    `json:"required"`
}

// CreateSession builds the unsigned transaction and opens a signing
// session keyed by its body hash.
func (co *Coordinator) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	mode, err := txbuilder.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	dest := req.DestAddress
	if dest == "" {
		dest = co.settings.Multisig.DestAddress
	}

	opts := &txbuilder.Options{
		MultisigAddress:   co.settings.Multisig.Address,
		PaymentScriptHex:  co.settings.Multisig.PaymentScriptCborHex,
		RequiredKeyHashes: co.required,
		MRequired:         co.settings.Multisig.MRequired,
		Mode:              mode,
		DestAddress:       dest,
		Outputs:           req.Outputs,
		MinAdaLovelace:    co.settings.Coordinator.MinAdaLovelace,
		NetworkID:         co.settings.Chain.NetworkID,
	}

	artifact, err := txbuilder.Build(ctx, co.logger, co.gateway, opts)
	if err != nil {
		prometheusCoordinatorBuild.WithLabelValues("error").Inc()
		return nil, err
	}

	_, err = co.store.Create(artifact.SessionID, &session.Seed{
		BodyBytes:   artifact.BodyBytes,
		TxBytes:     artifact.TxBytes,
		ScriptBytes: artifact.ScriptBytes,
		MRequired:   opts.MRequired,
		Required:    opts.RequiredKeyHashes,
		Preview:     artifact.Preview,
	})
	if err != nil {
		return nil, err
	}

	prometheusCoordinatorBuild.WithLabelValues("ok").Inc()

	return &CreateSessionResponse{
		SessionID: artifact.SessionID,
		Preview:   artifact.Preview,
		M:         opts.MRequired,
		Required:  opts.RequiredKeyHashes,
	}, nil
}

// BodyResponse carries the hex forms signers need.
type BodyResponse struct {
	TxHex     string `json:"tx_hex"`
	TxBodyHex string `json:"tx_body_hex"`
}

// GetBody returns the unsigned transaction and its body for a session.
func (co *Coordinator) GetBody(sessionID string) (*BodyResponse, error) {
	rec, err := co.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return &BodyResponse{
		TxHex:     hex.EncodeToString(rec.TxBytes()),
		TxBodyHex: hex.EncodeToString(rec.BodyBytes()),
	}, nil
}

// WitnessEntry is one collected witness as listed to clients.
type WitnessEntry struct {
	Signer     model.KeyHash `json:"signer"`
	WitnessHex string        `json:"witness_hex"`
}

// ListWitnessesResponse enumerates collected witnesses with the session's
// signing requirements.
type ListWitnessesResponse struct {
	Witnesses []WitnessEntry  `json:"witnesses"`
	M         uint32          `json:"m"`
	Required  []model.KeyHash `json:"required"`
}

// ListWitnesses returns every stored witness for a session, ordered by
// signer key hash.
func (co *Coordinator) ListWitnesses(sessionID string) (*ListWitnessesResponse, error) {
	rec, err := co.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	witnesses := rec.Witnesses()
	entries := make([]WitnessEntry, 0, len(witnesses))

	for _, kh := range rec.CollectedKeyHashes() {
		entries = append(entries, WitnessEntry{
			Signer:     kh,
			WitnessHex: hex.EncodeToString(witnesses[kh]),
		})
	}

	return &ListWitnessesResponse{
		Witnesses: entries,
		M:         rec.MRequired(),
		Required:  rec.Required(),
	}, nil
}

// StatusResponse is the signing progress of one session.
type StatusResponse struct {
	M         uint32             `json:"m"`
	Required  []model.KeyHash    `json:"required"`
	Collected []model.KeyHash    `json:"collected"`
	State     string             `json:"state"`
	Preview   *txbuilder.Preview `json:"preview"`
}

// Status reports how far a session has progressed.
func (co *Coordinator) Status(sessionID string) (*StatusResponse, error) {
	rec, err := co.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return &StatusResponse{
		M:         rec.MRequired(),
		Required:  rec.Required(),
		Collected: rec.CollectedKeyHashes(),
		State:     rec.State(),
		Preview:   rec.Preview(),
	}, nil
}

// ScriptSummary analyzes the configured payment script: threshold, signer
// set, script hash and validity bounds.
func (co *Coordinator) ScriptSummary() (*nativescript.Summary, error) {
	if co.settings.Multisig.PaymentScriptCborHex == "" {
		return nil, errors.NewMissingParamsError("no payment script configured")
	}

	return nativescript.SummarizeHex(co.settings.Multisig.PaymentScriptCborHex)
}

// Reset discards one session, or every session when sessionID is empty.
func (co *Coordinator) Reset(sessionID string) {
	if sessionID == "" {
		co.store.DeleteAll()
		co.logger.Infof("all sessions reset")

		return
	}

	co.store.Delete(sessionID)
	co.logger.Infof("session %s reset", sessionID)
}

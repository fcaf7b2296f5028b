package session

import (
	"context"
	"sort"
	"sync"

	"github.com/looplab/fsm"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/txbuilder"
)

// Session lifecycle states. Ready is derived from the witness count when it
// reaches the threshold; Submitted and Cleared are terminal.
const (
	StateBuilding   = "building"
	StateCollecting = "collecting"
	StateReady      = "ready"
	StateSubmitted  = "submitted"
	StateCleared    = "cleared"
)

const (
	eventBuild  = "build"
	eventReady  = "ready"
	eventSubmit = "submit"
	eventClear  = "clear"
)

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		StateBuilding,
		fsm.Events{
			{Name: eventBuild, Src: []string{StateBuilding}, Dst: StateCollecting},
			{Name: eventReady, Src: []string{StateCollecting}, Dst: StateReady},
			{Name: eventSubmit, Src: []string{StateReady}, Dst: StateSubmitted},
			{Name: eventClear, Src: []string{StateBuilding, StateCollecting, StateReady}, Dst: StateCleared},
		},
		fsm.Callbacks{},
	)
}

// Record is one live signing session. All fields are private; mutation goes
// through methods that hold the record lock.
type Record struct {
	mu sync.RWMutex

	sessionID   string
	bodyBytes   []byte
	txBytes     []byte
	scriptBytes []byte
	mRequired   uint32
	required    []model.KeyHash
	requiredSet model.KeyHashSet
	preview     *txbuilder.Preview
	witnesses   map[model.KeyHash][]byte
	lifecycle   *fsm.FSM
}

func newRecord(id string, seed *Seed) (*Record, error) {
	if id == "" || len(seed.BodyBytes) == 0 || len(seed.TxBytes) == 0 {
		return nil, errors.NewMissingParamsError("session seed incomplete")
	}

	if seed.MRequired == 0 || len(seed.Required) == 0 {
		return nil, errors.NewMissingParamsError("session needs a threshold and an allow-list")
	}

	r := &Record{
		sessionID:   id,
		bodyBytes:   seed.BodyBytes,
		txBytes:     seed.TxBytes,
		scriptBytes: seed.ScriptBytes,
		mRequired:   seed.MRequired,
		required:    seed.Required,
		requiredSet: model.NewKeyHashSet(seed.Required),
		preview:     seed.Preview,
		witnesses:   map[model.KeyHash][]byte{},
		lifecycle:   newLifecycle(),
	}

	// the record only exists once its build artifact does
	if err := r.lifecycle.Event(context.Background(), eventBuild); err != nil {
		return nil, errors.New(errors.ERR_ERROR, "session %s lifecycle init failed", id, err)
	}

	return r, nil
}

// SessionID returns the body-hash id.
func (r *Record) SessionID() string {
	return r.sessionID
}

// BodyBytes returns the serialized body.
func (r *Record) BodyBytes() []byte {
	return r.bodyBytes
}

// TxBytes returns the serialized unsigned transaction (body plus attached
// native script).
func (r *Record) TxBytes() []byte {
	return r.txBytes
}

// ScriptBytes returns the serialized native script.
func (r *Record) ScriptBytes() []byte {
	return r.scriptBytes
}

// MRequired returns the signing threshold.
func (r *Record) MRequired() uint32 {
	return r.mRequired
}

// Required returns the ordered allow-list.
func (r *Record) Required() []model.KeyHash {
	return r.required
}

// Allowed reports whether kh is on the allow-list.
func (r *Record) Allowed(kh model.KeyHash) bool {
	return r.requiredSet.Contains(kh)
}

// Preview returns the build preview.
func (r *Record) Preview() *txbuilder.Preview {
	return r.preview
}

// SetWitness stores a witness for kh, replacing any previous one for the
// same key. The allow-list invariant is enforced here as a last line of
// defense; intake filters first.
func (r *Record) SetWitness(kh model.KeyHash, witnessBytes []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.requiredSet.Contains(kh) {
		return errors.NewSignerNotAllowedError("key hash %s is not an allowed signer", kh)
	}

	r.witnesses[kh] = witnessBytes

	if uint32(len(r.witnesses)) >= r.mRequired && r.lifecycle.Current() == StateCollecting {
		if err := r.lifecycle.Event(context.Background(), eventReady); err != nil {
			return errors.New(errors.ERR_ERROR, "session %s lifecycle transition failed", r.sessionID, err)
		}
	}

	return nil
}

// Witness returns the stored witness for kh, nil if absent.
func (r *Record) Witness(kh model.KeyHash) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.witnesses[kh]
}

// Witnesses returns a copy of the witness map.
func (r *Record) Witnesses() map[model.KeyHash][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[model.KeyHash][]byte, len(r.witnesses))
	for k, v := range r.witnesses {
		out[k] = v
	}

	return out
}

// CollectedKeyHashes returns the signer identities present, sorted.
func (r *Record) CollectedKeyHashes() []model.KeyHash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.KeyHash, 0, len(r.witnesses))
	for k := range r.witnesses {
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// WitnessCount returns the number of distinct signers collected.
func (r *Record) WitnessCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.witnesses)
}

// State returns the lifecycle state.
func (r *Record) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lifecycle.Current()
}

// MarkSubmitted moves the session to its successful terminal state. It
// fails if the threshold was never reached, which callers treat as an
// internal invariant violation (the assembler checks the count first).
func (r *Record) MarkSubmitted() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lifecycle.Event(context.Background(), eventSubmit); err != nil {
		return errors.New(errors.ERR_ERROR, "session %s cannot be marked submitted from %s", r.sessionID, r.lifecycle.Current(), err)
	}

	return nil
}

func (r *Record) markCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lifecycle.Can(eventClear) {
		_ = r.lifecycle.Event(context.Background(), eventClear)
	}
}

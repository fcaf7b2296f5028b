package chain

import (
	"context"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/model"
)

// Mock is a configurable in-memory ClientI for tests. Zero value is usable;
// set the function fields to override behavior, or the data fields for
// canned responses.
type Mock struct {
	mu sync.Mutex

	MockUTxOs  []*model.UTxO
	MockParams *ProtocolParams

	UTXOsFunc              func(ctx context.Context, address string) ([]*model.UTxO, error)
	ProtocolParametersFunc func(ctx context.Context) (*ProtocolParams, error)
	SubmitTxFunc           func(ctx context.Context, rawTx []byte) (string, error)

	SubmitCalls    int
	SubmittedBytes [][]byte
}

// compile-time interface check
var _ ClientI = (*Mock)(nil)

func (m *Mock) UTXOs(ctx context.Context, address string) ([]*model.UTxO, error) {
	if m.UTXOsFunc != nil {
		return m.UTXOsFunc(ctx, address)
	}

	return m.MockUTxOs, nil
}

func (m *Mock) ProtocolParameters(ctx context.Context) (*ProtocolParams, error) {
	if m.ProtocolParametersFunc != nil {
		return m.ProtocolParametersFunc(ctx)
	}

	if m.MockParams != nil {
		return m.MockParams, nil
	}

	return &ProtocolParams{MinFeeA: 44, MinFeeB: 155381, MaxTxSize: 16384, MaxValSize: 5000, CoinsPerUTxOSize: 4310}, nil
}

func (m *Mock) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	m.mu.Lock()
	m.SubmitCalls++
	m.SubmittedBytes = append(m.SubmittedBytes, rawTx)
	m.mu.Unlock()

	if m.SubmitTxFunc != nil {
		return m.SubmitTxFunc(ctx, rawTx)
	}

	hash, err := HashSubmitted(rawTx)
	if err != nil {
		return "", err
	}

	return hash, nil
}

func (m *Mock) Health(ctx context.Context) error {
	return nil
}

// HashSubmitted derives a stand-in transaction hash from raw bytes, so the
// mock returns something shaped like the real thing.
func HashSubmitted(rawTx []byte) (string, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}

	if _, err = h.Write(rawTx); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

const (
	testBaseURL = "https://indexer.test/api/v0"
	testAddr    = "addr_test1qtestaddress"
	testPolicy  = "d894897411707efa755a76deb66d26dfd50593f2e70863e1661e98a0"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	tSettings := &settings.Settings{
		Chain: settings.ChainSettings{
			Network:          "preprod",
			IndexerURL:       testBaseURL,
			IndexerProjectID: "test-project-id",
			IndexerTimeout:   5 * time.Second,
			RetryCount:       2,
			RetryBackoff:     time.Millisecond,
		},
	}

	c, err := NewClient(ulogger.NewVerboseTestLogger(t), tSettings)
	require.NoError(t, err)

	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return c
}

func TestNewClientRequiresProjectID(t *testing.T) {
	_, err := NewClient(ulogger.NewVerboseTestLogger(t), &settings.Settings{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingParams))
}

func TestUTXOs(t *testing.T) {
	c := newTestClient(t)

	var gotProjectID string

	httpmock.RegisterResponder(http.MethodGet, "=~/addresses/.*/utxos",
		func(req *http.Request) (*http.Response, error) {
			gotProjectID = req.Header.Get("project_id")
			assert.Equal(t, "desc", req.URL.Query().Get("order"))

			return httpmock.NewJsonResponse(http.StatusOK, []map[string]interface{}{
				{
					"tx_hash":      strings.Repeat("ab", 32),
					"output_index": 0,
					"amount": []map[string]string{
						{"unit": "lovelace", "quantity": "10000000"},
						{"unit": testPolicy + "aabb", "quantity": "7"},
					},
				},
			})
		})

	utxos, err := c.UTXOs(context.Background(), testAddr)
	require.NoError(t, err)
	require.Len(t, utxos, 1)

	assert.Equal(t, "test-project-id", gotProjectID)
	assert.Equal(t, uint64(10_000_000), utxos[0].Value.Coin)
	assert.Equal(t, uint64(7), utxos[0].Value.AssetQty(testPolicy, "aabb"))
}

func TestUTXOsPaginates(t *testing.T) {
	c := newTestClient(t)

	fullPage := make([]map[string]interface{}, utxoPageSize)
	for i := range fullPage {
		fullPage[i] = map[string]interface{}{
			"tx_hash":      strings.Repeat("cd", 32),
			"output_index": i,
			"amount":       []map[string]string{{"unit": "lovelace", "quantity": "1000000"}},
		}
	}

	lastPage := fullPage[:3]

	httpmock.RegisterResponder(http.MethodGet, "=~/addresses/.*/utxos",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("page") == "1" {
				return httpmock.NewJsonResponse(http.StatusOK, fullPage)
			}

			return httpmock.NewJsonResponse(http.StatusOK, lastPage)
		})

	utxos, err := c.UTXOs(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Len(t, utxos, utxoPageSize+3)
}

func TestUTXOsUnknownAddressIsEmpty(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "=~/addresses/.*/utxos",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"Not Found"}`))

	utxos, err := c.UTXOs(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Empty(t, utxos)
}

func TestUTXOsIndexerErrorNotRetried(t *testing.T) {
	c := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, "=~/addresses/.*/utxos",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
		})

	_, err := c.UTXOs(context.Background(), testAddr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrChainIndexerStatus))
	assert.Equal(t, 1, calls)

	var data *errors.ChainErrorData
	require.True(t, errors.AsData(err, &data))
	assert.Equal(t, http.StatusInternalServerError, data.StatusCode)
	assert.Contains(t, data.Diagnostic, "boom")
}

func TestProtocolParameters(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/epochs/latest/parameters",
		httpmock.NewStringResponder(http.StatusOK, `{
			"min_fee_a": 44,
			"min_fee_b": 155381,
			"pool_deposit": "500000000",
			"key_deposit": "2000000",
			"max_tx_size": 16384,
			"max_val_size": "5000",
			"coins_per_utxo_size": "4310"
		}`))

	params, err := c.ProtocolParameters(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(44), params.MinFeeA)
	assert.Equal(t, uint64(155381), params.MinFeeB)
	assert.Equal(t, uint64(500_000_000), params.PoolDeposit)
	assert.Equal(t, uint64(2_000_000), params.KeyDeposit)
	assert.Equal(t, uint64(16384), params.MaxTxSize)
	assert.Equal(t, uint64(5000), params.MaxValSize)
	assert.Equal(t, uint64(4310), params.CoinsPerUTxOSize)
}

func TestProtocolParametersLegacyCoinsPerUTxOByte(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/epochs/latest/parameters",
		httpmock.NewStringResponder(http.StatusOK, `{
			"min_fee_a": 44,
			"min_fee_b": 155381,
			"coins_per_utxo_byte": "4310"
		}`))

	params, err := c.ProtocolParameters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4310), params.CoinsPerUTxOSize)
}

func TestSubmitTx(t *testing.T) {
	c := newTestClient(t)

	txHash := strings.Repeat("ef", 32)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/tx/submit",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/cbor", req.Header.Get("Content-Type"))
			assert.Equal(t, "test-project-id", req.Header.Get("project_id"))

			return httpmock.NewStringResponse(http.StatusOK, fmt.Sprintf("%q", txHash)), nil
		})

	hash, err := c.SubmitTx(context.Background(), []byte{0x84, 0xa1})
	require.NoError(t, err)
	assert.Equal(t, txHash, hash)
}

func TestSubmitTxRejected(t *testing.T) {
	c := newTestClient(t)

	diagnostic := map[string]interface{}{
		"error":   "Bad Request",
		"message": "FeeTooSmallUTxO",
	}
	diagJSON, err := json.Marshal(diagnostic)
	require.NoError(t, err)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/tx/submit",
		httpmock.NewStringResponder(http.StatusBadRequest, string(diagJSON)))

	_, err = c.SubmitTx(context.Background(), []byte{0x84, 0xa1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSubmitRejected))

	var data *errors.ChainErrorData
	require.True(t, errors.AsData(err, &data))
	assert.Contains(t, data.Diagnostic, "FeeTooSmallUTxO")
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/health",
		httpmock.NewStringResponder(http.StatusOK, `{"is_healthy": true}`))

	require.NoError(t, c.Health(context.Background()))

	httpmock.Reset()
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/health",
		httpmock.NewStringResponder(http.StatusOK, `{"is_healthy": false}`))

	require.Error(t, c.Health(context.Background()))
}

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/ulogger"
	"github.com/torrejonv/multisig-coordinator/util/retry"
)

const (
	projectIDHeader = "project_id"
	utxoPageSize    = 100
	maxErrorBody    = 4096
)

// Client talks to a Blockfrost-compatible chain indexer over HTTP. Each
// method is one scoped request (UTxO listing may page, but within the one
// call); idempotent reads are retried, submission never is.
type Client struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	baseURL    string
	projectID  string
	httpClient *http.Client
}

// compile-time interface check
var _ ClientI = (*Client)(nil)

// NewClient builds the indexer client from settings.
func NewClient(logger ulogger.Logger, tSettings *settings.Settings) (*Client, error) {
	if tSettings.Chain.IndexerProjectID == "" {
		return nil, errors.NewMissingParamsError("indexer_project_id is required")
	}

	return &Client{
		logger:    logger,
		settings:  tSettings,
		baseURL:   strings.TrimRight(tSettings.Chain.IndexerURL, "/"),
		projectID: tSettings.Chain.IndexerProjectID,
		httpClient: &http.Client{
			Timeout: tSettings.Chain.IndexerTimeout,
		},
	}, nil
}

type utxoResponse struct {
	TxHash      string            `json:"tx_hash"`
	OutputIndex uint32            `json:"output_index"`
	Amount      []model.WireAsset `json:"amount"`
}

// UTXOs lists every unspent output at address, paging through the indexer
// within this one call so the builder sees a single stable snapshot.
func (c *Client) UTXOs(ctx context.Context, address string) ([]*model.UTxO, error) {
	return retry.Retry(ctx, c.logger, func() ([]*model.UTxO, error) {
		return c.utxos(ctx, address)
	},
		retry.WithRetryCount(c.settings.Chain.RetryCount),
		retry.WithBackoffDurationType(c.settings.Chain.RetryBackoff),
		retry.WithMessage("retrying utxo fetch"),
	)
}

func (c *Client) utxos(ctx context.Context, address string) ([]*model.UTxO, error) {
	var out []*model.UTxO

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/addresses/%s/utxos?order=desc&count=%d&page=%d",
			c.baseURL, url.PathEscape(address), utxoPageSize, page)

		body, err := c.doGet(ctx, endpoint)
		if err != nil {
			// an address the indexer has never seen has no utxos
			var data *errors.ChainErrorData
			if errors.AsData(err, &data) && data.StatusCode == http.StatusNotFound {
				return nil, nil
			}

			return nil, err
		}

		var batch []utxoResponse
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, errors.NewChainNetworkError("utxo response is not valid json", err)
		}

		for _, item := range batch {
			value, err := model.NewValue(0).AddAssetsFromWire(item.Amount)
			if err != nil {
				return nil, err
			}

			utxo, err := model.NewUTxO(item.TxHash, item.OutputIndex, value)
			if err != nil {
				return nil, err
			}

			out = append(out, utxo)
		}

		if len(batch) < utxoPageSize {
			return out, nil
		}
	}
}

type parametersResponse struct {
	MinFeeA          json.Number `json:"min_fee_a"`
	MinFeeB          json.Number `json:"min_fee_b"`
	PoolDeposit      string      `json:"pool_deposit"`
	KeyDeposit       string      `json:"key_deposit"`
	MaxTxSize        json.Number `json:"max_tx_size"`
	MaxValSize       string      `json:"max_val_size"`
	CoinsPerUTxOSize string      `json:"coins_per_utxo_size"`
	CoinsPerUTxOByte string      `json:"coins_per_utxo_byte"`
}

// ProtocolParameters fetches the current epoch's parameters.
func (c *Client) ProtocolParameters(ctx context.Context) (*ProtocolParams, error) {
	return retry.Retry(ctx, c.logger, func() (*ProtocolParams, error) {
		return c.protocolParameters(ctx)
	},
		retry.WithRetryCount(c.settings.Chain.RetryCount),
		retry.WithBackoffDurationType(c.settings.Chain.RetryBackoff),
		retry.WithMessage("retrying parameter fetch"),
	)
}

func (c *Client) protocolParameters(ctx context.Context) (*ProtocolParams, error) {
	body, err := c.doGet(ctx, c.baseURL+"/epochs/latest/parameters")
	if err != nil {
		return nil, err
	}

	var resp parametersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewChainNetworkError("parameters response is not valid json", err)
	}

	coinsPerUTxO := resp.CoinsPerUTxOSize
	if coinsPerUTxO == "" {
		coinsPerUTxO = resp.CoinsPerUTxOByte
	}

	params := &ProtocolParams{}

	for _, f := range []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"min_fee_a", resp.MinFeeA.String(), &params.MinFeeA},
		{"min_fee_b", resp.MinFeeB.String(), &params.MinFeeB},
		{"pool_deposit", resp.PoolDeposit, &params.PoolDeposit},
		{"key_deposit", resp.KeyDeposit, &params.KeyDeposit},
		{"max_tx_size", resp.MaxTxSize.String(), &params.MaxTxSize},
		{"max_val_size", resp.MaxValSize, &params.MaxValSize},
		{"coins_per_utxo_size", coinsPerUTxO, &params.CoinsPerUTxOSize},
	} {
		if f.raw == "" {
			continue
		}

		v, err := strconv.ParseUint(f.raw, 10, 64)
		if err != nil {
			return nil, errors.NewChainNetworkError("parameter %s=%q is not a decimal uint64", f.name, f.raw, err)
		}

		*f.dst = v
	}

	if params.MinFeeA == 0 && params.MinFeeB == 0 {
		return nil, errors.NewChainNetworkError("parameters response is missing the fee coefficients")
	}

	return params, nil
}

// SubmitTx posts raw transaction bytes. Acceptance returns the node's
// transaction hash; rejection surfaces the node's diagnostic.
func (c *Client) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx/submit", bytes.NewReader(rawTx))
	if err != nil {
		return "", errors.NewChainNetworkError("building submit request failed", err)
	}

	req.Header.Set(projectIDHeader, c.projectID)
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError("submit", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", errors.NewChainNetworkError("reading submit response failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New(errors.ERR_SUBMIT_REJECTED, "node rejected the transaction").WithData(&errors.ChainErrorData{
			StatusCode: resp.StatusCode,
			Diagnostic: string(body),
		})
	}

	// the hash comes back as a json string
	hash := strings.Trim(strings.TrimSpace(string(body)), `"`)

	c.logger.Infof("transaction %s submitted", hash)

	return strings.ToLower(hash), nil
}

// Health checks indexer reachability.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.doGet(ctx, c.baseURL+"/health")
	if err != nil {
		return err
	}

	var resp struct {
		IsHealthy bool `json:"is_healthy"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.NewChainNetworkError("health response is not valid json", err)
	}

	if !resp.IsHealthy {
		return errors.NewChainNetworkError("indexer reports unhealthy")
	}

	return nil
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewChainNetworkError("building request for %s failed", endpoint, err)
	}

	req.Header.Set(projectIDHeader, c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewChainNetworkError("reading response from %s failed", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}

		return nil, errors.New(errors.ERR_CHAIN_INDEXER_STATUS, "indexer returned %d for %s", resp.StatusCode, endpoint).WithData(&errors.ChainErrorData{
			StatusCode: resp.StatusCode,
			Diagnostic: string(body),
		})
	}

	return body, nil
}

func classifyTransportError(what string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewChainTimeoutError("%s timed out", what, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewChainTimeoutError("%s deadline exceeded", what, err)
	}

	return errors.NewChainNetworkError("%s failed", what, err)
}

// Package settings loads process configuration once at startup via gocore
// (environment or settings.conf) into a plain struct that is passed down by
// pointer. Services never read config themselves.
package settings

import (
	"strings"
	"time"
)

const (
	mainnetIndexerURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	preprodIndexerURL = "https://cardano-preprod.blockfrost.io/api/v0"
)

// NewSettings builds the process settings, applying defaults for anything
// not present in the config source. Unknown network names panic: the
// process cannot do anything useful pointed at a chain it does not know.
func NewSettings() *Settings {
	network := getString("network", "preprod")

	var (
		networkID  uint8
		indexerURL string
	)

	switch network {
	case "mainnet":
		networkID = 1
		indexerURL = mainnetIndexerURL
	case "preprod":
		networkID = 0
		indexerURL = preprodIndexerURL
	default:
		panic("unknown network: " + network)
	}

	if override := getString("indexer_url", ""); override != "" {
		indexerURL = override
	}

	return &Settings{
		ClientName:        getString("clientName", "multisig-coordinator"),
		LogLevel:          getString("logLevel", "INFO"),
		StatsPrefix:       getString("stats_prefix", ""),
		MetricsListenAddr: getString("metrics_httpListenAddress", ":9090"),
		Chain: ChainSettings{
			Network:          network,
			NetworkID:        networkID,
			IndexerURL:       indexerURL,
			IndexerProjectID: getString("indexer_project_id", ""),
			IndexerTimeout:   getDuration("indexer_timeout", 30*time.Second),
			RetryCount:       getInt("indexer_retryCount", 3),
			RetryBackoff:     getDuration("indexer_retryBackoff", 500*time.Millisecond),
		},
		Multisig: MultisigSettings{
			Address:              getString("multisig_address", ""),
			PaymentScriptCborHex: getString("payment_script_cbor_hex", ""),
			RequiredKeyHashes:    splitKeyHashes(getString("required_key_hashes", "")),
			//nolint:gosec // config values are operator-controlled
			MRequired:   uint32(getInt("m_required", 0)),
			DestAddress: getString("dest_address", ""),
		},
		Coordinator: CoordinatorSettings{
			HTTPListenAddress: getString("coordinator_httpListenAddress", ":8088"),
			AllowedOrigin:     getString("allowed_origin", "*"),
			//nolint:gosec // config values are operator-controlled
			MinAdaLovelace: uint64(getInt("min_ada_lovelace", 2_000_000)),
			SessionTTL:     getDuration("session_ttl", 24*time.Hour),
			EchoDebug:      getBool("ECHO_DEBUG", false),
		},
	}
}

// splitKeyHashes parses the pipe-separated allow-list form used in config,
// normalizing to lowercase and dropping empty segments.
func splitKeyHashes(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

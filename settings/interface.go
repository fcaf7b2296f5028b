package settings

import (
	"time"
)

// ChainSettings holds everything needed to talk to the chain indexer.
type ChainSettings struct {
	// Network selects the indexer base URL and the address network id.
	// Valid values are "mainnet" and "preprod".
	Network string
	// NetworkID is 1 for mainnet, 0 for preprod.
	NetworkID uint8
	// IndexerURL overrides the network-derived indexer base URL when set.
	IndexerURL string
	// IndexerProjectID is the opaque auth header value. Required.
	IndexerProjectID string
	// IndexerTimeout is the per-call deadline for gateway requests.
	IndexerTimeout time.Duration
	// RetryCount and RetryBackoff bound retries of idempotent reads.
	RetryCount   int
	RetryBackoff time.Duration
}

// MultisigSettings describes the controlled script address and its signers.
// These are fixed per deployment; only DestAddress can be overridden by a
// session request.
type MultisigSettings struct {
	// Address is the bech32 script address funds are spent from.
	Address string
	// PaymentScriptCborHex is the serialized native script whose hash is
	// the address's payment credential.
	PaymentScriptCborHex string
	// RequiredKeyHashes is the ordered allow-list of signer key hashes
	// (lowercase hex).
	RequiredKeyHashes []string
	// MRequired is the signing threshold.
	MRequired uint32
	// DestAddress is the default sweep destination.
	DestAddress string
}

// CoordinatorSettings holds the HTTP surface and session behavior.
type CoordinatorSettings struct {
	HTTPListenAddress string
	AllowedOrigin     string
	// MinAdaLovelace is the coin floor applied to token-carrying outputs.
	MinAdaLovelace uint64
	// SessionTTL bounds how long an unfinished session stays in memory.
	SessionTTL time.Duration
	EchoDebug  bool
}

// Settings is the process-wide configuration, populated once at startup by
// NewSettings and passed down by pointer. Nothing re-reads config after
// that.
type Settings struct {
	ClientName        string
	LogLevel          string
	StatsPrefix       string
	MetricsListenAddr string
	Chain             ChainSettings
	Multisig          MultisigSettings
	Coordinator       CoordinatorSettings
}

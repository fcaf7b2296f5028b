package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines whether a chain-gateway call that failed with
// err is worth retrying. Economic and authorization failures are never
// retryable: retrying a build that lacked ada won't make ada appear.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_CHAIN_TIMEOUT, ERR_CHAIN_NETWORK:
			return true
		default:
			return false
		}
	}

	return false
}

// IsChainError reports whether err originated from the chain gateway.
func IsChainError(err error) bool {
	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_CHAIN_TIMEOUT, ERR_CHAIN_NETWORK, ERR_CHAIN_INDEXER_STATUS:
			return true
		}
	}

	return false
}

// IsContextError reports whether err is a context cancellation or deadline,
// surfaced directly or wrapped as ERR_CONTEXT_CANCELED.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		return tErr.Code() == ERR_CONTEXT_CANCELED
	}

	return false
}

// GetErrorCategory buckets err for logging and metrics.
func GetErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if IsContextError(err) {
		return "context"
	}

	if IsChainError(err) {
		return "chain"
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_MISSING_PARAMS, ERR_INVALID_MODE, ERR_INVALID_ADDRESS, ERR_INVALID_SCRIPT, ERR_INVALID_UNIT, ERR_INVALID_WITNESS_CBOR:
			return "validation"
		case ERR_SIGNER_NOT_ALLOWED:
			return "authorization"
		case ERR_SESSION_NOT_FOUND, ERR_NOT_ENOUGH_WITNESSES:
			return "session"
		case ERR_INSUFFICIENT_ADA, ERR_INSUFFICIENT_TOKENS, ERR_CHANGE_BELOW_MIN_ADA:
			return "value"
		case ERR_SUBMIT_REJECTED:
			return "submission"
		}
	}

	return "unknown"
}

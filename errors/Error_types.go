package errors

// Predefined sentinel errors, one per ERR code, so callers can use
// errors.Is(err, errors.ErrSessionNotFound) without constructing a fresh
// value.
var (
	ErrUnknown             = New(ERR_UNKNOWN, "unknown error")
	ErrMissingParams       = New(ERR_MISSING_PARAMS, "missing required parameters")
	ErrInvalidMode         = New(ERR_INVALID_MODE, "invalid build mode")
	ErrInvalidAddress      = New(ERR_INVALID_ADDRESS, "invalid address")
	ErrInvalidScript       = New(ERR_INVALID_SCRIPT, "invalid native script")
	ErrInvalidUnit         = New(ERR_INVALID_UNIT, "invalid asset unit")
	ErrInvalidWitnessCbor  = New(ERR_INVALID_WITNESS_CBOR, "invalid witness cbor")
	ErrSignerNotAllowed    = New(ERR_SIGNER_NOT_ALLOWED, "signer not allowed")
	ErrSessionNotFound     = New(ERR_SESSION_NOT_FOUND, "session not found")
	ErrNotEnoughWitnesses  = New(ERR_NOT_ENOUGH_WITNESSES, "not enough witnesses")
	ErrInsufficientAda     = New(ERR_INSUFFICIENT_ADA, "insufficient ada")
	ErrInsufficientTokens  = New(ERR_INSUFFICIENT_TOKENS, "insufficient tokens")
	ErrChangeBelowMinAda   = New(ERR_CHANGE_BELOW_MIN_ADA, "change output below minimum ada")
	ErrChainTimeout        = New(ERR_CHAIN_TIMEOUT, "chain gateway timeout")
	ErrChainNetwork        = New(ERR_CHAIN_NETWORK, "chain gateway network error")
	ErrChainIndexerStatus  = New(ERR_CHAIN_INDEXER_STATUS, "chain indexer returned an error status")
	ErrSubmitRejected      = New(ERR_SUBMIT_REJECTED, "transaction submission rejected")
	ErrContextCanceled     = New(ERR_CONTEXT_CANCELED, "context canceled")
)

// error constructor functions, one per code, mirroring the predefined
// sentinels above but allowing a formatted message and an optional wrapped
// cause.

func NewMissingParamsError(message string, params ...interface{}) error {
	return New(ERR_MISSING_PARAMS, message, params...)
}

func NewInvalidModeError(message string, params ...interface{}) error {
	return New(ERR_INVALID_MODE, message, params...)
}

func NewInvalidAddressError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ADDRESS, message, params...)
}

func NewInvalidScriptError(message string, params ...interface{}) error {
	return New(ERR_INVALID_SCRIPT, message, params...)
}

func NewInvalidUnitError(message string, params ...interface{}) error {
	return New(ERR_INVALID_UNIT, message, params...)
}

func NewInvalidWitnessCborError(message string, params ...interface{}) error {
	return New(ERR_INVALID_WITNESS_CBOR, message, params...)
}

func NewSignerNotAllowedError(message string, params ...interface{}) error {
	return New(ERR_SIGNER_NOT_ALLOWED, message, params...)
}

func NewSessionNotFoundError(message string, params ...interface{}) error {
	return New(ERR_SESSION_NOT_FOUND, message, params...)
}

func NewNotEnoughWitnessesError(message string, params ...interface{}) error {
	return New(ERR_NOT_ENOUGH_WITNESSES, message, params...)
}

func NewInsufficientAdaError(message string, params ...interface{}) error {
	return New(ERR_INSUFFICIENT_ADA, message, params...)
}

func NewInsufficientTokensError(message string, params ...interface{}) error {
	return New(ERR_INSUFFICIENT_TOKENS, message, params...)
}

func NewChangeBelowMinAdaError(message string, params ...interface{}) error {
	return New(ERR_CHANGE_BELOW_MIN_ADA, message, params...)
}

func NewChainTimeoutError(message string, params ...interface{}) error {
	return New(ERR_CHAIN_TIMEOUT, message, params...)
}

func NewChainNetworkError(message string, params ...interface{}) error {
	return New(ERR_CHAIN_NETWORK, message, params...)
}

func NewChainIndexerStatusError(message string, params ...interface{}) error {
	return New(ERR_CHAIN_INDEXER_STATUS, message, params...)
}

func NewSubmitRejectedError(message string, params ...interface{}) error {
	return New(ERR_SUBMIT_REJECTED, message, params...)
}

func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}

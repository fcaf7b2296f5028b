package coordinator

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/torrejonv/multisig-coordinator/errors"
)

// errorResponse is the standard error envelope across all API endpoints:
// a stable kind string, the human message and optional structured detail.
type errorResponse struct {
	Status int32       `json:"status"`
	Kind   string      `json:"kind"`
	Err    string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

// sendError maps a coordinator error onto an HTTP status and the standard
// JSON envelope. Unrecognized errors become 500s with the UNKNOWN kind.
func sendError(c echo.Context, err error) error {
	var tErr *errors.Error
	if !errors.As(err, &tErr) {
		return c.JSON(http.StatusInternalServerError, &errorResponse{
			Status: http.StatusInternalServerError,
			Kind:   errors.ERR_UNKNOWN.String(),
			Err:    err.Error(),
		})
	}

	status := statusForCode(tErr.Code())

	resp := &errorResponse{
		Status: int32(status), //nolint:gosec // http statuses fit easily
		Kind:   tErr.Code().String(),
		Err:    tErr.Error(),
	}

	if data := tErr.Data(); data != nil {
		resp.Detail = data
	}

	return c.JSON(status, resp)
}

func statusForCode(code errors.ERR) int {
	switch code {
	case errors.ERR_MISSING_PARAMS,
		errors.ERR_INVALID_MODE,
		errors.ERR_INVALID_ADDRESS,
		errors.ERR_INVALID_SCRIPT,
		errors.ERR_INVALID_UNIT,
		errors.ERR_INVALID_WITNESS_CBOR:
		return http.StatusBadRequest

	case errors.ERR_SIGNER_NOT_ALLOWED:
		return http.StatusForbidden

	case errors.ERR_SESSION_NOT_FOUND:
		return http.StatusNotFound

	case errors.ERR_NOT_ENOUGH_WITNESSES:
		return http.StatusConflict

	case errors.ERR_INSUFFICIENT_ADA,
		errors.ERR_INSUFFICIENT_TOKENS,
		errors.ERR_CHANGE_BELOW_MIN_ADA:
		return http.StatusUnprocessableEntity

	case errors.ERR_CHAIN_TIMEOUT,
		errors.ERR_CHAIN_NETWORK,
		errors.ERR_CHAIN_INDEXER_STATUS,
		errors.ERR_SUBMIT_REJECTED:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/ratelimit"
)

// ErrOwnerNotFound is returned by an [OwnerFunc] when the resource does not exist.
var ErrOwnerNotFound = errors.New("resource not found")

// Machine-readable error codes carried in response bodies.
const (
	CodeMissingToken     = "missing_token"
	CodeMalformedToken   = "malformed_token"
	CodeInvalidToken     = "invalid_token"
	CodeTokenExpired     = "token_expired"
	CodeInsufficientRole = "insufficient_role"
	CodeNotOwner         = "not_owner"
	CodeRateLimited      = "rate_limited"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal_error"
)

var messages = map[string]string{
	CodeMissingToken:     "authentication required",
	CodeMalformedToken:   "malformed authorization header",
	CodeInvalidToken:     "invalid token",
	CodeTokenExpired:     "session expired",
	CodeInsufficientRole: "insufficient role",
	CodeNotOwner:         "not the owner of this resource",
	CodeRateLimited:      "too many requests",
	CodeNotFound:         "resource not found",
	CodeInternal:         "internal error",
}

// ErrorBody is the JSON shape of every rejection.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps err to an HTTP status. storageStatus is used for gatekeep.ErrStorage
// (401 or 500); zero means 401.
func StatusFor(err error, storageStatus int) int {
	switch {
	case gatekeep.IsUnauthenticated(err):
		return http.StatusUnauthorized
	case gatekeep.IsForbidden(err):
		return http.StatusForbidden
	case errors.Is(err, gatekeep.ErrRateLimitExceeded), errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrOwnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, gatekeep.ErrStorage):
		if storageStatus == 0 {
			return http.StatusUnauthorized
		}
		return storageStatus
	default:
		return http.StatusInternalServerError
	}
}

// CodeFor maps err to the body code. A storage failure answered with 401 reads as
// an invalid token so no internals are exposed.
func CodeFor(err error, storageStatus int) string {
	switch {
	case errors.Is(err, gatekeep.ErrMissingToken):
		return CodeMissingToken
	case errors.Is(err, gatekeep.ErrMalformedToken):
		return CodeMalformedToken
	case errors.Is(err, gatekeep.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, gatekeep.ErrTokenNotFound), errors.Is(err, gatekeep.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, gatekeep.ErrInsufficientRole):
		return CodeInsufficientRole
	case errors.Is(err, gatekeep.ErrNotOwner):
		return CodeNotOwner
	case errors.Is(err, gatekeep.ErrRateLimitExceeded), errors.Is(err, ratelimit.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrOwnerNotFound):
		return CodeNotFound
	case errors.Is(err, gatekeep.ErrStorage) && StatusFor(err, storageStatus) == http.StatusUnauthorized:
		return CodeInvalidToken
	default:
		return CodeInternal
	}
}

// WriteError writes the JSON rejection for err.
func WriteError(w http.ResponseWriter, err error, storageStatus int) {
	status := StatusFor(err, storageStatus)
	code := CodeFor(err, storageStatus)
	writeJSON(w, status, ErrorBody{Code: code, Message: messages[code]})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

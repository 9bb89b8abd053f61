package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"daypass/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// Reserved envelope keys. Details never overwrite them.
const (
	keySuccess   = "success"
	keyMessage   = "message"
	keyCode      = "code"
	keyRequestID = "request_id"
)

// JSON writes data with the given status. A marshalling failure degrades to
// a plain 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			keySuccess:   false,
			keyMessage:   "failed to marshal response",
			keyCode:      types.ErrCodeInternalUnexpected,
			keyRequestID: types.GetRequestID(r.Context()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Result writes the flat envelope {success, message, ...details}. Details
// colliding with the reserved keys are dropped.
func Result(w http.ResponseWriter, r *http.Request, status int, success bool, message string, details map[string]any) {
	body := make(map[string]any, len(details)+3)
	for k, v := range details {
		body[k] = v
	}
	body[keySuccess] = success
	body[keyMessage] = message
	if id := types.GetRequestID(r.Context()); id != "" {
		body[keyRequestID] = id
	}
	JSON(w, r, status, body)
}

// Success writes a 200 envelope with success=true.
func Success(w http.ResponseWriter, r *http.Request, message string, details map[string]any) {
	Result(w, r, http.StatusOK, true, message, details)
}

// Error writes an error envelope. An *types.AppError in the chain supplies
// the status, code, message and details; any other error becomes a generic
// 500 so internal messages never leak to the caller.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		details := make(map[string]any, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			details[k] = v
		}
		details[keyCode] = appErr.Code
		Result(w, r, appErr.HTTPStatus(), false, appErr.Message, details)
		return
	}

	Result(w, r, http.StatusInternalServerError, false, "an unexpected error occurred",
		map[string]any{keyCode: types.ErrCodeInternalUnexpected})
}

// ReadBody reads the raw request body under the 1 MB limit. Handlers that
// authenticate the exact bytes (wake-up signatures) call this before
// DecodeBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not exceed 1MB", err)
		}
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "failed to read request body", err)
	}
	return body, nil
}

// DecodeJSON reads the request body into dst with the size limit and
// strict field checking of DecodeBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := ReadBody(w, r)
	if err != nil {
		return err
	}
	return DecodeBytes(body, dst)
}

// DecodeBytes decodes exactly one JSON value into dst, rejecting unknown
// fields. Failures are validation_invalid_json AppErrors.
func DecodeBytes(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// mapDecodeError translates a json.Decoder error into an AppError.
func mapDecodeError(err error) *types.AppError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			})
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "unknown field in request body: "+field, err)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
}

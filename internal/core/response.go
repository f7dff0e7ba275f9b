package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"wpre/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// JSON writes data with the given status. If marshalling fails it falls back
// to a 500 with a fixed body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"ERROR","msg":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ReadBody reads the whole request body up to the 1 MB limit.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, types.NewAppError(types.ErrCodeRequestShape, "request body must not exceed 1MB", err)
		}
		return nil, types.NewAppError(types.ErrCodeRequestShape, "failed to read request body", err)
	}
	return body, nil
}

// IsEmptyBody reports whether body carries no JSON value.
func IsEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeJSON reads the request body into dst. It returns a
// *types.AppError with code ErrCodeRequestShape on an empty body, malformed
// JSON, a type mismatch, or trailing data. Unknown fields are accepted.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := ReadBody(w, r)
	if err != nil {
		return err
	}
	if IsEmptyBody(body) {
		return types.NewAppError(types.ErrCodeRequestShape, "request body must not be empty", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeRequestShape, "request body must contain a single JSON value", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeRequestShape, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppError(types.ErrCodeRequestShape, "invalid value for field "+typeErr.Field, err).
			WithDetails(map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			})
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewAppError(types.ErrCodeRequestShape, "malformed JSON in request body", err)
	}

	return types.NewAppError(types.ErrCodeRequestShape, "invalid JSON in request body", err)
}

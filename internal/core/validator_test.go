package core

import (
	"encoding/json"
	"errors"
	"testing"

	"wpre/internal/types"
)

type runRequest struct {
	Config      json.RawMessage `json:"config" validate:"required"`
	RequestID   string          `json:"request_id" validate:"required"`
	DSSEndpoint string          `json:"dss_api_endpoint" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	v := NewValidator(discardLogger())

	tests := []struct {
		name    string
		req     runRequest
		wantMsg string
	}{
		{"complete", runRequest{Config: json.RawMessage(`{}`), RequestID: "r1", DSSEndpoint: "https://dss"}, ""},
		{"null config is present", runRequest{Config: json.RawMessage(`null`), RequestID: "r1", DSSEndpoint: "https://dss"}, ""},
		{"missing config", runRequest{RequestID: "r1", DSSEndpoint: "https://dss"}, "missing required field: config"},
		{"missing request id", runRequest{Config: json.RawMessage(`{}`), DSSEndpoint: "https://dss"}, "missing required field: request_id"},
		{"missing endpoint", runRequest{Config: json.RawMessage(`{}`), RequestID: "r1"}, "missing required field: dss_api_endpoint"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(tc.req)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != types.ErrCodeRequestShape {
				t.Errorf("expected request shape code, got %s", appErr.Code)
			}
			if appErr.Message != tc.wantMsg {
				t.Errorf("expected %q, got %q", tc.wantMsg, appErr.Message)
			}
		})
	}
}

package core

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"

	"wpre/internal/types"
)

func TestLambdaProxy_RoutesThroughChi(t *testing.T) {
	srv := newTestServer(t)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		r.Post("/echo/{id}", func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			JSON(w, r, http.StatusAccepted, map[string]string{
				"id":         chi.URLParam(r, "id"),
				"body":       string(body),
				"q":          r.URL.Query().Get("q"),
				"request_id": types.GetRequestID(r.Context()),
			})
		})
	})
	srv.MountRoutes()

	proxy := NewLambdaProxy(srv.Handler(), discardLogger())
	resp, err := proxy.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/echo/7",
		QueryStringParameters: map[string]string{"q": "x"},
		Headers:               map[string]string{"Content-Type": "application/json"},
		Body:                  base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)),
		IsBase64Encoded:       true,
		RequestContext:        events.APIGatewayProxyRequestContext{RequestID: "apigw-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	want := `{"body":"{\"a\":1}","id":"7","q":"x","request_id":"apigw-1"}`
	if resp.Body != want {
		t.Errorf("unexpected body:\n got %s\nwant %s", resp.Body, want)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("missing content type header: %v", resp.Headers)
	}
}

func TestLambdaProxy_NotFound(t *testing.T) {
	srv := newTestServer(t)
	srv.MountRoutes()

	resp, err := NewLambdaProxy(srv.Handler(), nil).Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/missing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLambdaProxy_BadBase64(t *testing.T) {
	resp, err := NewLambdaProxy(http.NotFoundHandler(), discardLogger()).Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/run_alg",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

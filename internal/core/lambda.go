package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaProxy serves API Gateway proxy events through an http.Handler, so
// the same router runs behind Lambda and the standalone listener.
type LambdaProxy struct {
	handler http.Handler
	logger  *slog.Logger
}

// NewLambdaProxy wraps handler.
func NewLambdaProxy(handler http.Handler, logger *slog.Logger) *LambdaProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LambdaProxy{handler: handler, logger: logger}
}

// Handle converts the event, runs the handler, and converts the response.
// It is the function passed to lambda.Start.
func (p *LambdaProxy) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := proxyRequest(ctx, event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to convert proxy event", "error", err, "path", event.Path)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"status":"ERROR","msg":"malformed proxy request"}`,
		}, nil
	}

	w := newProxyResponseWriter()
	p.handler.ServeHTTP(w, req)
	return w.response(), nil
}

func proxyRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	u := url.URL{Path: event.Path}
	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("X-Request-Id") == "" && event.RequestContext.RequestID != "" {
		req.Header.Set("X-Request-Id", event.RequestContext.RequestID)
	}
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip
	}
	req.Host = req.Header.Get("Host")
	return req, nil
}

// proxyResponseWriter buffers a response for API Gateway.
type proxyResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newProxyResponseWriter() *proxyResponseWriter {
	return &proxyResponseWriter{header: make(http.Header)}
}

func (w *proxyResponseWriter) Header() http.Header { return w.header }

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(w.header))
	for k, vs := range w.header {
		headers[k] = strings.Join(vs, ",")
	}
	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           headers,
		MultiValueHeaders: map[string][]string(w.header),
		Body:              w.body.String(),
	}
}

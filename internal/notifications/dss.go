package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"wpre/internal/config"
	"wpre/internal/external"
	"wpre/internal/security"
	"wpre/internal/types"
)

// maxResponseBodyRead limits how much of a DSS error body is kept for logs.
const maxResponseBodyRead = 4096

// dssMessage is the body POSTed to the decision-support endpoint.
type dssMessage struct {
	RequestID string     `json:"request_id"`
	DataType  string     `json:"data_type"`
	Data      []dssDatum `json:"data"`
}

type dssDatum struct {
	Timestamp   int64   `json:"timestamp"`
	Observation string  `json:"observation"`
	Units       string  `json:"units"`
	Result      float64 `json:"result"`
}

// BuildDSSBody renders the downstream JSON body for a payload.
func BuildDSSBody(p types.NotificationPayload) ([]byte, error) {
	return json.Marshal(dssMessage{
		RequestID: p.RequestID,
		DataType:  types.DataTypeNumber,
		Data: []dssDatum{{
			Timestamp:   p.Timestamp,
			Observation: p.Observation,
			Units:       p.Units,
			Result:      p.Result,
		}},
	})
}

// DSSSender delivers one notification with a single POST.
type DSSSender struct {
	client *external.BaseClient
	logger *slog.Logger
}

// NewDSSSender builds a sender with the configured timeout. Certificate
// verification is off unless TLSVerify is set; the downstream endpoint
// presents a self-signed certificate. Connections to BlockedCIDRs are refused.
func NewDSSSender(cfg config.DispatchConfig, logger *slog.Logger) (*DSSSender, error) {
	guard, err := security.NewGuard(cfg.BlockedCIDRs, nil)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.TLSVerify}, //nolint:gosec
	}
	httpClient := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	guard.Wrap(httpClient, transport)
	return NewDSSSenderWithClient(httpClient, cfg.UserAgent, logger), nil
}

// NewDSSSenderWithClient builds a sender around a caller-supplied client.
func NewDSSSenderWithClient(httpClient *http.Client, userAgent string, logger *slog.Logger) *DSSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DSSSender{
		// No breaker: every dispatched payload gets its one attempt.
		client: external.NewBaseClient(httpClient, external.BreakerPolicy{}, userAgent),
		logger: logger,
	}
}

// Send POSTs the payload. Any transport error or non-2xx status is returned.
func (s *DSSSender) Send(ctx context.Context, p types.NotificationPayload) error {
	body, err := BuildDSSBody(p)
	if err != nil {
		return fmt.Errorf("dss: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.DSSEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dss: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.logger.DebugContext(ctx, "posting notification",
		"request_id", p.RequestID,
		"endpoint", p.DSSEndpoint,
		"payload_size", len(body),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
		return fmt.Errorf("dss returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

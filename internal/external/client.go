// Package external is the boundary between the forecast pipeline and the
// third-party HTTP services it talks to: the weather source and the
// downstream decision-support endpoint. All outbound calls go through
// BaseClient, which applies request-ID propagation, a user agent, an optional
// circuit breaker, and error mapping. Calls are never retried here; a failed
// attempt is terminal for the request that made it.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"wpre/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BreakerPolicy configures the circuit breaker wrapped around a BaseClient.
// A zero ConsecutiveFailures disables the breaker.
type BreakerPolicy struct {
	Name                string
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// BaseClient wraps an *http.Client and an optional circuit breaker. The
// weather source and the DSS sender both embed it.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient. Responses with status >= 500 count as
// breaker failures.
func NewBaseClient(httpClient *http.Client, policy BreakerPolicy, userAgent string) *BaseClient {
	bc := &BaseClient{
		client:    httpClient,
		userAgent: userAgent,
	}
	if policy.ConsecutiveFailures > 0 {
		threshold := policy.ConsecutiveFailures
		bc.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        policy.Name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     policy.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil
			},
		})
	}
	return bc
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided
// circuit breaker.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// BreakerState reports the breaker state, or "disabled" when none is set.
func (c *BaseClient) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Do executes the request exactly once with:
//  1. Request ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping, when configured
//  4. Error mapping to types.AppError
//
// Any response below 500 is returned as-is and the caller owns its body.
// Transport failures, 5xx responses and an open breaker return an
// ErrCodeExternalData AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	call := func() (*http.Response, error) {
		r, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	}

	var (
		resp *http.Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(call)
	} else {
		resp, err = call()
	}
	if err == nil {
		return resp, nil
	}

	if resp != nil {
		resp.Body.Close()
	}
	return nil, c.mapError(req, resp, err)
}

// mapError translates HTTP-level failures into ErrCodeExternalData AppErrors.
func (c *BaseClient) mapError(req *http.Request, resp *http.Response, err error) *types.AppError {
	host := req.URL.Host

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeExternalData,
			fmt.Sprintf("circuit breaker is open; %s unavailable", host),
			err,
		)
	}
	if resp != nil {
		return types.NewAppError(
			types.ErrCodeExternalData,
			fmt.Sprintf("%s returned %d", host, resp.StatusCode),
			err,
		)
	}
	return types.NewAppError(
		types.ErrCodeExternalData,
		fmt.Sprintf("request to %s failed: %v", host, err),
		err,
	)
}

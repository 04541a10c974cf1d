// ABOUTME: HTTP-backed Generator that posts JSON payloads to a generation API with bearer credentials.
// ABOUTME: Classifies non-2xx responses and quota body markers into the typed provider error hierarchy.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// endpointPaths maps logical endpoint names to API paths.
var endpointPaths = map[string]string{
	EndpointText:  "/v1/generate/text",
	EndpointImage: "/v1/generate/image",
}

// HTTPGenerator calls a generation API over HTTP. The credential supplied
// per call is sent as a bearer token, so rotating credentials requires no
// client state changes.
type HTTPGenerator struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPGenerator creates an HTTPGenerator with a bounded request timeout.
// Per-call timeouts are the work function's responsibility; the orchestrator
// enforces no wall-clock limit of its own.
func NewHTTPGenerator(name, baseURL string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGenerator{
		Name:       name,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Call posts the payload to the endpoint's path and returns the response
// body on success. Failures are returned as typed provider errors so the
// step executor can decide whether to rotate credentials.
func (g *HTTPGenerator) Call(ctx context.Context, endpoint string, payload []byte, cred Credential) ([]byte, error) {
	path, ok := endpointPaths[endpoint]
	if !ok {
		return nil, &InvalidRequestError{APIError: APIError{
			Message:  fmt.Sprintf("unknown endpoint %q", endpoint),
			Provider: g.Name,
		}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &InvalidRequestError{APIError: APIError{
			Message:  "build request",
			Provider: g.Name,
			Cause:    err,
		}}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Value)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{APIError: APIError{
			Message:  "request failed",
			Provider: g.Name,
			Cause:    err,
		}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &NetworkError{APIError: APIError{
			Message:    "read response body",
			Provider:   g.Name,
			StatusCode: resp.StatusCode,
			Cause:      err,
		}}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || hasQuotaMarker(body) {
		return nil, ErrorFromResponse(g.Name, resp.StatusCode, body)
	}
	return body, nil
}

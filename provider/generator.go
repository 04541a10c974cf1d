// ABOUTME: Generator interface and the request/result payload types exchanged with generation backends.
// ABOUTME: Endpoints are logical names ("text", "image") resolved by each backend implementation.
package provider

import "context"

// Endpoint names understood by the bundled generator implementations.
const (
	EndpointText  = "text"
	EndpointImage = "image"
)

// Generator is the boundary to an external AI generation service. Payload
// and response bodies are opaque JSON; the pipeline never inspects them
// beyond decoding a GenerationResult.
type Generator interface {
	Call(ctx context.Context, endpoint string, payload []byte, cred Credential) ([]byte, error)
}

// GenerationRequest is the JSON payload sent to a generation endpoint.
type GenerationRequest struct {
	Model  string `json:"model,omitempty"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

// GenerationResult is the JSON body returned by a generation endpoint.
type GenerationResult struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

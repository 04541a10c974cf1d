// ABOUTME: OpenAI-compatible Generator built on the official openai-go SDK.
// ABOUTME: Builds a client per call from the supplied credential so rotation needs no client state.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator implements Generator against the Chat Completions and
// Images APIs of OpenAI or any OpenAI-compatible service. A custom BaseURL
// enables compatible providers (OpenRouter, Cloudflare AI Gateway, etc.).
type OpenAIGenerator struct {
	BaseURL      string
	DefaultModel string
	ImageModel   string
}

// NewOpenAIGenerator creates a generator with sensible model defaults.
func NewOpenAIGenerator(baseURL string) *OpenAIGenerator {
	return &OpenAIGenerator{
		BaseURL:      baseURL,
		DefaultModel: "gpt-4o-mini",
		ImageModel:   "dall-e-3",
	}
}

// Call decodes the payload as a GenerationRequest, dispatches to the text or
// image API, and returns a JSON-encoded GenerationResult. SDK errors are
// mapped into the typed provider error hierarchy so the step executor can
// rotate credentials on 429/401/403 and quota responses.
func (g *OpenAIGenerator) Call(ctx context.Context, endpoint string, payload []byte, cred Credential) ([]byte, error) {
	var req GenerationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &InvalidRequestError{APIError: APIError{
			Message:  "decode generation request",
			Provider: "openai",
			Cause:    err,
		}}
	}

	opts := []option.RequestOption{option.WithAPIKey(cred.Value)}
	if g.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(g.BaseURL))
	}
	client := openai.NewClient(opts...)

	switch endpoint {
	case EndpointText:
		return g.completeText(ctx, client, req)
	case EndpointImage:
		return g.generateImage(ctx, client, req)
	default:
		return nil, &InvalidRequestError{APIError: APIError{
			Message:  fmt.Sprintf("unknown endpoint %q", endpoint),
			Provider: "openai",
		}}
	}
}

func (g *OpenAIGenerator) completeText(ctx context.Context, client openai.Client, req GenerationRequest) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = g.DefaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ServerError{APIError: APIError{
			Message:  "completion returned no choices",
			Provider: "openai",
		}}
	}

	return json.Marshal(GenerationResult{Text: resp.Choices[0].Message.Content})
}

func (g *OpenAIGenerator) generateImage(ctx context.Context, client openai.Client, req GenerationRequest) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = g.ImageModel
	}
	size := openai.ImageGenerateParamsSize1024x1024
	if req.Size != "" {
		size = openai.ImageGenerateParamsSize(req.Size)
	}

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  model,
		Prompt: req.Prompt,
		Size:   size,
	})
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &ServerError{APIError: APIError{
			Message:  "image generation returned no data",
			Provider: "openai",
		}}
	}

	return json.Marshal(GenerationResult{ImageURL: resp.Data[0].URL})
}

// translateOpenAIError maps SDK errors into the provider error taxonomy.
// Non-API errors (timeouts, connection failures) become NetworkError.
func translateOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ErrorFromResponse("openai", apiErr.StatusCode, []byte(apiErr.Error()))
	}
	return &NetworkError{APIError: APIError{
		Message:  "openai request failed",
		Provider: "openai",
		Cause:    err,
	}}
}

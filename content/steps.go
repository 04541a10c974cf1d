// ABOUTME: Step factories assembling the standard campaign pipeline: brief, post text, image prompt,
// ABOUTME: image render, and publish. Each step reads prior artifacts from the run context by step ID.
package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/postpilot-io/postpilot/pipeline"
	"github.com/postpilot-io/postpilot/provider"
	"github.com/postpilot-io/postpilot/publisher"
)

// Step IDs for the standard campaign pipeline.
const (
	StepBrief       = "brief"
	StepPostText    = "post-text"
	StepImagePrompt = "image-prompt"
	StepImage       = "image"
	StepPublish     = "publish"
)

// CampaignSteps builds the standard five-step campaign pipeline over the
// given generator and publisher. Callers select and order steps per run via
// the run config; the catalog itself is fixed at construction.
func CampaignSteps(gen provider.Generator, pub publisher.Publisher) []pipeline.StepDefinition {
	return []pipeline.StepDefinition{
		{
			ID:             StepBrief,
			Title:          "Draft content brief",
			Cost:           1,
			UsesCredential: true,
			Work:           textStep(gen, briefPrompt),
		},
		{
			ID:             StepPostText,
			Title:          "Write post text",
			Cost:           1,
			UsesCredential: true,
			Work:           textStep(gen, postTextPrompt),
		},
		{
			ID:             StepImagePrompt,
			Title:          "Write image prompt",
			Cost:           1,
			UsesCredential: true,
			Work:           textStep(gen, imagePromptPrompt),
		},
		{
			ID:             StepImage,
			Title:          "Render image",
			Cost:           2,
			UsesCredential: true,
			Work:           imageStep(gen),
		},
		{
			ID:    StepPublish,
			Title: "Publish to page",
			Cost:  1,
			Work:  publishStep(pub),
		},
	}
}

// promptBuilder produces the generation prompt for a text step from the
// accumulated run context.
type promptBuilder func(pctx *pipeline.Context) (string, error)

func briefPrompt(pctx *pipeline.Context) (string, error) {
	topic := pctx.GetString("topic", "")
	if topic == "" {
		return "", fmt.Errorf("run is missing a topic parameter")
	}
	audience := pctx.GetString("audience", "a general audience")
	return fmt.Sprintf(
		"Write a short content brief for a social media post about %q aimed at %s. "+
			"Cover the angle, the key message, and the call to action.", topic, audience), nil
}

func postTextPrompt(pctx *pipeline.Context) (string, error) {
	brief := pctx.GetString(StepBrief, "")
	if brief == "" {
		return "", fmt.Errorf("missing upstream brief artifact")
	}
	tone := pctx.GetString("tone", "friendly")
	return fmt.Sprintf(
		"Write the final social media post for this brief, in a %s tone, under 280 words, "+
			"formatted as markdown:\n\n%s", tone, brief), nil
}

func imagePromptPrompt(pctx *pipeline.Context) (string, error) {
	post := pctx.GetString(StepPostText, "")
	if post == "" {
		return "", fmt.Errorf("missing upstream post text artifact")
	}
	return fmt.Sprintf(
		"Write a one-sentence image generation prompt for an illustration to accompany this post:\n\n%s",
		post), nil
}

// textStep builds a provider-bound work function that sends a prompt to the
// text endpoint and stores the generated text as the step artifact.
func textStep(gen provider.Generator, build promptBuilder) pipeline.WorkFunc {
	return func(ctx context.Context, pctx *pipeline.Context, cred provider.Credential) (any, error) {
		prompt, err := build(pctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(provider.GenerationRequest{
			Model:  pctx.GetString("model", ""),
			Prompt: prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("encode generation request: %w", err)
		}

		body, err := gen.Call(ctx, provider.EndpointText, payload, cred)
		if err != nil {
			return nil, err
		}
		var result provider.GenerationResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode generation result: %w", err)
		}
		if result.Text == "" {
			return nil, fmt.Errorf("generator returned empty text")
		}
		return result.Text, nil
	}
}

// imageStep builds the work function rendering the campaign image from the
// image-prompt artifact.
func imageStep(gen provider.Generator) pipeline.WorkFunc {
	return func(ctx context.Context, pctx *pipeline.Context, cred provider.Credential) (any, error) {
		prompt := pctx.GetString(StepImagePrompt, "")
		if prompt == "" {
			return nil, fmt.Errorf("missing upstream image prompt artifact")
		}
		payload, err := json.Marshal(provider.GenerationRequest{
			Prompt: prompt,
			Size:   pctx.GetString("image_size", ""),
		})
		if err != nil {
			return nil, fmt.Errorf("encode generation request: %w", err)
		}

		body, err := gen.Call(ctx, provider.EndpointImage, payload, cred)
		if err != nil {
			return nil, err
		}
		var result provider.GenerationResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode generation result: %w", err)
		}
		if result.ImageURL == "" {
			return nil, fmt.Errorf("generator returned no image")
		}
		return result.ImageURL, nil
	}
}

// publishStep builds the terminal work function pushing the finished post.
// The image is optional: a text-only pipeline omits the image steps and the
// post goes to the page feed.
func publishStep(pub publisher.Publisher) pipeline.WorkFunc {
	return func(ctx context.Context, pctx *pipeline.Context, _ provider.Credential) (any, error) {
		text := pctx.GetString(StepPostText, "")
		if text == "" {
			return nil, fmt.Errorf("missing post text artifact")
		}
		postID, err := pub.Publish(ctx, publisher.Post{
			Text:     text,
			ImageRef: pctx.GetString(StepImage, ""),
		})
		if err != nil {
			return nil, fmt.Errorf("publish post: %w", err)
		}
		return postID, nil
	}
}

// FallbackTextStep returns a non-provider step that injects fixed placeholder
// text under the post-text artifact key. It exists for callers that prefer a
// stock post over a failed run and must be selected explicitly in the run
// config; nothing substitutes placeholder content silently.
func FallbackTextStep(text string) pipeline.StepDefinition {
	return pipeline.StepDefinition{
		ID:    "fallback-text",
		Title: "Use fallback post text",
		Work: func(_ context.Context, pctx *pipeline.Context, _ provider.Credential) (any, error) {
			if text == "" {
				return nil, fmt.Errorf("fallback text is empty")
			}
			pctx.Set(StepPostText, text)
			return text, nil
		},
	}
}

// ABOUTME: Tests for the campaign step factories using stub generators and publishers.
// ABOUTME: Exercises prompt dependencies between steps and the end-to-end campaign pipeline.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/postpilot-io/postpilot/ledger"
	"github.com/postpilot-io/postpilot/pipeline"
	"github.com/postpilot-io/postpilot/provider"
	"github.com/postpilot-io/postpilot/publisher"
)

// stubGenerator answers text calls with a canned transformation of the
// prompt and image calls with a fixed URL.
type stubGenerator struct {
	calls []string
}

func (g *stubGenerator) Call(_ context.Context, endpoint string, payload []byte, _ provider.Credential) ([]byte, error) {
	g.calls = append(g.calls, endpoint)
	var req provider.GenerationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if req.Prompt == "" {
		return nil, errors.New("empty prompt")
	}
	switch endpoint {
	case provider.EndpointText:
		return json.Marshal(provider.GenerationResult{Text: "generated text for: " + req.Prompt})
	case provider.EndpointImage:
		return json.Marshal(provider.GenerationResult{ImageURL: "https://cdn/generated.png"})
	default:
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}
}

// stubPublisher records the published post.
type stubPublisher struct {
	post publisher.Post
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, post publisher.Post) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.post = post
	return "post_42", nil
}

func runCampaign(t *testing.T, cfg pipeline.RunConfig, gen provider.Generator, pub publisher.Publisher) pipeline.RunState {
	t.Helper()
	lgr := ledger.New(ledger.NewMemoryStore(), ledger.WithStarterCredits(20))
	creds := []provider.Credential{{Value: "k1", Provider: "stub"}}
	o, err := pipeline.NewOrchestrator(CampaignSteps(gen, pub), lgr, creds)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	r, err := o.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-r.Done()
	return r.State()
}

func TestFullCampaignPipeline(t *testing.T) {
	gen := &stubGenerator{}
	pub := &stubPublisher{}
	state := runCampaign(t, pipeline.RunConfig{
		Owner:  "acct",
		Steps:  []string{StepBrief, StepPostText, StepImagePrompt, StepImage, StepPublish},
		Params: map[string]string{"topic": "spring collection"},
	}, gen, pub)

	if state.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", state.Status, state.Error)
	}
	if len(state.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(state.Results))
	}
	if pub.post.Text == "" {
		t.Error("publisher received no text")
	}
	if pub.post.ImageRef != "https://cdn/generated.png" {
		t.Errorf("publisher received image ref %q", pub.post.ImageRef)
	}
	if state.Results[4].Artifact != "post_42" {
		t.Errorf("publish artifact: %v", state.Results[4].Artifact)
	}
}

func TestTextOnlyCampaign(t *testing.T) {
	gen := &stubGenerator{}
	pub := &stubPublisher{}
	state := runCampaign(t, pipeline.RunConfig{
		Owner:  "acct",
		Steps:  []string{StepBrief, StepPostText, StepPublish},
		Params: map[string]string{"topic": "weekly digest"},
	}, gen, pub)

	if state.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", state.Status, state.Error)
	}
	if pub.post.ImageRef != "" {
		t.Errorf("text-only run should not publish an image, got %q", pub.post.ImageRef)
	}
	for _, endpoint := range gen.calls {
		if endpoint == provider.EndpointImage {
			t.Error("text-only run must not call the image endpoint")
		}
	}
}

func TestBriefRequiresTopic(t *testing.T) {
	gen := &stubGenerator{}
	state := runCampaign(t, pipeline.RunConfig{
		Owner: "acct",
		Steps: []string{StepBrief},
	}, gen, &stubPublisher{})

	if state.Status != pipeline.StatusError {
		t.Fatalf("expected error without a topic, got %s", state.Status)
	}
	if !strings.Contains(state.Results[0].Error, "topic") {
		t.Errorf("error should mention the missing topic: %s", state.Results[0].Error)
	}
}

func TestPublishFailureSurfacesAsStepFailure(t *testing.T) {
	gen := &stubGenerator{}
	pub := &stubPublisher{err: errors.New("page token revoked")}
	state := runCampaign(t, pipeline.RunConfig{
		Owner:  "acct",
		Steps:  []string{StepBrief, StepPostText, StepPublish},
		Params: map[string]string{"topic": "launch"},
	}, gen, pub)

	if state.Status != pipeline.StatusError {
		t.Fatalf("expected error, got %s", state.Status)
	}
	last := state.Results[len(state.Results)-1]
	if !strings.Contains(last.Error, "page token revoked") {
		t.Errorf("publish failure not surfaced: %s", last.Error)
	}
}

func TestFallbackStepIsExplicit(t *testing.T) {
	gen := &stubGenerator{}
	pub := &stubPublisher{}
	lgr := ledger.New(ledger.NewMemoryStore(), ledger.WithStarterCredits(20))
	steps := append(CampaignSteps(gen, pub), FallbackTextStep("Our stock update."))
	o, err := pipeline.NewOrchestrator(steps, lgr, []provider.Credential{{Value: "k", Provider: "stub"}})
	if err != nil {
		t.Fatal(err)
	}

	r, err := o.Start(context.Background(), pipeline.RunConfig{
		Owner: "acct",
		Steps: []string{"fallback-text", StepPublish},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-r.Done()

	state := r.State()
	if state.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", state.Status, state.Error)
	}
	if pub.post.Text != "Our stock update." {
		t.Errorf("fallback text not published: %q", pub.post.Text)
	}
}

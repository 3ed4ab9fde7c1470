// Package gemini implements the analyzer and generator contracts on the
// Gemini API via the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/providers/prompts"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds each API call.
	DefaultTimeout = 15 * time.Second
)

// Provider calls the Gemini API. It implements both analysis.Analyzer
// and analysis.Generator.
type Provider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Gemini-backed provider. Client construction performs no
// network calls.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewProviderUnavailable("gemini", err)
	}
	p := &Provider{
		client:  client,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// Analyze asks the model for the structured breakdown of one answer.
func (p *Provider) Analyze(ctx context.Context, text string, actx analysis.Context) (analysis.Analysis, error) {
	raw, err := p.complete(ctx, prompts.AnalysisSystem, prompts.AnalysisUser(text, actx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return analysis.Analysis{}, core.NewProviderTimeout("gemini", err)
		}
		return analysis.Analysis{}, core.NewAnalysisFailure(err)
	}
	a, err := prompts.ParseAnalysis(raw)
	if err != nil {
		return analysis.Analysis{}, core.NewAnalysisFailure(err)
	}
	return a, nil
}

// GenerateFollowUp asks the model for one follow-up question.
func (p *Provider) GenerateFollowUp(ctx context.Context, actx analysis.Context) (analysis.Generated, error) {
	raw, err := p.complete(ctx, prompts.FollowUpSystem, prompts.FollowUpUser(actx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return analysis.Generated{}, core.NewProviderTimeout("gemini", err)
		}
		return analysis.Generated{}, core.NewGenerationFailure(err)
	}
	g, err := prompts.ParseFollowUp(raw)
	if err != nil {
		return analysis.Generated{}, core.NewGenerationFailure(err)
	}
	return g, nil
}

func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}
	p.logger.Debug("gemini call", "model", p.model, "duration", time.Since(started))

	text := resp.Text()
	if text == "" {
		return "", errors.New("no text content in response")
	}
	return text, nil
}

// Package anthropic implements the analyzer and generator contracts on
// the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/providers/prompts"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"

	// DefaultMaxTokens bounds each completion.
	DefaultMaxTokens = 1024

	// DefaultTimeout bounds each API call. Interview turns are latency
	// sensitive, a slow analysis is worse than a degraded one.
	DefaultTimeout = 15 * time.Second
)

// Provider calls the Anthropic Messages API. It implements both
// analysis.Analyzer and analysis.Generator.
type Provider struct {
	client    sdk.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
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

// New creates an Anthropic-backed provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "anthropic" }

// Analyze asks the model for the structured breakdown of one answer.
func (p *Provider) Analyze(ctx context.Context, text string, actx analysis.Context) (analysis.Analysis, error) {
	raw, err := p.complete(ctx, prompts.AnalysisSystem, prompts.AnalysisUser(text, actx))
	if err != nil {
		return analysis.Analysis{}, p.wrap("analyze", err)
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
		return analysis.Generated{}, p.wrap("generate", err)
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
	message, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: system},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Debug("anthropic call",
		"model", p.model,
		"duration", time.Since(started),
		"tokens_in", message.Usage.InputTokens,
		"tokens_out", message.Usage.OutputTokens)

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in response")
}

func (p *Provider) wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewProviderTimeout("anthropic", err)
	}
	if op == "generate" {
		return core.NewGenerationFailure(err)
	}
	return core.NewAnalysisFailure(err)
}

// Package analyze asks a generative text service for a structured summary of
// extracted page text and validates what comes back.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/veille/internal/config"
)

var (
	// ErrAnalysis wraps every failure to obtain a usable Result.
	ErrAnalysis = errors.New("analysis failed")
	// ErrInvalidResponse means the service answered but the answer could not
	// be turned into a complete Result.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrAnalysis)
)

// Categories is the closed vocabulary a Result's Category must come from.
var Categories = []string{
	"DevOps",
	"IA & Data",
	"Développement",
	"Architecture",
	"Business",
	"Cybersécurité",
	"Infrastructure",
}

// Result is the structured record returned for one page.
type Result struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// Input is what the prompt is built from.
type Input struct {
	Text string
	URL  string
	Note string
	Tags []string
}

// Completer sends one prompt and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Client wraps a Completer with prompt construction, response repair and
// validation.
type Client struct {
	completer Completer
	language  string
	timeout   time.Duration
	log       *slog.Logger

	Stats *LLMStats
}

func NewClient(completer Completer, language string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		completer: completer,
		language:  language,
		timeout:   timeout,
		log:       log,
		Stats:     NewLLMStats(24 * time.Hour),
	}
}

// NewFromConfig builds the Client for the configured provider.
func NewFromConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (*Client, error) {
	if err := cfg.ValidateAnalysis(); err != nil {
		return nil, err
	}

	var completer Completer
	switch cfg.AnalysisProvider {
	case config.ProviderClaude:
		completer = NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		completer = g
	default:
		completer = NewMistralClient(cfg.MistralAPIKey, cfg.MistralModel)
	}
	return NewClient(completer, cfg.SummaryLanguage, cfg.AnalysisTimeout, log), nil
}

// Model names the backing model, for stats and logs.
func (c *Client) Model() string {
	return c.completer.Model()
}

// Snapshot reports analysis latency over the stats window.
func (c *Client) Snapshot() StatsSnapshot {
	return c.Stats.Snapshot()
}

// Close releases the backend connection when it holds one.
func (c *Client) Close() error {
	if cl, ok := c.completer.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// Analyze runs one completion for in. Errors wrap ErrAnalysis; a reply that
// cannot be repaired into a full Result also wraps ErrInvalidResponse.
func (c *Client) Analyze(ctx context.Context, in Input) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(in, c.language)

	start := time.Now()
	raw, err := c.completer.Complete(ctx, prompt)
	c.Stats.Record(time.Since(start), err != nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAnalysis, c.completer.Model(), err)
	}

	res, err := ParseResponse(raw)
	if err != nil {
		c.log.Warn("analysis response rejected",
			"url", in.URL,
			"model", c.completer.Model(),
			"error", err,
			"raw", truncate(raw, 200),
		)
		return nil, err
	}

	res.Tags = MergeTags(res.Tags, in.Tags)
	return res, nil
}

// MergeTags keeps the service's tags in order and appends any user tag it
// did not already produce. Comparison ignores case and surrounding space.
func MergeTags(serviceTags, userTags []string) []string {
	seen := make(map[string]bool, len(serviceTags)+len(userTags))
	out := make([]string, 0, len(serviceTags)+len(userTags))
	for _, group := range [][]string{serviceTags, userTags} {
		for _, tag := range group {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tag)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/autobuild/internal/config"
	"github.com/phrazzld/autobuild/internal/generation"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

const defaultPrompt = `You are a senior React and TypeScript engineer.
Write a single self-contained React component in TSX for the following {{ .Type }} request:

{{ .Description }}

Export the component with "export default function <Name>". Reply with the code only.`

// ContentGenerator is the subset of the genai models API used by Generator.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.CodeGenerator using the Gemini API.
type Generator struct {
	logger   *slog.Logger
	config   config.LLMConfig
	prompt   *template.Template
	models   ContentGenerator
	model    string
	minDelay time.Duration
}

var _ generation.CodeGenerator = (*Generator)(nil)

// NewGenerator creates a Generator backed by a real Gemini client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return NewGeneratorWithClient(logger, cfg, client.Models)
}

// NewGeneratorWithClient creates a Generator that sends requests through models.
func NewGeneratorWithClient(logger *slog.Logger, cfg config.LLMConfig, models ContentGenerator) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, fmt.Errorf("%w: models client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	prompt, err := loadPrompt(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	return &Generator{
		logger:   logger.With("component", "gemini_generator"),
		config:   cfg,
		prompt:   prompt,
		models:   models,
		model:    cfg.ModelName,
		minDelay: time.Second,
	}, nil
}

func loadPrompt(path string) (*template.Template, error) {
	text := defaultPrompt
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, path, err)
		}
		text = string(content)
	}

	tmpl, err := template.New("code").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

// GenerateCode implements generation.CodeGenerator.
func (g *Generator) GenerateCode(ctx context.Context, req generation.GenerationRequest) (string, error) {
	prompt, err := g.createPrompt(req)
	if err != nil {
		return "", err
	}

	text, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}

	code := extractCode(text)
	if code == "" {
		return "", fmt.Errorf("%w: empty code in response", generation.ErrInvalidResponse)
	}

	g.logger.InfoContext(ctx, "generated code for task",
		"task_id", req.TaskID.String(),
		"code_length", len(code))
	return code, nil
}

func (g *Generator) createPrompt(req generation.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Description) == "" {
		return "", generation.ErrEmptyDescription
	}

	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry sends prompt to the model, retrying transient failures with
// exponential backoff and jitter.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := time.Duration(g.config.RetryDelaySeconds) * time.Second
	if base < g.minDelay {
		base = g.minDelay
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithJitterPercent(50, backoff)
	backoff = retry.WithMaxRetries(uint64(maxRetries), backoff)

	attempt := 0
	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		g.logger.DebugContext(ctx, "making Gemini API call", "attempt", attempt)

		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			g.logger.WarnContext(ctx, "Gemini API call failed", "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
		}

		text, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// extractCode returns the body of the first fenced code block in text, or
// the trimmed text when there is no fence.
func extractCode(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return strings.TrimSpace(text)
	}

	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/amankumarsingh77/directory_pipeline/pkg/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// CompletionRequest is one prompt sent to one model.
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

// Completer is the text completion backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type anthropicCompleter struct {
	client  anthropic.Client
	timeout time.Duration
	retry   retry.Config
	logger  logger.Logger
}

// NewAnthropicCompleter talks to the Messages API. The SDK's own retries are
// off; transient failures go through the shared retry policy instead.
func NewAnthropicCompleter(cfg *config.EnrichConfig, l logger.Logger, opts ...option.RequestOption) Completer {
	client := anthropic.NewClient(append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, opts...)...)
	policy := retry.WithRetries(cfg.CallRetries)
	policy.InitialDelay = time.Second
	policy.MaxDelay = 30 * time.Second
	policy.IsRetryable = isRetryableAPIError
	policy.OnRetry = func(attempt int, err error) {
		l.Warn("completion failed, retrying", logger.Int("attempt", attempt), logger.Error(err))
	}
	return &anthropicCompleter{
		client:  client,
		timeout: cfg.CallTimeout,
		retry:   policy,
		logger:  l,
	}
}

func isRetryableAPIError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return retry.IsTransient(err)
}

func (c *anthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var text string
	err := retry.Retry(ctx, c.retry, func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		msg, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("completion with %s failed: %w", req.Model, err)
	}
	return text, nil
}

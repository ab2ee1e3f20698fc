// Package vision describes images embedded in PDF pages with a vision-capable chat model.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/kbminer/internal/embedding"
)

const (
	DefaultModel     = openai.ChatModelGPT4o
	DefaultMaxTokens = 300
	DefaultTimeout   = 60 * time.Second
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("vision response has no choices")

// Image is one encoded image pulled out of a page.
type Image struct {
	Data     []byte
	MIMEType string // image/png when empty
}

// DataURL returns the image as a base64 data URL.
func (img Image) DataURL() string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Describer produces a short description of an image given the surrounding page text.
// A non-nil error means the description is unavailable; the text is then empty.
type Describer interface {
	Describe(ctx context.Context, img Image, pageContext string) (string, error)
}

// Options tunes the vision call.
type Options struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration // per attempt
}

// Client describes images through the chat completions endpoint.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClient creates a vision Client. Zero options take the package defaults.
func NewClient(client *openai.Client, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		client:    client,
		model:     opts.Model,
		maxTokens: int64(opts.MaxTokens),
		timeout:   opts.Timeout,
		logger:    logger,
	}
}

// Describe sends the image with the page text as a hint. Failures are logged and
// returned with an empty description; they never panic or block past the timeout.
func (c *Client) Describe(ctx context.Context, img Image, pageContext string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(buildPrompt(pageContext)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURL(),
				}),
			}),
		},
		MaxTokens: openai.Int(c.maxTokens),
	}

	var description string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		// Retries are handled here, not by the SDK.
		resp, err := c.client.Chat.Completions.New(callCtx, params, option.WithMaxRetries(0))
		if err != nil {
			if embedding.IsRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyResponse)
		}
		description = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		c.logger.Warn("Image description failed", "bytes", len(img.Data), "error", err)
		return "", fmt.Errorf("describe image: %w", err)
	}

	c.logger.Debug("Described image", "bytes", len(img.Data), "chars", len(description))
	return strings.TrimSpace(description), nil
}

func buildPrompt(pageContext string) string {
	return fmt.Sprintf(`*** %s ***

The raw text of the page is given above. Treat it as a clue.
The given image is related to that text.
Analyze the image and extract any text from it.
If the image has visuals other than text, explain what they show, staying consistent with the page text when it is related.
Keep the response short.
Give only the content, without headings or topics of your own.
Give the result in human readable format.`, pageContext)
}

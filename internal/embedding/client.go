package embedding

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig carries the OpenAI account settings.
type ClientConfig struct {
	APIKey       string
	Organization string
	BaseURL      string
}

// Client wraps the OpenAI client shared by embeddings, vision and chat.
type Client struct {
	client *openai.Client
}

// NewClient creates the shared OpenAI client. An API key is required.
func NewClient(cfg ClientConfig, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.Organization))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (vision, chat).
func (c *Client) Client() *openai.Client {
	return c.client
}

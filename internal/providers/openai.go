package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = openai.ChatModelGPT4o

	openAIDefaultMaxTokens   = 8192
	openAIDefaultTemperature = 0.1
)

// OpenAIConfig holds configuration for the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // Default: gpt-4o
	BaseURL    string        // Optional; also enables OpenAI-compatible gateways
	Timeout    time.Duration // HTTP timeout (default: 120s)
	MaxRetries int           // SDK transport retries (default: 3)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements Provider using the official OpenAI SDK with an
// image data-URL content part.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI vision client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Extract sends the file and prompt as one user message with a text part and
// an image part.
func (c *OpenAIClient) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResult, error) {
	start := time.Now()

	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = openAIDefaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = openAIDefaultTemperature
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		req.MIMEType, base64.StdEncoding.EncodeToString(req.FileBytes))

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	}

	reqOpts := []option.RequestOption{}
	if req.SingleAttempt {
		reqOpts = append(reqOpts, option.WithMaxRetries(0))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	choice := completion.Choices[0]

	return &ExtractResult{
		Text:             choice.Message.Content,
		Truncated:        choice.FinishReason == "length",
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		Provider:         OpenAIName,
		ModelUsed:        c.model,
		ExecutionTime:    time.Since(start),
	}, nil
}

package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	GeminiName    = "gemini"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel   = "gemini-2.0-flash"

	// finishReasonMaxTokens is Gemini's signal that the answer was cut off
	// at the output limit.
	finishReasonMaxTokens = "MAX_TOKENS"

	geminiDefaultMaxOutputTokens = 8192
	geminiDefaultTemperature     = 0.1
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string        // Optional override (tests)
	Model      string        // Default: gemini-2.0-flash
	Timeout    time.Duration // HTTP timeout (default: 120s)
	MaxRetries int           // Transport retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 2s)
	HTTPClient *http.Client  // Optional (tests)
}

// GeminiClient implements Provider against the Gemini generateContent API:
// a JSON body with a text part and an inline base64 file part, answered by a
// candidates envelope whose first part holds the text.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     client,
	}
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Request/response wire types for generateContent.

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends the file and prompt to the generateContent endpoint.
func (c *GeminiClient) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResult, error) {
	start := time.Now()

	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = geminiDefaultMaxOutputTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = geminiDefaultTemperature
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{
					MIMEType: req.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.FileBytes),
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		},
	}

	attempts := uint(c.maxRetries)
	if req.SingleAttempt {
		attempts = 1
	}

	var parsed geminiResponse
	err := retry.Do(
		func() error {
			return c.doRequest(ctx, body, &parsed)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
	)
	if err != nil {
		return nil, err
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: response has no candidates")
	}
	cand := parsed.Candidates[0]

	return &ExtractResult{
		Text:             cand.Content.Parts[0].Text,
		Truncated:        cand.FinishReason == finishReasonMaxTokens,
		PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
		CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
		Provider:         GeminiName,
		ModelUsed:        c.model,
		ExecutionTime:    time.Since(start),
	}, nil
}

// doRequest performs one generateContent POST and decodes the envelope.
func (c *GeminiClient) doRequest(ctx context.Context, body geminiRequest, out *geminiResponse) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("gemini: marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncateForLog(raw))
		// Client errors won't improve on retry; server errors and 429 might.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(err)
		}
		return err
	}

	*out = geminiResponse{}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("gemini: API error %d: %s", out.Error.Code, out.Error.Message)
	}
	return nil
}

func truncateForLog(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// Package providers holds the vision/LLM backends that read scanned
// documents. Each backend takes file bytes plus a prompt and returns the
// model's raw text answer; everything downstream (JSON repair, structuring,
// quality gating) lives in the extraction package and treats the provider as
// a black box.
package providers

import (
	"context"
	"time"
)

// Provider is a vision-capable model backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini").
	Name() string

	// Extract sends the file and prompt to the model and returns its raw
	// text answer. The text may be truncated at the output-token limit;
	// Result.Truncated reports that when the backend exposes it.
	Extract(ctx context.Context, req *ExtractRequest) (*ExtractResult, error)
}

// ExtractRequest is one vision call.
type ExtractRequest struct {
	// Prompt is the instruction text sent alongside the file.
	Prompt string

	// FileBytes is the raw uploaded document (image or PDF).
	FileBytes []byte

	// MIMEType describes FileBytes (e.g. "image/jpeg", "application/pdf").
	MIMEType string

	// MaxOutputTokens caps the response length. Zero uses the backend
	// default.
	MaxOutputTokens int

	// Temperature for generation. Extraction wants it low; zero maps to
	// the backend default of 0.1.
	Temperature float64

	// SingleAttempt disables transport retries. Used by the quality gate,
	// which is allowed exactly one re-extraction call.
	SingleAttempt bool
}

// ExtractResult is the model's answer.
type ExtractResult struct {
	// Text is the raw response text, exactly as the model produced it.
	Text string

	// Truncated is true when the model stopped because it hit the output
	// token limit. Downstream parsing routes such text through JSON repair.
	Truncated bool

	// Token accounting, when the backend reports it.
	PromptTokens     int
	CompletionTokens int

	Provider      string
	ModelUsed     string
	ExecutionTime time.Duration
}

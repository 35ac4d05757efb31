// Package gemini issues single text-generation calls to the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Config holds generation parameters shared by every call.
type Config struct {
	BaseURL         string // empty uses the SDK default endpoint
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// DefaultConfig returns the production generation parameters.
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-2.0-flash",
		Temperature:     0.9,
		MaxOutputTokens: 2048,
		Timeout:         60 * time.Second,
	}
}

// Options tune one call.
type Options struct {
	System string
	JSON   bool
}

// ServiceError reports a transport or service-level failure.
// Status is 0 when the service could not be reached.
type ServiceError struct {
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Client issues generateContent calls. A genai client is built per call
// because the credential belongs to the caller, not the process.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends prompt and returns the first text part of the first candidate.
// An empty candidate list yields "" without error.
func (c *Client) Complete(ctx context.Context, credential, prompt string, opts Options) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", &ServiceError{Message: "missing credential"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cc := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", &ServiceError{Message: "unreachable", Err: fmt.Errorf("create genai client: %w", err)}
	}

	gen := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	if opts.System != "" {
		gen.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	if opts.JSON {
		gen.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), gen)
	if err != nil {
		serr := classify(err)
		c.logger.Warn("gemini call failed",
			"model", c.cfg.Model,
			"status", serr.Status,
			"error", serr.Message,
			"elapsed", time.Since(start))
		return "", serr
	}

	text := firstText(resp)
	c.logger.Debug("gemini call completed",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"response_len", len(text),
		"elapsed", time.Since(start))
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 || cand.Content.Parts[0] == nil {
		return ""
	}
	return cand.Content.Parts[0].Text
}

func classify(err error) *ServiceError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromAPIError(*apiErrPtr, err)
	}
	return &ServiceError{Message: "unreachable", Err: err}
}

func fromAPIError(apiErr genai.APIError, err error) *ServiceError {
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = fmt.Sprintf("service error %d", apiErr.Code)
	}
	return &ServiceError{Status: apiErr.Code, Message: msg, Err: err}
}

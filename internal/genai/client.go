package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
)

// DefaultTimeout bounds a single generation call. Retrieval plus drafting
// can legitimately run for minutes on long sections.
const DefaultTimeout = 5 * time.Minute

// Generator is the surface the services depend on. The HTTP client is the
// production implementation; tests substitute fakes.
type Generator interface {
	ValidateDescription(ctx context.Context, req ValidateRequest) (*ValidateResponse, error)
	GenerateTOC(ctx context.Context, req TOCRequest) (*TOCResponse, error)
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	InterpretTOCChat(ctx context.Context, req TOCChatRequest) (*models.TOCOperation, error)
}

// Client talks to the generation service over JSON HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Generator = (*Client)(nil)

// NewClient creates a generation client for the given base URL.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger,
	}
}

// ValidateDescription scores a draft description.
func (c *Client) ValidateDescription(ctx context.Context, req ValidateRequest) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.post(ctx, "/validate-description", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateTOC produces an outline for a draft with no template match.
func (c *Client) GenerateTOC(ctx context.Context, req TOCRequest) (*TOCResponse, error) {
	var resp TOCResponse
	if err := c.post(ctx, "/generate-toc", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateContent runs one chat turn against a node.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "/generate-content", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InterpretTOCChat maps a natural-language instruction to a structural
// operation against the given tree.
func (c *Client) InterpretTOCChat(ctx context.Context, req TOCChatRequest) (*models.TOCOperation, error) {
	var resp models.TOCOperation
	if err := c.post(ctx, "/toc-chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("generation request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("generation request completed",
		"path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: generation service returned status %d", domain.ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("generation service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

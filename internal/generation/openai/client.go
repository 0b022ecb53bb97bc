// Package openai is a minimal client for the OpenAI images API. Generation
// is a two-step exchange: create the image, then download the PNG from the
// short-lived URL the API returns.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for upstream failure classes. Callers branch on these to
// pick a response status without parsing upstream bodies.
var (
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	ErrUpstreamAuth        = errors.New("upstream authentication failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidPrompt       = errors.New("upstream rejected prompt")
)

// maxImageBytes bounds the downloaded image; DALL-E 3 PNGs at 1024x1024 stay
// well under this.
const maxImageBytes = 8 << 20

// Client calls the images/generations endpoint of an OpenAI-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New creates a client for the given API endpoint.
func New(baseURL, apiKey, model, size string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		size:       size,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage creates one image for prompt and returns its PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	url, err := c.createImage(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return c.downloadImage(ctx, url)
}

func (c *Client) createImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generationRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   c.size,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapHTTPError(resp); err != nil {
		return "", err
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if len(gen.Data) == 0 || gen.Data[0].URL == "" {
		return "", fmt.Errorf("%w: empty data in generation response", ErrUpstreamUnavailable)
	}
	return gen.Data[0].URL, nil
}

func (c *Client) downloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", ErrUpstreamUnavailable, err)
	}
	return img, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return ErrUpstreamRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUpstreamAuth
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidPrompt, string(body))
	default:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
}

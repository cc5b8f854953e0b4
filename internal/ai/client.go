// Package ai wraps the external generative text service behind a single
// Complete operation plus the three editor features built on it. The
// service is a black box: every call carries a timeout, and any failure
// (network, timeout, empty response) is a recoverable error; callers
// must leave the editor buffer untouched.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrEmptyCompletion = errors.New("ai: empty completion")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		logger:     logger,
	}
}

// Request/response shapes of the generateContent REST surface.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends one prompt and returns the model's text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("completion service error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return "", fmt.Errorf("completion service returned %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}

	text := ""
	if len(out.Candidates) > 0 {
		var b strings.Builder
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
		text = strings.TrimSpace(b.String())
	}
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// GenerateDocs produces a documentation block for the code, formatted as
// comments in the file's language, ready to append after the code.
func (c *Client) GenerateDocs(ctx context.Context, code, language string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate concise documentation for the following %s code. "+
			"Return only comment lines valid in %s, with no surrounding explanation:\n\n%s",
		language, language, code)
	docs, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	// Trailing block: callers append this to the existing content.
	return "\n\n" + docs, nil
}

// CompleteLine suggests the single next line given the whole buffer.
func (c *Client) CompleteLine(ctx context.Context, code string) (string, error) {
	prompt := fmt.Sprintf(
		"Complete the latest line of code based on the context of the whole code:\n\n%s\n\n"+
			"Only return the suggested next line without any explanation or extra text.", code)
	return c.Complete(ctx, prompt)
}

// FixSyntax rewrites the buffer with syntax errors corrected.
func (c *Client) FixSyntax(ctx context.Context, code, language string) (string, error) {
	prompt := fmt.Sprintf(
		"Fix all syntax errors in the following %s code. "+
			"Return only the corrected code without any explanation or markdown fences:\n\n%s",
		language, code)
	return c.Complete(ctx, prompt)
}

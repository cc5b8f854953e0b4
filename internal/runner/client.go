// Package runner sends editor buffers to an external sandboxed execution
// service and returns the program's output. Execution is stateless: each
// run ships the whole buffer, and failures (network, timeout, unsupported
// language) are recoverable errors the editor surfaces in its output pane.
package runner

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

	"go.uber.org/zap"
)

var ErrUnsupportedLanguage = errors.New("runner: unsupported language")

// languageVersions pins the runtime version sent with each run. The
// execution service requires an exact version string per language.
var languageVersions = map[string]string{
	"javascript": "18.15.0",
	"typescript": "5.0.3",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"csharp":     "6.12.0",
	"php":        "8.2.3",
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Request/response shapes of the execute surface.

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
}

type executeFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Output string `json:"output"`
		Code   int    `json:"code"`
	} `json:"run"`
}

// Result is what the editor's output pane renders: combined output plus
// stderr separately, so failed runs can be highlighted.
type Result struct {
	Output   string `json:"output"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Run executes the code remotely and returns its output. The language
// must be one the service supports; anything else fails fast without a
// network call.
func (c *Client) Run(ctx context.Context, language, code string) (*Result, error) {
	version, ok := languageVersions[language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	body, err := json.Marshal(executeRequest{
		Language: language,
		Version:  version,
		Files:    []executeFile{{Content: code}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call execution service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("execution service error",
			zap.Int("status", resp.StatusCode),
			zap.String("language", language),
			zap.ByteString("body", payload),
		)
		return nil, fmt.Errorf("execution service returned %d", resp.StatusCode)
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode run response: %w", err)
	}

	return &Result{
		Output:   out.Run.Output,
		Stderr:   out.Run.Stderr,
		ExitCode: out.Run.Code,
	}, nil
}

// Languages lists the languages runs are accepted for.
func Languages() []string {
	out := make([]string, 0, len(languageVersions))
	for lang := range languageVersions {
		out = append(out, lang)
	}
	return out
}

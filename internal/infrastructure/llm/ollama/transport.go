package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ollama %s request: %w", operation, err)
		}
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return classifyStatus(formatOllamaHTTPError(operation, resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "decode "+operation+" response", err)
	}
	return nil
}

func formatOllamaHTTPError(operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// classifyStatus attaches the service error kind to a non-2xx response.
// Client errors other than 429 keep no kind and are never retried.
func classifyStatus(statusErr *HTTPStatusError) error {
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return domain.WrapError(domain.ErrServiceRateLimited, "ollama "+statusErr.Operation, statusErr)
	case statusErr.StatusCode == http.StatusRequestTimeout || statusErr.StatusCode >= 500:
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama "+statusErr.Operation, statusErr)
	default:
		return statusErr
	}
}

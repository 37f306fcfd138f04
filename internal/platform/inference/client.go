package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mentalhealthai/mhai-backend/internal/pkg/httpx"
	"github.com/mentalhealthai/mhai-backend/internal/platform/envutil"
)

// Classifier calls the text-classification serving layer. Each call
// scores one input against one model and returns the full label
// distribution.
type Classifier interface {
	Classify(ctx context.Context, model, input string) ([]LabelScore, error)
}

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		maxRetries: maxRetries,
		httpClient: hc,
	}, nil
}

func NewFromEnv() (*Client, error) {
	return New(Options{
		BaseURL:    envutil.Str("INFERENCE_BASE_URL", "http://localhost:8085"),
		APIKey:     strings.TrimSpace(os.Getenv("INFERENCE_API_KEY")),
		Timeout:    envutil.Dur("INFERENCE_TIMEOUT", 60*time.Second),
		MaxRetries: envutil.Int("INFERENCE_MAX_RETRIES", 2),
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

type inferenceHTTPError struct {
	StatusCode int
	Body       string
}

func (e *inferenceHTTPError) Error() string {
	return fmt.Sprintf("inference http %d: %s", e.StatusCode, e.Body)
}

func (e *inferenceHTTPError) HTTPStatusCode() int { return e.StatusCode }

func (c *Client) Classify(ctx context.Context, model, input string) ([]LabelScore, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("model required")
	}

	req := classifyRequest{Model: model, Inputs: []string{input}}
	var out classifyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/classify", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("inference returned no results for model %s", model)
	}
	return out.Results[0], nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &inferenceHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("inference decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 5*time.Second)
		time.Sleep(httpx.JitterSleep(sleepFor))
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// Package bridgy is a client for the browser-source endpoints of Bridgy.
package bridgy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bridgypoll/pkg/config"
	errs "bridgypoll/pkg/errors"
	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/ratelimit"
	"bridgypoll/pkg/retry"
)

const maxBodyPreview = 200

// Client talks to a Bridgy instance on behalf of the browser sources
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a Bridgy client from the configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "bridgy")

	baseURL := cfg.Bridgy.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Bridgy.Timeout},
		headers: map[string]string{
			"User-Agent": cfg.Bridgy.UserAgent,
			"Accept":     "application/json, text/plain;q=0.9, */*;q=0.8",
		},
		baseURL: baseURL,
		limiter: limiter,
		retry:   retry.FromConfig(cfg.Retry, log),
		logger:  log,
	}
}

// Poll asks Bridgy to poll the silo source identified by key
func (c *Client) Poll(ctx context.Context, silo, token, key string) error {
	_, err := c.post(ctx, EndpointURL(c.baseURL, silo, PollEndpoint), token, key)
	return err
}

// Status fetches Bridgy's status for the silo source identified by key
func (c *Client) Status(ctx context.Context, silo, token, key string) (*Status, error) {
	endpoint := EndpointURL(c.baseURL, silo, StatusEndpoint)
	body, err := c.post(ctx, endpoint, token, key)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          endpoint,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse status")
	}
	return &status, nil
}

// post sends the token and key as a form, retrying retryable failures
func (c *Client) post(ctx context.Context, endpoint, token, key string) ([]byte, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("key", key)
	encoded := form.Encode()

	var body []byte
	err := retry.Do(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
		}
		if err := c.checkResponseStatus(resp, data); err != nil {
			return err
		}
		body = data
		return nil
	}, c.retry)
	return body, err
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps non-2xx responses onto the typed error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errorType := errs.FromStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status":       resp.StatusCode,
		"url":          resp.Request.URL.String(),
		"body_preview": preview(body),
	}
	if errorType == errs.ErrorTypeServerError {
		c.logger.ErrorWithFields("server error", fields)
	} else {
		c.logger.WarnWithFields("request rejected", fields)
	}

	message := strings.TrimSpace(preview(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return errs.New(errorType, resp.StatusCode, "%s", message)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > maxBodyPreview {
		s = s[:maxBodyPreview] + "..."
	}
	return s
}

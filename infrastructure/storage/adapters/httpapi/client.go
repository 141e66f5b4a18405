// Package httpapi implements the object storage contract against a
// REST-style object service. Every operation is one authenticated HTTP
// request under a configured base URL and bucket; HTTP statuses are
// translated into the shared storage error taxonomy.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"blobstore/config"
	"blobstore/domain/observability"
	"blobstore/domain/storage"
)

// Client is the remote HTTP backend. The zero value is not usable; construct
// with New. WithUser derives per-identity copies sharing the transport.
type Client struct {
	baseURL   string
	apiKey    string
	bucket    string
	userToken string
	http      *http.Client
	logger    observability.Logger
	metrics   observability.Metrics
}

// New creates a client for the object service at cfg.BaseURL, bound to
// cfg.Bucket.
func New(cfg config.HTTPAPIConfig, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Bucket == "" {
		return nil, storage.WrapError(storage.CodeInternal, "", fmt.Errorf("httpapi: base URL, API key and bucket are required"))
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.WithFields(map[string]interface{}{"component": "httpapi_storage"}),
		metrics: metrics.WithTags(map[string]string{"storage": "httpapi"}),
	}, nil
}

// WithUser returns a copy of the client that authenticates as the given
// caller identity. Requests carry the token as the bearer credential so
// server-side policy applies per user rather than per service account.
func (c *Client) WithUser(token string) *Client {
	clone := *c
	clone.userToken = token
	return &clone
}

// objectURL builds {base}/object/{bucket}/{key} with each key segment
// escaped.
func (c *Client) objectURL(key string) string {
	return c.baseURL + "/object/" + url.PathEscape(c.bucket) + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// do issues one authenticated request and maps transport-level failures.
// A non-2xx status is returned to the caller for status-specific handling;
// use checkStatus for the common mapping.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, storage.WrapError(storage.CodeInternal, "", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", c.apiKey)
	token := c.userToken
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.IncrementCounter("httpapi.timeouts", nil)
			return nil, &storage.Error{Code: storage.CodeTimeout, Retryable: true, Err: err}
		}
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			c.metrics.IncrementCounter("httpapi.timeouts", nil)
			return nil, &storage.Error{Code: storage.CodeTimeout, Retryable: true, Err: err}
		}
		c.metrics.IncrementCounter("httpapi.network_errors", nil)
		return nil, &storage.Error{Code: storage.CodeNetworkError, Retryable: true, Err: err}
	}
	return resp, nil
}

// checkStatus drains and closes the response and maps its status into the
// error taxonomy. Call only when the body is not needed.
func checkStatus(resp *http.Response, key string) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return statusError(resp.StatusCode, key, string(detail))
}

func statusError(status int, key, detail string) *storage.Error {
	e := &storage.Error{Key: key, Err: fmt.Errorf("http status %d: %s", status, strings.TrimSpace(detail))}
	switch status {
	case http.StatusNotFound:
		e.Code = storage.CodeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = storage.CodePermissionDenied
	case http.StatusRequestEntityTooLarge:
		e.Code = storage.CodeQuotaExceeded
	case http.StatusConflict:
		e.Code = storage.CodeAlreadyExists
	case http.StatusPreconditionFailed:
		e.Code = storage.CodePreconditionFailed
	default:
		e.Code = storage.CodeInternal
	}
	return e
}

// Package apiclient is the single choke point for every request to the
// file-storage backend. It attaches credentials, bootstraps the
// anti-forgery cookie and normalizes failures into a small error taxonomy
// before anything above it sees them.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
	csrfPath       = "/auth/csrf/"
)

// TokenSource yields the current auth token, or "" when unauthenticated.
type TokenSource interface {
	Token() string
}

// ProgressFunc observes upload progress as the request body is consumed.
type ProgressFunc func(sentBytes, totalBytes int64)

type Client struct {
	baseURL  string
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics

	// csrfMu serializes the bootstrap call so the eager startup attempt
	// and a lazy per-request attempt don't race on the cookie jar.
	csrfMu sync.Mutex
}

func New(baseURL string, tokens TokenSource, log *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	c := &Client{
		baseURL:  baseURL,
		base:     base,
		http:     &http.Client{Jar: jar},
		tokens:   tokens,
		log:      log,
		registry: registry,
		metrics:  newMetrics(registry),
	}

	// Eager anti-forgery bootstrap, fire-and-forget. Failure is not fatal:
	// the first mutating request retries lazily.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.bootstrapCSRF(ctx); err != nil {
			c.log.Warn("csrf bootstrap failed", zap.Error(err))
		}
	}()

	return c, nil
}

// BaseURL returns the configured API base without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Registry exposes the client-owned metrics registry for a /metrics
// endpoint.
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, 0, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	buf, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, "application/json", buf, int64(buf.Len()), nil, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	buf, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, nil, "application/json", buf, int64(buf.Len()), nil, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil, 0, nil, nil)
}

// PostMultipart submits a file plus form fields as multipart/form-data.
// The whole form is buffered up front so progress can be reported against
// a known total.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file io.Reader, progress ProgressFunc, out any) error {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	total := int64(body.Len())
	var reader io.Reader = body
	if progress != nil {
		reader = &progressReader{r: body, total: total, fn: progress}
	}
	return c.do(ctx, http.MethodPost, path, nil, writer.FormDataContentType(), reader, total, nil, out)
}

// Download fetches raw bytes with binary content negotiation.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	var payload []byte
	accept := "application/octet-stream"
	err := c.do(ctx, http.MethodGet, path, nil, "", nil, 0, &accept, &payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, contentLength int64, accept *string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.ContentLength = contentLength
	}

	req.Header.Set("Accept", "application/json")
	if accept != nil {
		req.Header.Set("Accept", *accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	if method != http.MethodGet {
		if err := c.attachCSRF(ctx, req); err != nil {
			c.log.Warn("could not attach csrf token", zap.Error(err))
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(method, 0, start)
		if ctx.Err() != nil {
			// Cancellation is not an error to surface; settle silently.
			return ctx.Err()
		}
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	c.metrics.observe(method, resp.StatusCode, start)

	c.log.Debug("request settled",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		return &AuthError{}
	}

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		var parsed errorBody
		json.Unmarshal(raw, &parsed)
		return &APIError{StatusCode: resp.StatusCode, Message: parsed.message()}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if payload, ok := out.(*[]byte); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Err: err}
		}
		*payload = data
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fallbackErrorMessage}
	}
	return nil
}

// attachCSRF sets the anti-forgery header from the cookie jar, performing
// a single bootstrap call when the cookie is missing. The
// bootstrap-then-attach happens at most once per request.
func (c *Client) attachCSRF(ctx context.Context, req *http.Request) error {
	token := c.csrfCookie()
	if token == "" {
		if err := c.bootstrapCSRF(ctx); err != nil {
			return err
		}
		token = c.csrfCookie()
	}
	if token != "" {
		req.Header.Set(csrfHeaderName, token)
	}
	return nil
}

func (c *Client) csrfCookie() string {
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) bootstrapCSRF(ctx context.Context) error {
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+csrfPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("csrf bootstrap returned status %d", resp.StatusCode)
	}
	return nil
}

func encodeJSON(body any) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, err
	}
	return buf, nil
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the hospital management backend.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Configuration constants.
const (
	// DefaultBaseURL is where the backend listens in a development setup.
	DefaultBaseURL = "http://localhost:3001/api"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize is the largest body the client will read.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 1 * 1024 * 1024

	// RequestIDHeader carries a per-request UUID for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Version is reported in the User-Agent header. Set by main.
var Version = "dev"

// PERFORMANCE: Connection pooling shared by every Client without its own http.Client.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend. Configure it with the With* methods before use;
// it is safe for concurrent use afterwards.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	verbose    bool
}

// NewClient creates a client for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	c := &Client{
		httpClient: sharedHTTPClient,
		timeout:    DefaultTimeout,
		userAgent:  "hms/" + Version,
	}
	return c.WithBaseURL(baseURL)
}

// WithBaseURL sets the API root. Trailing slashes are dropped.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return c
}

// WithHTTPClient replaces the shared pooled client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithTimeout sets the per-request timeout. Zero or negative disables it;
// the caller's context still applies.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// WithVerbose enables request/response logging.
func (c *Client) WithVerbose(v bool) *Client {
	c.verbose = v
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// logRequest logs method and path only. Headers and bodies carry credentials.
func (c *Client) logRequest(req *http.Request, requestID string) {
	if c.verbose {
		log.Printf("API Request: %s %s [%s]", req.Method, req.URL.Path, requestID)
	}
}

func (c *Client) logResponse(resp *http.Response, requestID string, duration time.Duration) {
	if c.verbose {
		log.Printf("API Response: %d %s [%s] (%v)", resp.StatusCode, requestPath(resp), requestID, duration)
	}
}

func requestPath(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.URL.Path
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// do performs one JSON request and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("User-Agent", c.userAgent)
	request.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	c.logRequest(request, requestID)
	start := time.Now()
	resp, err := c.httpClient.Do(request)

	// SECURITY: Drop the credential before anything can log the request
	request.Header.Del("Authorization")

	if err != nil {
		if c.verbose {
			log.Printf("API Error: %s %s [%s]: %v", method, path, requestID, err)
		}
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	c.logResponse(resp, requestID, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if apiErr := embeddedError(resp.StatusCode, data); apiErr != nil {
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

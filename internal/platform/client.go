// Package platform implements the Admin GraphQL API client for the commerce
// platform. All upstream failures surface as typed errors so callers can
// distinguish "no data" from "call failed".
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIVersion selects the Admin API version when none is configured.
const DefaultAPIVersion = "2024-01"

// APIError is a non-2xx HTTP response from the platform.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API returned status %d: %s", e.StatusCode, e.Body)
}

// RateLimitError is a 429 response carrying the platform's retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("platform API rate limited, retry after %s", e.RetryAfter)
}

// GraphQLError is a 200 response whose body carries GraphQL-level errors.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "platform GraphQL errors: " + strings.Join(e.Messages, "; ")
}

// Client is an authenticated Admin API client for one shop.
type Client struct {
	shop             string
	accessToken      string
	apiVersion       string
	baseURL          string // overrides https://{shop} when set (tests)
	httpClient       *http.Client
	bulkPollInterval time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at an alternative host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIVersion overrides the Admin API version.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithBulkPollInterval tunes how often a bulk operation's status is polled.
func WithBulkPollInterval(d time.Duration) Option {
	return func(c *Client) { c.bulkPollInterval = d }
}

// NewClient creates a client for shop using its access token. A bare shop
// name is expanded to the platform's canonical domain.
func NewClient(shop, accessToken string, opts ...Option) *Client {
	if !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}

	c := &Client{
		shop:             shop,
		accessToken:      accessToken,
		apiVersion:       DefaultAPIVersion,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		bulkPollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shop returns the canonical shop domain this client is bound to.
func (c *Client) Shop() string {
	return c.shop
}

func (c *Client) graphqlURL() string {
	host := "https://" + c.shop
	if c.baseURL != "" {
		host = c.baseURL
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", host, c.apiVersion)
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// userError is the platform's mutation-level validation error shape.
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// execute runs one GraphQL request and decodes the data object into out.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read platform response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 5 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var gresp gqlResponse
	if err := json.Unmarshal(body, &gresp); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	if len(gresp.Errors) > 0 {
		messages := make([]string, len(gresp.Errors))
		for i, e := range gresp.Errors {
			messages[i] = e.Message
		}
		return &GraphQLError{Messages: messages}
	}

	if out != nil {
		if err := json.Unmarshal(gresp.Data, out); err != nil {
			return fmt.Errorf("failed to decode GraphQL data: %w", err)
		}
	}
	return nil
}

// download fetches a bulk operation result file.
func (c *Client) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulk result download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close() // nolint:errcheck
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}

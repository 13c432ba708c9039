package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/asset-market/internal/auth"
	"github.com/rickgao/asset-market/internal/model"
)

// Retry backoffs below this are raised to it.
const minRetryBackoff = time.Millisecond

// Client talks to a marketd instance.
type Client struct {
	baseURL    string
	creds      *auth.Credentials
	caller     model.Identity
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCredentials signs every request with creds.
func WithCredentials(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithCaller sends id in the X-Caller header. Only daemons running with
// server.insecure_caller_header accept it.
func WithCaller(id model.Identity) ClientOption {
	return func(c *Client) {
		c.caller = id
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for reads. A backoff below one
// millisecond is raised to one millisecond.
func WithRetries(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
		c.retryBackoff = max(backoff, minRetryBackoff)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/asset-market/internal/auth"
	"github.com/rickgao/asset-market/internal/model"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://localhost:8080/")

		if c.baseURL != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.creds != nil || !c.caller.IsNull() {
			t.Error("client should be anonymous by default")
		}
	})

	t.Run("with options", func(t *testing.T) {
		hc := &http.Client{}
		c := NewClient("http://localhost:8080",
			WithHTTPClient(hc),
			WithTimeout(5*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithCaller("alice"),
		)
		if c.httpClient != hc || hc.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s on custom client", hc.Timeout)
		}
		if c.maxRetries != 10 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v, want 10/500ms", c.maxRetries, c.retryBackoff)
		}
		if c.caller != "alice" {
			t.Errorf("caller = %q, want alice", c.caller)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 409, Code: model.CodeStaleListing, Message: "listing 3"}
		want := "market api error 409: StaleListing: listing 3"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("unwraps to model sentinel", func(t *testing.T) {
		err := error(&APIError{StatusCode: 409, Code: model.CodeStaleListing})
		if !errors.Is(err, model.ErrStaleListing) {
			t.Error("errors.Is(err, ErrStaleListing) = false, want true")
		}
		if model.KindOf(err) != model.KindStateConflict {
			t.Errorf("KindOf() = %q, want %q", model.KindOf(err), model.KindStateConflict)
		}
		if errors.Is(&APIError{StatusCode: 500}, model.ErrStaleListing) {
			t.Error("uncoded error should not match a sentinel")
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{503, true},
			{429, true},
			{400, false},
			{403, false},
			{404, false},
			{409, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

func TestDoRequest(t *testing.T) {
	t.Run("sends json and caller header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
			}
			if r.Header.Get(auth.CallerHeader) != "alice" {
				t.Errorf("%s = %q, want alice", auth.CallerHeader, r.Header.Get(auth.CallerHeader))
			}
			if r.Header.Get(HeaderRequestID) == "" {
				t.Errorf("%s is empty", HeaderRequestID)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"payment":5}` {
				t.Errorf("body = %s, want {\"payment\":5}", body)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithCaller("alice"))
		if _, err := c.doRequest(context.Background(), http.MethodPost, "/x", nil, BuyRequest{Payment: 5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("signs with credentials", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		verifier := auth.NewVerifier(map[model.Identity]*rsa.PublicKey{"alice": &key.PublicKey}, time.Minute)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := verifier.Authenticate(r)
			if err != nil || id != "alice" {
				t.Errorf("Authenticate() = %q, %v, want alice", id, err)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithCredentials(&auth.Credentials{Identity: "alice", PrivateKey: key}))
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/v1/accounts/alice", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("decodes error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(ErrorResponse{Code: model.CodeNotSeller, Message: "caller is not the seller"})
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodPost, "/v1/listings/1/cancel", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 403 || apiErr.Code != model.CodeNotSeller {
			t.Errorf("APIError = %d/%s, want 403/NotSeller", apiErr.StatusCode, apiErr.Code)
		}
		if !errors.Is(err, model.ErrNotSeller) {
			t.Error("errors.Is(err, ErrNotSeller) = false, want true")
		}
	})

	t.Run("non-json error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream down`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/x", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Code != "" || apiErr.Message != "Bad Gateway" {
			t.Errorf("APIError = %q/%q, want empty code and status text", apiErr.Code, apiErr.Message)
		}
		if !strings.Contains(string(apiErr.Body), "upstream") {
			t.Errorf("Body = %q, want raw body kept", apiErr.Body)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/x", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error = %v, want context canceled", err)
		}
	})
}

func TestRetries(t *testing.T) {
	t.Run("get retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		resp, err := c.Health(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != "ok" {
			t.Errorf("Status = %q, want ok", resp.Status)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("zero backoff is raised to the minimum", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 0))
		if c.retryBackoff != minRetryBackoff {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, minRetryBackoff)
		}
		if _, err := c.Health(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("get does not retry domain errors", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Code: model.CodeUnknownListing})
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		_, err := c.Listing(context.Background(), 9)
		if !errors.Is(err, model.ErrUnknownListing) {
			t.Errorf("Listing() error = %v, want UnknownListing", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 10*time.Millisecond))
		_, err := c.Health(context.Background())
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error = %v, want max retries exceeded", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("post is never retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.Buy(context.Background(), 1, 100); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.Health(ctx)
		if err == nil || !strings.Contains(err.Error(), "context") {
			t.Errorf("error = %v, want context error", err)
		}
	})
}

func TestEndpoints(t *testing.T) {
	type call struct {
		method string
		path   string
		query  string
		body   string
	}

	tests := []struct {
		name     string
		response string
		do       func(c *Client) error
		want     call
	}{
		{
			name:     "mint",
			response: `{"asset_id":4}`,
			do: func(c *Client) error {
				id, err := c.Mint(context.Background(), "nft", "alice", "ipfs://a")
				if err == nil && id != 4 {
					t.Errorf("Mint() = %d, want 4", id)
				}
				return err
			},
			want: call{method: "POST", path: "/v1/collections/nft/assets", body: `{"to":"alice","uri":"ipfs://a"}`},
		},
		{
			name:     "transfer",
			response: `{"collection":"nft","asset_id":2,"owner":"bob","uri":""}`,
			do: func(c *Client) error {
				a, err := c.Transfer(context.Background(), "nft", "alice", "bob", 2)
				if err == nil && a.Owner != "bob" {
					t.Errorf("Transfer() owner = %q, want bob", a.Owner)
				}
				return err
			},
			want: call{method: "POST", path: "/v1/collections/nft/assets/2/transfer", body: `{"from":"alice","to":"bob"}`},
		},
		{
			name:     "approve",
			response: `{"collection":"nft","asset_id":2,"owner":"alice","uri":"","approved":"marketplace"}`,
			do: func(c *Client) error {
				_, err := c.Approve(context.Background(), "nft", "marketplace", 2)
				return err
			},
			want: call{method: "POST", path: "/v1/collections/nft/assets/2/approve", body: `{"operator":"marketplace"}`},
		},
		{
			name:     "owned",
			response: `{"owner":"alice","asset_ids":[1,3],"uris":["a","c"],"balance":2}`,
			do: func(c *Client) error {
				resp, err := c.Owned(context.Background(), "nft", "alice")
				if err == nil && (resp.Balance != 2 || resp.AssetIDs[1] != 3) {
					t.Errorf("Owned() = %+v, want two assets", resp)
				}
				return err
			},
			want: call{method: "GET", path: "/v1/collections/nft/owners/alice"},
		},
		{
			name:     "list",
			response: `{"listing_id":1}`,
			do: func(c *Client) error {
				_, err := c.List(context.Background(), "nft", 2, 500)
				return err
			},
			want: call{method: "POST", path: "/v1/listings", body: `{"collection":"nft","asset_id":2,"price":500}`},
		},
		{
			name:     "active listings filtered",
			response: `{"listings":[{"listing_id":1,"is_active":true,"status":"active"}]}`,
			do: func(c *Client) error {
				ls, err := c.ActiveListings(context.Background(), ListingsParams{Collection: "nft", Seller: "alice"})
				if err == nil && len(ls) != 1 {
					t.Errorf("ActiveListings() returned %d, want 1", len(ls))
				}
				return err
			},
			want: call{method: "GET", path: "/v1/listings", query: "collection=nft&seller=alice"},
		},
		{
			name:     "buy",
			response: `{"listing_id":1,"is_active":false,"status":"sold","buyer":"bob"}`,
			do: func(c *Client) error {
				l, err := c.Buy(context.Background(), 1, 500)
				if err == nil && l.Status != model.ListingSold {
					t.Errorf("Buy() status = %q, want sold", l.Status)
				}
				return err
			},
			want: call{method: "POST", path: "/v1/listings/1/buy", body: `{"payment":500}`},
		},
		{
			name:     "cancel",
			response: `{"listing_id":1,"status":"cancelled"}`,
			do: func(c *Client) error {
				_, err := c.Cancel(context.Background(), 1)
				return err
			},
			want: call{method: "POST", path: "/v1/listings/1/cancel"},
		},
		{
			name:     "withdraw",
			response: `{"account":"bob","available":10,"held":0}`,
			do: func(c *Client) error {
				acct, err := c.Withdraw(context.Background(), "bob", 90)
				if err == nil && acct.Available != 10 {
					t.Errorf("Withdraw() available = %d, want 10", acct.Available)
				}
				return err
			},
			want: call{method: "POST", path: "/v1/accounts/bob/withdraw", body: `{"amount":90}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got call
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				got = call{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)}
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			if err := tt.do(NewClient(server.URL)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("request = %+v, want %+v", got, tt.want)
			}
		})
	}
}

package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rickgao/asset-market/internal/model"
)

func accountPath(account model.Identity) string {
	return "/v1/accounts/" + url.PathEscape(account.String())
}

// Deposit credits account.
func (c *Client) Deposit(ctx context.Context, account model.Identity, amount int64) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.post(ctx, accountPath(account)+"/deposit", AmountRequest{Amount: amount}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Withdraw debits the caller's own account.
func (c *Client) Withdraw(ctx context.Context, account model.Identity, amount int64) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.post(ctx, accountPath(account)+"/withdraw", AmountRequest{Amount: amount}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account returns the balances of account.
func (c *Client) Account(ctx context.Context, account model.Identity) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.get(ctx, accountPath(account), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events returns journaled events that occurred at or after since (µs since
// epoch), oldest first.
func (c *Client) Events(ctx context.Context, since int64, limit int) ([]model.Event, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatInt(since, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp EventsResponse
	if err := c.get(ctx, "/v1/events", query, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Health returns the daemon status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

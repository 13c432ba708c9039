package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/asset-market/internal/model"
)

// ListingsParams filters GET /v1/listings.
type ListingsParams struct {
	Collection string
	Seller     model.Identity
}

// List offers an asset for sale.
func (c *Client) List(ctx context.Context, collection string, id model.AssetID, price int64) (model.ListingID, error) {
	var resp ListResponse
	req := ListRequest{Collection: collection, AssetID: id, Price: price}
	if err := c.post(ctx, "/v1/listings", req, &resp); err != nil {
		return 0, err
	}
	return resp.ListingID, nil
}

// Listing fetches one listing in any state.
func (c *Client) Listing(ctx context.Context, id model.ListingID) (*model.Listing, error) {
	var listing model.Listing
	if err := c.get(ctx, fmt.Sprintf("/v1/listings/%d", id), nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ActiveListings returns the active listings matching params, oldest first.
func (c *Client) ActiveListings(ctx context.Context, params ListingsParams) ([]model.Listing, error) {
	query := url.Values{}
	if params.Collection != "" {
		query.Set("collection", params.Collection)
	}
	if !params.Seller.IsNull() {
		query.Set("seller", params.Seller.String())
	}

	var resp ListingsResponse
	if err := c.get(ctx, "/v1/listings", query, &resp); err != nil {
		return nil, err
	}
	return resp.Listings, nil
}

// Buy pays for a listing. payment must equal the price.
func (c *Client) Buy(ctx context.Context, id model.ListingID, payment int64) (*model.Listing, error) {
	var listing model.Listing
	if err := c.post(ctx, fmt.Sprintf("/v1/listings/%d/buy", id), BuyRequest{Payment: payment}, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Cancel withdraws a listing.
func (c *Client) Cancel(ctx context.Context, id model.ListingID) (*model.Listing, error) {
	var listing model.Listing
	if err := c.post(ctx, fmt.Sprintf("/v1/listings/%d/cancel", id), nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

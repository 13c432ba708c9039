package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/asset-market/internal/model"
)

func assetsPath(collection string) string {
	return "/v1/collections/" + url.PathEscape(collection) + "/assets"
}

// Collections lists the hosted collections.
func (c *Client) Collections(ctx context.Context) (*CollectionsResponse, error) {
	var resp CollectionsResponse
	if err := c.get(ctx, "/v1/collections", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Mint creates an asset owned by to.
func (c *Client) Mint(ctx context.Context, collection string, to model.Identity, uri string) (model.AssetID, error) {
	var resp MintResponse
	if err := c.post(ctx, assetsPath(collection), MintRequest{To: to, URI: uri}, &resp); err != nil {
		return 0, err
	}
	return resp.AssetID, nil
}

// Asset fetches one asset.
func (c *Client) Asset(ctx context.Context, collection string, id model.AssetID) (*model.Asset, error) {
	var asset model.Asset
	path := fmt.Sprintf("%s/%d", assetsPath(collection), id)
	if err := c.get(ctx, path, nil, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Transfer moves an asset from one identity to another.
func (c *Client) Transfer(ctx context.Context, collection string, from, to model.Identity, id model.AssetID) (*model.Asset, error) {
	var asset model.Asset
	path := fmt.Sprintf("%s/%d/transfer", assetsPath(collection), id)
	if err := c.post(ctx, path, TransferRequest{From: from, To: to}, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Approve grants operator the right to transfer the asset. An empty
// operator clears the approval.
func (c *Client) Approve(ctx context.Context, collection string, operator model.Identity, id model.AssetID) (*model.Asset, error) {
	var asset model.Asset
	path := fmt.Sprintf("%s/%d/approve", assetsPath(collection), id)
	if err := c.post(ctx, path, ApproveRequest{Operator: operator}, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Owned lists the assets held by owner.
func (c *Client) Owned(ctx context.Context, collection string, owner model.Identity) (*OwnedResponse, error) {
	var resp OwnedResponse
	path := "/v1/collections/" + url.PathEscape(collection) + "/owners/" + url.PathEscape(owner.String())
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

package api

import "github.com/rickgao/asset-market/internal/model"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    model.Code `json:"code"`
	Message string     `json:"message"`
}

// HealthResponse from GET /health
type HealthResponse struct {
	Status      string            `json:"status"` // healthy or unhealthy
	Instance    string            `json:"instance"`
	Version     string            `json:"version"`
	LastSeq     uint64            `json:"last_seq"`
	Collections int               `json:"collections"`
	Components  map[string]string `json:"components,omitempty"`
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// MintRequest for POST /v1/collections/{collection}/assets
type MintRequest struct {
	To  model.Identity `json:"to"`
	URI string         `json:"uri"`
}

// MintResponse from POST /v1/collections/{collection}/assets
type MintResponse struct {
	AssetID model.AssetID `json:"asset_id"`
}

// TransferRequest for POST /v1/collections/{collection}/assets/{id}/transfer
type TransferRequest struct {
	From model.Identity `json:"from"`
	To   model.Identity `json:"to"`
}

// ApproveRequest for POST /v1/collections/{collection}/assets/{id}/approve.
// An empty operator clears the approval.
type ApproveRequest struct {
	Operator model.Identity `json:"operator"`
}

// OwnedResponse from GET /v1/collections/{collection}/owners/{owner}.
// AssetIDs and URIs are parallel.
type OwnedResponse struct {
	Owner    model.Identity  `json:"owner"`
	AssetIDs []model.AssetID `json:"asset_ids"`
	URIs     []string        `json:"uris"`
	Balance  int             `json:"balance"`
}

// CollectionInfo describes one hosted collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	TotalSupply int    `json:"total_supply"`
}

// CollectionsResponse from GET /v1/collections
type CollectionsResponse struct {
	Marketplace model.Identity   `json:"marketplace"`
	Currency    string           `json:"currency"`
	Decimals    int32            `json:"decimals"` // smallest-unit exponent of Currency
	Collections []CollectionInfo `json:"collections"`
}

// -----------------------------------------------------------------------------
// Marketplace
// -----------------------------------------------------------------------------

// ListRequest for POST /v1/listings
type ListRequest struct {
	Collection string        `json:"collection"`
	AssetID    model.AssetID `json:"asset_id"`
	Price      int64         `json:"price"`
}

// ListResponse from POST /v1/listings
type ListResponse struct {
	ListingID model.ListingID `json:"listing_id"`
}

// ListingsResponse from GET /v1/listings
type ListingsResponse struct {
	Listings []model.Listing `json:"listings"`
}

// BuyRequest for POST /v1/listings/{id}/buy
type BuyRequest struct {
	Payment int64 `json:"payment"`
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

// AmountRequest for POST /v1/accounts/{id}/deposit and /withdraw
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// AccountResponse from GET /v1/accounts/{id}
type AccountResponse struct {
	Account   model.Identity `json:"account"`
	Available int64          `json:"available"`
	Held      int64          `json:"held"`
}

// -----------------------------------------------------------------------------
// Journal
// -----------------------------------------------------------------------------

// EventsResponse from GET /v1/events
type EventsResponse struct {
	Events []model.Event `json:"events"`
}

// Package api holds the JSON wire types of the marketplace HTTP API and a
// client for it.
//
// Routes (all under the daemon's listen address):
//   - POST /v1/collections/{collection}/assets
//   - GET  /v1/collections/{collection}/assets/{id}
//   - POST /v1/collections/{collection}/assets/{id}/transfer
//   - POST /v1/collections/{collection}/assets/{id}/approve
//   - GET  /v1/collections/{collection}/owners/{owner}
//   - GET  /v1/collections
//   - POST /v1/listings, GET /v1/listings, GET /v1/listings/{id}
//   - POST /v1/listings/{id}/buy, POST /v1/listings/{id}/cancel
//   - POST /v1/accounts/{id}/deposit, POST /v1/accounts/{id}/withdraw
//   - GET  /v1/accounts/{id}
//   - GET  /v1/events (only when the daemon journals events)
//
// Failed requests carry an ErrorResponse body. The client turns it back into
// an *APIError whose Unwrap yields the matching model sentinel, so callers can
// test remote failures with errors.Is(err, model.ErrStaleListing).
package api

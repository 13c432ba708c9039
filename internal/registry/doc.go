// Package registry implements the asset registry of one collection.
//
// The registry:
//   - Mints assets with dense, never reused ids starting at 0
//   - Tracks the current owner and immutable metadata URI of every asset
//   - Keeps a per-owner enumeration index with O(1) insert and remove
//   - Holds at most one approved operator per asset, cleared on every transfer
package registry

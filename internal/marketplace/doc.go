// Package marketplace implements fixed-price listings over asset registries.
//
// A holder approves the marketplace for one asset and lists it at a price.
// Any buyer completes the swap in one call: payment moves to the seller and
// the asset moves to the buyer, or nothing changes. The seller may instead
// cancel. Sold and cancelled listings never become active again.
//
// Listing an asset that already has an active listing is allowed. Once one of
// them sells, the others fail at buy time with StaleListing.
package marketplace

// Package model defines shared data types used across the asset market.
//
// Conventions:
//   - Identities: opaque strings, the empty string is the null identity
//   - Asset ids: dense uint64 per collection, starting at 0
//   - Listing ids: uint64 per marketplace, starting at 1 (0 means "no listing")
//   - Amounts: int64 in the smallest currency unit
//   - Timestamps: int64 microseconds since Unix epoch
package model

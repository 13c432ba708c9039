// Package audit periodically checks exchange invariants without changing
// any state: every registry's owner index must agree with its asset table,
// and active listings whose seller no longer owns the asset (or revoked the
// marketplace approval) are counted as stale.
package audit

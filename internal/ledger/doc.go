// Package ledger is the in-memory value-transfer primitive used to pay sellers.
//
// Balances are integer amounts in the smallest currency unit. A purchase first
// places a hold on the buyer's funds, then either settles the hold to the
// seller or releases it back to the buyer, so payment commits only when the
// asset transfer does.
package ledger

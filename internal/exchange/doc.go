// Package exchange ties the asset registries, the ledger and the marketplace
// together behind one lock so that every mutating operation is applied in a
// single total order, and reports each committed operation as a model.Event.
//
// Reads may go directly to the registries, ledger and marketplace; each of
// them is safe for concurrent use on its own.
package exchange

// Package feed streams committed exchange events to websocket subscribers.
//
// The Hub is an exchange publisher: each event is encoded once and offered
// to every subscriber's send buffer without blocking. A subscriber whose
// buffer is full is disconnected rather than allowed to stall the exchange.
// Subscribers may filter by collection and event type with the "collection"
// and "type" query parameters.
//
// Client is the matching dialer used by marketctl watch.
package feed

// Package auth signs and verifies marketplace API requests.
//
// Every request carries three headers: the caller identity, a millisecond
// timestamp, and a base64 RSA-PSS (SHA-256) signature over
// timestamp + method + path. The server resolves the identity to a
// registered public key and rejects timestamps outside the allowed skew.
package auth

// Package httpapi exposes an exchange over JSON/HTTP.
//
// Reads are anonymous. Mutations require an identity from the configured
// auth.Authenticator and fail with 401 otherwise. Domain errors map to
// status by kind: not found 404, permission denied 403, invalid argument
// 400, state conflict 409.
package httpapi

package auth

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/asset-market/internal/model"
)

// Verification failures. All of them mean the request is unauthenticated.
var (
	ErrMissingHeaders = errors.New("missing authentication headers")
	ErrUnknownKey     = errors.New("unknown access key")
	ErrBadTimestamp   = errors.New("malformed timestamp")
	ErrClockSkew      = errors.New("timestamp outside allowed skew")
	ErrBadSignature   = errors.New("signature does not verify")
)

// Authenticator resolves the caller of an HTTP request.
type Authenticator interface {
	Authenticate(r *http.Request) (model.Identity, error)
}

// Verifier checks request signatures against registered public keys.
type Verifier struct {
	keys    map[model.Identity]*rsa.PublicKey
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier for the given identity -> key table.
func NewVerifier(keys map[model.Identity]*rsa.PublicKey, maxSkew time.Duration) *Verifier {
	return &Verifier{keys: keys, maxSkew: maxSkew, now: time.Now}
}

// LoadVerifier reads one public key PEM per identity.
func LoadVerifier(paths map[string]string, maxSkew time.Duration) (*Verifier, error) {
	keys := make(map[model.Identity]*rsa.PublicKey, len(paths))
	for id, path := range paths {
		key, err := LoadPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("load key for %s: %w", id, err)
		}
		keys[model.Identity(id)] = key
	}
	return NewVerifier(keys, maxSkew), nil
}

// Authenticate returns the identity whose key signed r.
func (v *Verifier) Authenticate(r *http.Request) (model.Identity, error) {
	id := r.Header.Get(HeaderKey)
	tsHeader := r.Header.Get(HeaderTimestamp)
	sigHeader := r.Header.Get(HeaderSignature)
	if id == "" || tsHeader == "" || sigHeader == "" {
		return model.NullIdentity, ErrMissingHeaders
	}

	key, ok := v.keys[model.Identity(id)]
	if !ok {
		return model.NullIdentity, fmt.Errorf("%w: %s", ErrUnknownKey, id)
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return model.NullIdentity, ErrBadTimestamp
	}
	if v.maxSkew > 0 {
		skew := v.now().Sub(time.UnixMilli(ts))
		if skew < -v.maxSkew || skew > v.maxSkew {
			return model.NullIdentity, fmt.Errorf("%w: %s", ErrClockSkew, skew)
		}
	}

	sig, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return model.NullIdentity, ErrBadSignature
	}
	digest := signingDigest(ts, r.Method, r.URL.Path)
	if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], sig, pssOptions); err != nil {
		return model.NullIdentity, ErrBadSignature
	}

	return model.Identity(id), nil
}

// CallerHeader is the development header trusted by HeaderAuthenticator.
const CallerHeader = "X-Caller"

// HeaderAuthenticator trusts the X-Caller header. Development only.
type HeaderAuthenticator struct{}

// Authenticate returns the X-Caller header value.
func (HeaderAuthenticator) Authenticate(r *http.Request) (model.Identity, error) {
	id := r.Header.Get(CallerHeader)
	if id == "" {
		return model.NullIdentity, ErrMissingHeaders
	}
	return model.Identity(id), nil
}

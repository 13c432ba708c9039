package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/asset-market/internal/model"
)

// Request header names.
const (
	HeaderKey       = "MARKET-ACCESS-KEY"
	HeaderTimestamp = "MARKET-ACCESS-TIMESTAMP"
	HeaderSignature = "MARKET-ACCESS-SIGNATURE"
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

// Credentials identify a caller and sign its requests.
type Credentials struct {
	Identity   model.Identity
	PrivateKey *rsa.PrivateKey
}

// LoadCredentials loads credentials from an identity and a private key file path.
func LoadCredentials(identity, privateKeyPath string) (*Credentials, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		Identity:   model.Identity(identity),
		PrivateKey: privateKey,
	}, nil
}

// SignRequest returns the authentication headers for method and path.
func (c *Credentials) SignRequest(method, path string) (map[string]string, error) {
	return c.signAt(time.Now(), method, path)
}

// Sign sets the authentication headers on req.
func (c *Credentials) Sign(req *http.Request) error {
	headers, err := c.SignRequest(req.Method, req.URL.Path)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}

func (c *Credentials) signAt(now time.Time, method, path string) (map[string]string, error) {
	ts := now.UnixMilli()

	digest := signingDigest(ts, method, path)
	signature, err := rsa.SignPSS(rand.Reader, c.PrivateKey, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	return map[string]string{
		HeaderKey:       string(c.Identity),
		HeaderTimestamp: strconv.FormatInt(ts, 10),
		HeaderSignature: base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// signingDigest hashes timestamp_ms + method + path.
func signingDigest(timestampMs int64, method, path string) [32]byte {
	return sha256.Sum256([]byte(strconv.FormatInt(timestampMs, 10) + method + path))
}

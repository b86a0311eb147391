package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const DefaultAPIKeyHeader = "X-API-Key"

// APIKey checks a single shared token sent in a request header.
type APIKey struct {
	headerName string
	hash       string
}

// NewAPIKey returns nil when token is empty.
func NewAPIKey(headerName, token string) *APIKey {
	if token == "" {
		return nil
	}
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}
	return &APIKey{headerName: headerName, hash: HashAPIKey(token)}
}

// Present reports whether the request carries the header at all.
func (k *APIKey) Present(r *http.Request) bool {
	return r.Header.Get(k.headerName) != ""
}

func (k *APIKey) Valid(r *http.Request) bool {
	hash := HashAPIKey(r.Header.Get(k.headerName))
	return subtle.ConstantTimeCompare([]byte(k.hash), []byte(hash)) == 1
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

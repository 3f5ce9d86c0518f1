// Package auth authenticates callers of the inventory API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method identifies how a caller proved its identity.
type Method string

const (
	// MethodNone indicates no authentication.
	MethodNone Method = "none"
	// MethodBasic indicates HTTP Basic authentication.
	MethodBasic Method = "basic"
	// MethodAPIKey indicates API key authentication.
	MethodAPIKey Method = "apikey"
	// MethodMulti indicates any of several methods.
	MethodMulti Method = "multi"
)

// Identity is the authenticated caller.
type Identity struct {
	Method  Method
	Subject string
}

// Authenticator validates a request and returns the caller identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey string

const identityKey contextKey = "identity"

// FromContext retrieves the caller identity from ctx.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// parsePairs splits "a:b,c:d" configuration strings. Only the first colon of
// an entry separates the pair, so values may contain further colons.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("%s auth: invalid entry format, expected key:value", kind)
		}

		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: entry key and value must not be empty", kind)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", kind)
	}

	return pairs, nil
}

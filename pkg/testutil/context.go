package testutil

import (
	"context"
	"net/http"

	id "tessera/pkg/domain"
	"tessera/pkg/requestcontext"
)

// WithHolder adds an authenticated holder to the request context.
// This simulates what the auth middleware would do for a valid bearer token.
// Invalid holder IDs are silently ignored.
func WithHolder(req *http.Request, holder string) *http.Request {
	if parsed, err := id.ParseHolder(holder); err == nil {
		return req.WithContext(requestcontext.WithHolder(req.Context(), parsed))
	}
	return req
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

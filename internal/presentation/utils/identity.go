package utils

import (
	"context"
	"net/http"
	"strconv"
)

// HeaderUserID is set by the authenticating reverse proxy in front of this
// service. Requests without it are anonymous.
const HeaderUserID = "X-User-ID"

type contextKey struct{}

var userIDKey contextKey

// WithUserID stamps the authenticated user id onto the request context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the authenticated user id, or 0 when missing.
func GetUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

// ParseUserIDHeader reads the proxy-provided identity header.
func ParseUserIDHeader(r *http.Request) int64 {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

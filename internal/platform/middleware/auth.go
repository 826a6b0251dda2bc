package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and returns the device claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*DeviceClaims, error)
}

// DeviceClaims is what the engine needs from an authenticated request: the
// opaque raw device identifier. It is consumed only at the handler boundary,
// where it is immediately replaced by purpose hashes.
type DeviceClaims struct {
	DeviceID string
}

type contextKeyDeviceID struct{}

// ContextKeyDeviceID is exported for handlers and test helpers.
var ContextKeyDeviceID = contextKeyDeviceID{}

// GetDeviceID retrieves the authenticated raw device ID from the context.
func GetDeviceID(ctx context.Context) string {
	deviceID, ok := ctx.Value(ContextKeyDeviceID).(string)
	if !ok {
		return ""
	}
	return deviceID
}

// RequireAuth rejects requests without a valid bearer token and stores the
// device ID in the request context for downstream handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyDeviceID, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}

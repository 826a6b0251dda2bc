package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"chainrelay/internal/identity"
	jwttoken "chainrelay/internal/jwt_token"
	"chainrelay/internal/push"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/sentinel"
)

// tokenTTL is how long a device access token stays valid. Clients
// re-register on expiry; registration is an idempotent upsert.
const tokenTTL = 30 * 24 * time.Hour

const maxDeviceIDLength = 256

// Service registers devices: it derives the pseudonym bundle from the raw
// device identifier, stores the lookup record and push token, and issues
// the access token for subsequent calls. The raw identifier is never
// persisted.
type Service struct {
	store  Store
	tokens push.TokenStore
	jwt    *jwttoken.Service
}

func NewService(store Store, tokens push.TokenStore, jwt *jwttoken.Service) *Service {
	return &Service{store: store, tokens: tokens, jwt: jwt}
}

// Registration is the outcome of a successful device registration.
type Registration struct {
	AccessToken string
	ExpiresIn   time.Duration
	Platform    string
}

// Register upserts the device's pseudonym record and issues a fresh access
// token. An empty push token clears any stored token for the device.
func (s *Service) Register(ctx context.Context, deviceID, pushToken, userAgentHeader string) (Registration, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Registration{}, dErrors.New(dErrors.CodeInvalidInput, "device_id is required")
	}
	if len(deviceID) > maxDeviceIDLength {
		return Registration{}, dErrors.New(dErrors.CodeInvalidInput, "device_id is too long")
	}

	ids := identity.Derive(deviceID)
	platform := parsePlatform(userAgentHeader)

	if err := s.store.Save(ctx, User{
		ContactHash: ids.Contact,
		NotifyHash:  ids.Notify,
		ChainHash:   ids.Chain,
		OwnerHash:   ids.Owner,
		Platform:    platform,
	}); err != nil {
		return Registration{}, dErrors.Wrap(dErrors.CodeInternal, "register device", err)
	}

	if pushToken != "" {
		if err := s.tokens.Save(ctx, ids.Notify, pushToken); err != nil {
			return Registration{}, dErrors.Wrap(dErrors.CodeInternal, "save push token", err)
		}
	} else if err := s.tokens.Delete(ctx, ids.Notify); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return Registration{}, dErrors.Wrap(dErrors.CodeInternal, "clear push token", err)
	}

	accessToken, err := s.jwt.GenerateDeviceToken(deviceID, tokenTTL)
	if err != nil {
		return Registration{}, dErrors.Wrap(dErrors.CodeInternal, "issue device token", err)
	}
	return Registration{
		AccessToken: accessToken,
		ExpiresIn:   tokenTTL,
		Platform:    platform,
	}, nil
}

// Pseudonyms re-derives the purpose hashes for an authenticated device.
// Handlers call this once per request and drop the raw identifier.
func (s *Service) Pseudonyms(deviceID string) identity.Pseudonyms {
	return identity.Derive(deviceID)
}

func parsePlatform(header string) string {
	if header == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	os := strings.ToLower(ua.OSInfo().Name)
	switch {
	case strings.Contains(os, "ios") || strings.Contains(os, "iphone"):
		return "ios"
	case strings.Contains(os, "android"):
		return "android"
	default:
		if ua.Mobile() {
			return "mobile"
		}
		return "unknown"
	}
}

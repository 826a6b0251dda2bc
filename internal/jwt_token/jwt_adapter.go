package jwttoken

import (
	"chainrelay/internal/platform/middleware"
)

// MiddlewareAdapter adapts Service to the middleware.TokenValidator
// interface without leaking JWT details into the middleware package.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.DeviceClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.DeviceClaims{DeviceID: claims.DeviceID}, nil
}

package benchmark

import (
	"context"
	"fmt"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	jwtpkg "github.com/I3lackEye/linuxgamebench/pkg/jwt"
)

// Registration is the result of registering a system.
type Registration struct {
	System domain.System
	Token  string
}

// RegisterSystem stores the system keyed by fingerprint and issues an upload
// token for it. Registering the same hardware again returns the same system.
func (s *Service) RegisterSystem(ctx context.Context, info domain.SystemInfo) (Registration, error) {
	if err := s.stateful(); err != nil {
		return Registration{}, err
	}
	if s.tokenSecret == "" {
		return Registration{}, fmt.Errorf("%w: token secret", ErrNotConfigured)
	}
	info = info.Normalize()
	if err := info.Validate(); err != nil {
		return Registration{}, err
	}
	system := domain.System{
		ID:          s.newID(),
		Fingerprint: info.Fingerprint(),
		Info:        info,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.systems.UpsertSystem(ctx, &system); err != nil {
		return Registration{}, fmt.Errorf("store system: %w", err)
	}
	token, err := jwtpkg.GenerateToken(system.ID, system.Fingerprint, s.tokenSecret, s.tokenTTL)
	if err != nil {
		return Registration{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("system registered", "system_id", system.ID, "fingerprint", system.Fingerprint)
	return Registration{System: system, Token: token}, nil
}

// Authorize validates an upload token.
func (s *Service) Authorize(token string) (*jwtpkg.Claims, error) {
	if s.tokenSecret == "" {
		return nil, fmt.Errorf("%w: token secret not configured", ErrUnauthorized)
	}
	claims, err := jwtpkg.Parse(token, s.tokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

// GetSystem returns a registered system. Clients compare its fingerprint with
// the hardware they run on.
func (s *Service) GetSystem(ctx context.Context, id string) (*domain.System, error) {
	if err := s.stateful(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: system id required", domain.ErrInvalidInput)
	}
	return s.systems.GetSystemByID(ctx, id)
}

// Changed reports whether info no longer matches the fingerprint a token was
// issued for.
func Changed(previousFingerprint string, info domain.SystemInfo) bool {
	return info.Normalize().Changed(previousFingerprint)
}

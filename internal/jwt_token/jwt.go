// Package jwttoken issues and verifies the HS256 bearer tokens that guard the
// screening admin surface.
package jwttoken

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "basecamp/pkg/domain-errors"
)

// RoleAdmin is the only role the admin surface accepts.
const RoleAdmin = "admin"

// AdminClaims are the claims carried by an admin token. Subject names the
// operator and is recorded on cancel/rerun audit events.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates admin tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

func NewService(signingKey, issuer, audience string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue mints a token for subject with the given role.
func (s *Service) Issue(subject, role string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ValidateAdmin parses tokenString and requires the admin role.
func (s *Service) ValidateAdmin(tokenString string) (*AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Role != RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	if aud, _ := claims.GetAudience(); !slices.Contains(aud, s.audience) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token audience")
	}
	return claims, nil
}

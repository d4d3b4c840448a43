package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	dErrors "basecamp/pkg/domain-errors"
)

type JWTServiceSuite struct {
	suite.Suite
	svc *Service
	now time.Time
}

func TestJWTServiceSuite(t *testing.T) {
	suite.Run(t, new(JWTServiceSuite))
}

func (s *JWTServiceSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s.svc = NewService("test-signing-key", "http://localhost:8080", "basecamp-admin", 15*time.Minute)
	s.svc.now = func() time.Time { return s.now }
}

func (s *JWTServiceSuite) TestIssueAndValidate() {
	token, expiresAt, err := s.svc.Issue("ops@basecamp", RoleAdmin)
	s.Require().NoError(err)
	s.Equal(s.now.Add(15*time.Minute), expiresAt)

	claims, err := s.svc.ValidateAdmin(token)
	s.Require().NoError(err)
	s.Equal("ops@basecamp", claims.Subject)
	s.Equal(RoleAdmin, claims.Role)
}

func (s *JWTServiceSuite) TestRejections() {
	s.Run("expired", func() {
		token, _, err := s.svc.Issue("ops", RoleAdmin)
		s.Require().NoError(err)
		s.now = s.now.Add(time.Hour)

		_, err = s.svc.ValidateAdmin(token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("token expired", err.Error())
	})

	s.Run("non-admin role", func() {
		s.SetupTest()
		token, _, err := s.svc.Issue("support", "viewer")
		s.Require().NoError(err)

		_, err = s.svc.ValidateAdmin(token)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("wrong key", func() {
		s.SetupTest()
		other := NewService("other-key", "http://localhost:8080", "basecamp-admin", time.Minute)
		token, _, err := other.Issue("ops", RoleAdmin)
		s.Require().NoError(err)

		_, err = s.svc.ValidateAdmin(token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("alg none", func() {
		s.SetupTest()
		claims := AdminClaims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    "http://localhost:8080",
			Audience:  jwt.ClaimStrings{"basecamp-admin"},
			ExpiresAt: jwt.NewNumericDate(s.now.Add(time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		s.Require().NoError(err)

		_, err = s.svc.ValidateAdmin(token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty subject cannot be issued", func() {
		_, _, err := s.svc.Issue("", RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

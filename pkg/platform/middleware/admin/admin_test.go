package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	jwttoken "basecamp/internal/jwt_token"
	"basecamp/pkg/requestcontext"
)

// AdminMiddlewareSuite checks that requests without a valid admin token never
// reach the handler.
type AdminMiddlewareSuite struct {
	suite.Suite
	tokens *jwttoken.Service
	logger *slog.Logger
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.tokens = jwttoken.NewService("k", "http://localhost", "basecamp-admin", time.Minute)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AdminMiddlewareSuite) serve(authHeader string) (*httptest.ResponseRecorder, string, bool) {
	var actor string
	called := false
	h := RequireAdmin(s.tokens, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor = requestcontext.AdminActor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/screenings/x/cancel", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, actor, called
}

func (s *AdminMiddlewareSuite) TestValidTokenPasses() {
	token, _, err := s.tokens.Issue("ops@basecamp", jwttoken.RoleAdmin)
	s.Require().NoError(err)

	w, actor, called := s.serve("Bearer " + token)
	s.True(called)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ops@basecamp", actor)
}

func (s *AdminMiddlewareSuite) TestRejected() {
	s.Run("missing header", func() {
		w, _, called := s.serve("")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("not a bearer token", func() {
		w, _, called := s.serve("Basic abc")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("garbage token", func() {
		w, _, called := s.serve("Bearer nope")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("wrong role", func() {
		token, _, err := s.tokens.Issue("support", "viewer")
		s.Require().NoError(err)
		w, _, called := s.serve("Bearer " + token)
		s.False(called)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

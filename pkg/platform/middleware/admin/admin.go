package admin

import (
	"log/slog"
	"net/http"
	"strings"

	jwttoken "basecamp/internal/jwt_token"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/requestcontext"
)

// TokenValidator verifies admin bearer tokens.
type TokenValidator interface {
	ValidateAdmin(token string) (*jwttoken.AdminClaims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token and puts
// the token subject on the context for audit attribution.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				reject(w, http.StatusUnauthorized, "admin token required")
				return
			}

			claims, err := validator.ValidateAdmin(token)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"reason", err.Error(),
				)
				status := http.StatusUnauthorized
				if dErrors.HasCode(err, dErrors.CodeForbidden) {
					status = http.StatusForbidden
				}
				reject(w, status, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminActor(ctx, claims.Subject)))
		})
	}
}

func reject(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	_, _ = w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`)) //nolint:errcheck // headers already sent
}

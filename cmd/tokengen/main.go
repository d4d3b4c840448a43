// Package main mints admin bearer tokens for the screening admin routes.
// Signing settings come from the same environment variables the server
// reads, so in development the token works against a default server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "basecamp/internal/jwt_token"
	"basecamp/internal/platform/config"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Subject   string            `json:"subject"`
	Role      string            `json:"role"`
	ExpiresAt time.Time         `json:"expires_at"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "admin":
		os.Exit(runAdmin(os.Args[2:]))
	case "verify":
		os.Exit(runVerify(os.Args[2:]))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runAdmin(args []string) int {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	subject := fs.String("subject", "ops@basecamp.local", "Operator the token is issued to")
	role := fs.String("role", jwttoken.RoleAdmin, "Role claim")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default ADMIN_TOKEN_TTL)")
	asJSON := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	svc, cfg, err := tokenService(*ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	token, expiresAt, err := svc.Issue(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		return 1
	}

	if !*asJSON {
		fmt.Println(token)
		return 0
	}
	out := tokenOutput{
		Token:     token,
		Type:      "Bearer",
		Subject:   *subject,
		Role:      *role,
		ExpiresAt: expiresAt,
		Usage: map[string]string{
			"list":   fmt.Sprintf("curl -H 'Authorization: Bearer %s' http://localhost%s/admin/screenings", token, cfg.Addr),
			"cancel": fmt.Sprintf("curl -X POST -H 'Authorization: Bearer %s' http://localhost%s/admin/screenings/{id}/cancel", token, cfg.Addr),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	token := fs.String("token", "", "Token to verify")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError
	if *token == "" {
		fmt.Fprintln(os.Stderr, "-token is required")
		return 1
	}

	svc, _, err := tokenService(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	claims, err := svc.ValidateAdmin(*token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return 1
	}
	fmt.Printf("valid: subject=%s role=%s expires=%s\n", claims.Subject, claims.Role, claims.ExpiresAt.Time.Format(time.RFC3339))
	return 0
}

func tokenService(ttl time.Duration) (*jwttoken.Service, config.Server, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, config.Server{}, err
	}
	if ttl <= 0 {
		ttl = cfg.Admin.TokenTTL
	}
	return jwttoken.NewService(cfg.Admin.JWTSecret, cfg.Admin.Issuer, cfg.Admin.Audience, ttl), cfg, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `tokengen mints admin tokens for the basecamp admin API.

Usage:
  tokengen admin [-subject ops@basecamp.local] [-role admin] [-ttl 15m] [-json]
  tokengen verify -token <jwt>

The signing secret, issuer and audience are read from ADMIN_JWT_SECRET,
ADMIN_JWT_ISSUER and ADMIN_JWT_AUDIENCE, with the server's defaults.
`)
}

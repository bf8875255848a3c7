package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/auth"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/config"
)

// runToken implements "cloudlink token": it mints a bearer token for the
// status API using the configured JWT secret and prints it to out.
//
// Flags:
//
//	-role     viewer or operator (default viewer)
//	-subject  name recorded in the token (default "dashboard")
//	-ttl      lifetime, e.g. 72h; defaults to api.auth.token_ttl
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	role := fs.String("role", string(auth.RoleViewer), "token role (viewer or operator)")
	subject := fs.String("subject", "dashboard", "token subject")
	ttl := fs.Duration("ttl", 0, "token lifetime (default api.auth.token_ttl hours)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is not set")
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.API.Auth.TokenTTL) * time.Hour
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.API.Auth.JWTSecret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

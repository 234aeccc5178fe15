package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	"github.com/noah-isme/thesis-defense-api/pkg/config"
	"github.com/noah-isme/thesis-defense-api/pkg/logger"
)

// issue-token mints an access token signed with the configured JWT secret.
// Useful for service accounts and local testing against the API.
func main() {
	var (
		userID string
		role   string
		email  string
		expiry time.Duration
	)

	flag.StringVar(&userID, "user", "", "user id to embed in the token")
	flag.StringVar(&role, "role", string(models.RoleService), "role: SUPERADMIN, ADMIN, ADVISER, PANEL_MEMBER, STUDENT or SERVICE")
	flag.StringVar(&email, "email", "", "optional email claim")
	flag.DurationVar(&expiry, "expiry", 0, "token lifetime (defaults to JWT_EXPIRY)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if expiry <= 0 {
		expiry = cfg.JWT.Expiry
	}
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: expiry,
		Issuer:            cfg.JWT.Issuer,
	})

	actor := models.Actor{UserID: strings.TrimSpace(userID), Role: models.UserRole(strings.ToUpper(strings.TrimSpace(role)))}
	if !knownRole(actor.Role) {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", role)
		os.Exit(2)
	}
	token, expiresAt, err := authSvc.IssueToken(actor, email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}

func knownRole(role models.UserRole) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleAdviser, models.RolePanelMember, models.RoleStudent, models.RoleService:
		return true
	}
	return false
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/secrets"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/config"
)

func main() {
	var (
		action    = flag.String("action", "", "Action to perform: issue-token, verify-token")
		accountID = flag.String("account", "", "Account ID the token is scoped to")
		role      = flag.String("role", string(auth.RoleStaff), "Role: admin, manager or staff")
		userID    = flag.String("user", "", "User ID placed in the subject claim (random when empty)")
		ttl       = flag.Duration("ttl", time.Hour, "Token lifetime")
		token     = flag.String("token", "", "Token to verify")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Usage: admin -action=<action> [options]")
		fmt.Println("Actions:")
		fmt.Println("  issue-token  - Sign a bearer token for the billing API")
		fmt.Println("  verify-token - Validate a bearer token and print its claims")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("Failed to load .env:", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := secrets.NewSecretStore(ctx, secrets.ConfigFrom(cfg.Secrets), zap.NewNop())
	if err != nil {
		log.Fatal("Failed to open secret store:", err)
	}
	key, err := secrets.Resolve(ctx, store, cfg.Auth.JWTSecretName, "")
	if err != nil {
		log.Fatal("Failed to resolve JWT signing key:", err)
	}

	tokens, err := auth.NewTokenManager([]byte(key), cfg.Auth.Issuer, *ttl)
	if err != nil {
		log.Fatal("Invalid JWT signing key:", err)
	}

	switch *action {
	case "issue-token":
		issueToken(tokens, *accountID, *userID, *role)
	case "verify-token":
		verifyToken(tokens, *token)
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

func issueToken(tokens *auth.TokenManager, accountID, userID, roleName string) {
	if _, err := uuid.Parse(accountID); err != nil {
		log.Fatal("-account must be a UUID")
	}
	role, err := auth.ParseRole(roleName)
	if err != nil {
		log.Fatal(err)
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	signed, err := tokens.GenerateToken(userID, accountID, role)
	if err != nil {
		log.Fatal("Failed to sign token:", err)
	}
	fmt.Println(signed)
}

func verifyToken(tokens *auth.TokenManager, token string) {
	if token == "" {
		log.Fatal("-token is required")
	}
	info, err := tokens.ValidateToken(token)
	if err != nil {
		log.Fatal("Token rejected:", err)
	}
	fmt.Printf("Account: %s\nUser:    %s\nRole:    %s\nJTI:     %s\n", info.AccountID, info.UserID, info.Role, info.TokenJTI)
}

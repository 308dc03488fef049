package auth

import (
	"context"
	"fmt"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
)

// Context keys for authentication data
type contextKey string

const (
	AccountIDKey contextKey = "account_id"
	UserIDKey    contextKey = "user_id"
	RoleKey      contextKey = "role"
	TokenJTIKey  contextKey = "token_jti"
)

// Role is the caller's role within its account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ParseRole converts a claim value into the closed set of roles
func ParseRole(s string) (Role, error) {
	role := Role(s)
	switch role {
	case RoleAdmin, RoleManager, RoleStaff:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// AuthInfo contains authentication information from the context
type AuthInfo struct {
	AccountID string
	UserID    string
	Role      Role
	TokenJTI  string
}

// GetAuthInfo extracts authentication information from the context.
// It returns nil when the request was not authenticated.
func GetAuthInfo(ctx context.Context) *AuthInfo {
	accountID, ok := ctx.Value(AccountIDKey).(string)
	if !ok || accountID == "" {
		return nil
	}

	info := &AuthInfo{AccountID: accountID}
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		info.UserID = userID
	}
	if role, ok := ctx.Value(RoleKey).(Role); ok {
		info.Role = role
	}
	if jti, ok := ctx.Value(TokenJTIKey).(string); ok {
		info.TokenJTI = jti
	}
	return info
}

// WithAuth adds authentication information to the context
func WithAuth(ctx context.Context, info *AuthInfo) context.Context {
	ctx = context.WithValue(ctx, AccountIDKey, info.AccountID)
	ctx = context.WithValue(ctx, RoleKey, info.Role)

	if info.UserID != "" {
		ctx = context.WithValue(ctx, UserIDKey, info.UserID)
	}
	if info.TokenJTI != "" {
		ctx = context.WithValue(ctx, TokenJTIKey, info.TokenJTI)
	}
	return ctx
}

// AccountID returns the authenticated account, or domain.ErrAuthMissing
func AccountID(ctx context.Context) (string, error) {
	info := GetAuthInfo(ctx)
	if info == nil {
		return "", domain.ErrAuthMissing
	}
	return info.AccountID, nil
}

// RequireRole checks that the caller holds one of the allowed roles
func RequireRole(ctx context.Context, allowed ...Role) error {
	info := GetAuthInfo(ctx)
	if info == nil {
		return domain.ErrAuthMissing
	}
	for _, role := range allowed {
		if info.Role == role {
			return nil
		}
	}
	return domain.ErrAuthInsufficientPerm.WithDetail("role", string(info.Role))
}

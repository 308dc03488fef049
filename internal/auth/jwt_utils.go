package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the bearer token claims the billing API trusts.
// Tokens are issued elsewhere; Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

// TokenManager verifies HS256 bearer tokens with a shared signing key
type TokenManager struct {
	signingKey []byte
	issuer     string
	expiry     time.Duration
	now        func() time.Time
}

// NewTokenManager creates a token manager. An empty issuer accepts any issuer.
func NewTokenManager(signingKey []byte, issuer string, expiry time.Duration) (*TokenManager, error) {
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(signingKey))
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &TokenManager{
		signingKey: signingKey,
		issuer:     issuer,
		expiry:     expiry,
		now:        time.Now,
	}, nil
}

// GenerateToken issues a token for a user of an account.
// Used by the admin tooling and tests; production tokens come from the identity service.
func (tm *TokenManager) GenerateToken(userID, accountID string, role Role) (string, error) {
	now := tm.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		AccountID: accountID,
		Role:      string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.signingKey)
}

// ValidateToken verifies the signature, the time claims and the billing claims
func (tm *TokenManager) ValidateToken(tokenString string) (*AuthInfo, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tm.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.AccountID == "" {
		return nil, errors.New("token has no account_id claim")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}

	return &AuthInfo{
		AccountID: claims.AccountID,
		UserID:    claims.Subject,
		Role:      role,
		TokenJTI:  claims.ID,
	}, nil
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/encoding"
)

// TokenValidator verifies a bearer token and returns the caller it identifies
type TokenValidator interface {
	ValidateToken(token string) (*auth.AuthInfo, error)
}

// Authenticator handles bearer token authentication for the billing API
type Authenticator struct {
	tokens TokenValidator
	logger *zap.Logger
}

// NewAuthenticator creates a new HTTP authenticator
func NewAuthenticator(tokens TokenValidator, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		logger: logger,
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's account and role in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrAuthMissing)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrAuthInvalid)
			return
		}

		info, err := a.tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			a.logger.Warn("token verification failed",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			writeAuthError(w, http.StatusUnauthorized, domain.ErrAuthInvalid)
			return
		}

		a.logger.Debug("token authenticated",
			zap.String("account_id", info.AccountID),
			zap.String("user_id", info.UserID),
			zap.String("role", string(info.Role)))

		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), info)))
	})
}

// RequireRole allows the request through only for the listed roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(r.Context(), roles...); err != nil {
				status := http.StatusForbidden
				if domain.GetErrorCode(err) == domain.ErrorCodeAuthMissing {
					status = http.StatusUnauthorized
				}
				writeAuthError(w, status, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountKey keys rate limiting by authenticated account, falling back to the client address
func AccountKey(r *http.Request) string {
	if info := auth.GetAuthInfo(r.Context()); info != nil {
		return "account:" + info.AccountID
	}
	return "addr:" + r.RemoteAddr
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	code, message := domain.ErrorCodeAuthInvalid, "invalid authentication"
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		code, message = derr.Code, derr.Message
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="billing"`)
	}
	_ = encoding.WriteJSON(w, status, map[string]string{
		"code":    string(code),
		"message": message,
	})
}

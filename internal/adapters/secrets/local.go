package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrSecretNotFound is returned when a store has no value for the name
var ErrSecretNotFound = errors.New("secret not found")

// EnvSecretStore resolves secrets from environment variables.
// A secret named "stripe/api-key" is read from STRIPE_API_KEY.
type EnvSecretStore struct {
	lookup func(string) (string, bool)
}

// NewEnvSecretStore creates a store over the process environment
func NewEnvSecretStore() *EnvSecretStore {
	return &EnvSecretStore{lookup: os.LookupEnv}
}

// EnvName maps a secret name to its environment variable
func EnvName(name string) string {
	r := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToUpper(r.Replace(name))
}

// GetSecret returns the environment value for name
func (s *EnvSecretStore) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s.lookup(EnvName(name))
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// LocalSecretStore reads secrets from files under a base directory.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type LocalSecretStore struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretStore creates a file-backed secret store
func NewLocalSecretStore(basePath string, logger *zap.Logger) *LocalSecretStore {
	return &LocalSecretStore{basePath: basePath, logger: logger}
}

// GetSecret reads basePath/name. Files may hold the plain value or {"value": "..."}.
func (s *LocalSecretStore) GetSecret(_ context.Context, name string) (string, error) {
	clean := filepath.Clean("/" + name)
	filePath := filepath.Join(s.basePath, clean)

	s.logger.Debug("Reading secret from filesystem", zap.String("name", name))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Value != "" {
		return wrapped.Value, nil
	}
	return strings.TrimSpace(string(data)), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound)
}

package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// VaultConfig contains configuration for the HashiCorp Vault store
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	// Cache TTL; zero disables caching
	CacheTTL time.Duration
}

// DefaultVaultConfig returns default configuration for the Vault store
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		CacheTTL:   5 * time.Minute,
	}
}

// logicalReader is the Vault call the store makes
type logicalReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

// VaultStore implements ports.SecretStore over a Vault KV engine.
// Secrets are read from the "value" key of the entry at the secret name.
type VaultStore struct {
	logical logicalReader
	config  *VaultConfig
	cache   *secretCache
	logger  *zap.Logger
}

// NewVaultStore creates and authenticates a Vault client
func NewVaultStore(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (*VaultStore, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault store initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return newVaultStore(client.Logical(), cfg, logger), nil
}

func newVaultStore(logical logicalReader, cfg *VaultConfig, logger *zap.Logger) *VaultStore {
	return &VaultStore{
		logical: logical,
		config:  cfg,
		cache:   newSecretCache(cfg.CacheTTL),
		logger:  logger,
	}
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads the "value" field of the secret at name
func (s *VaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := s.cache.get(name); ok {
		return v, nil
	}

	fullPath := fmt.Sprintf("%s/%s", s.config.MountPath, name)
	if s.config.KVVersion == "v2" {
		fullPath = fmt.Sprintf("%s/data/%s", s.config.MountPath, name)
	}

	secret, err := s.logical.ReadWithContext(ctx, fullPath)
	if err != nil {
		s.logger.Error("Failed to retrieve secret from Vault", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	data := secret.Data
	if s.config.KVVersion == "v2" {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("invalid secret format from Vault")
		}
		data = inner
	}

	value, _ := data["value"].(string)
	if value == "" {
		return "", fmt.Errorf("secret %s has no value field", name)
	}

	s.cache.set(name, value)
	return value, nil
}

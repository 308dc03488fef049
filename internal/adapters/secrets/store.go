// Package secrets resolves signing keys and API keys for the billing service.
package secrets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/config"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

// Backend names accepted by NewSecretStore
const (
	BackendEnv   = "env"
	BackendFile  = "file"
	BackendAWS   = "aws"
	BackendVault = "vault"
)

// Config selects and configures the secret backend
type Config struct {
	Backend  string
	FilePath string
	AWS      AWSSecretsManagerConfig
	Vault    VaultConfig
}

// ConfigFrom maps the service settings onto a store configuration.
// Vault uses AppRole when a role id is set and a token otherwise.
func ConfigFrom(c config.SecretsConfig) Config {
	authMethod := "token"
	if c.VaultRoleID != "" {
		authMethod = "approle"
	}
	return Config{
		Backend:  c.Backend,
		FilePath: c.FilePath,
		AWS: AWSSecretsManagerConfig{
			Region:   c.AWSRegion,
			Profile:  c.AWSProfile,
			Endpoint: c.AWSEndpoint,
			Prefix:   c.Prefix,
			CacheTTL: c.CacheTTL,
		},
		Vault: VaultConfig{
			Address:    c.VaultAddress,
			AuthMethod: authMethod,
			Token:      c.VaultToken,
			RoleID:     c.VaultRoleID,
			SecretID:   c.VaultSecretID,
			MountPath:  c.VaultMountPath,
			CacheTTL:   c.CacheTTL,
		},
	}
}

// NewSecretStore builds the configured backend
func NewSecretStore(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretStore, error) {
	switch cfg.Backend {
	case "", BackendEnv:
		return NewEnvSecretStore(), nil
	case BackendFile:
		return NewLocalSecretStore(cfg.FilePath, logger), nil
	case BackendAWS:
		awsCfg := cfg.AWS
		if awsCfg.CacheTTL == 0 {
			awsCfg.CacheTTL = 5 * time.Minute
		}
		return NewAWSSecretsManagerStore(ctx, &awsCfg, logger)
	case BackendVault:
		vaultCfg := cfg.Vault
		defaults := DefaultVaultConfig(vaultCfg.Address)
		if vaultCfg.AuthMethod == "" {
			vaultCfg.AuthMethod = defaults.AuthMethod
		}
		if vaultCfg.MountPath == "" {
			vaultCfg.MountPath = defaults.MountPath
		}
		if vaultCfg.KVVersion == "" {
			vaultCfg.KVVersion = defaults.KVVersion
		}
		if vaultCfg.CacheTTL == 0 {
			vaultCfg.CacheTTL = defaults.CacheTTL
		}
		return NewVaultStore(ctx, &vaultCfg, logger)
	}
	return nil, fmt.Errorf("unknown secret backend %q", cfg.Backend)
}

// Resolve returns the secret, or fallback when the store has no value for name.
// Other store errors are returned as is.
func Resolve(ctx context.Context, store ports.SecretStore, name, fallback string) (string, error) {
	v, err := store.GetSecret(ctx, name)
	if err == nil {
		return v, nil
	}
	if fallback != "" && isNotFound(err) {
		return fallback, nil
	}
	return "", err
}

var (
	_ ports.SecretStore = (*EnvSecretStore)(nil)
	_ ports.SecretStore = (*LocalSecretStore)(nil)
	_ ports.SecretStore = (*AWSSecretsManagerStore)(nil)
	_ ports.SecretStore = (*VaultStore)(nil)
)

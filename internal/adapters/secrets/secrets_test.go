package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/config"
)

func TestEnvSecretStore(t *testing.T) {
	store := &EnvSecretStore{lookup: func(key string) (string, bool) {
		if key == "STRIPE_WEBHOOK_SECRET" {
			return "whsec_123", true
		}
		return "", false
	}}

	v, err := store.GetSecret(context.Background(), "stripe/webhook-secret")
	require.NoError(t, err)
	assert.Equal(t, "whsec_123", v)

	_, err = store.GetSecret(context.Background(), "jwt/signing-key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "STRIPE_API_KEY", EnvName("stripe/api-key"))
	assert.Equal(t, "JWT_SIGNING_KEY", EnvName("jwt.signing-key"))
}

func TestLocalSecretStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stripe"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stripe", "api-key"), []byte("sk_test_1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt"), []byte(`{"value":"signing-key"}`), 0o600))

	store := NewLocalSecretStore(dir, zap.NewNop())
	ctx := context.Background()

	v, err := store.GetSecret(ctx, "stripe/api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_1", v)

	v, err = store.GetSecret(ctx, "jwt")
	require.NoError(t, err)
	assert.Equal(t, "signing-key", v)

	_, err = store.GetSecret(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

type mockSecretsManager struct {
	mock.Mock
}

func (m *mockSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(params.SecretId))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

func TestAWSSecretsManagerStore(t *testing.T) {
	client := new(mockSecretsManager)
	store := newAWSSecretsManagerStore(client, &AWSSecretsManagerConfig{Prefix: "billing/", CacheTTL: time.Minute}, zap.NewNop())
	ctx := context.Background()

	client.On("GetSecretValue", mock.Anything, "billing/stripe/api-key").
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String("sk_live_1")}, nil).Once()
	client.On("GetSecretValue", mock.Anything, "billing/missing").
		Return(nil, &smtypes.ResourceNotFoundException{Message: aws.String("nope")})
	client.On("GetSecretValue", mock.Anything, "billing/broken").
		Return(nil, errors.New("throttled"))

	for i := 0; i < 2; i++ {
		v, err := store.GetSecret(ctx, "stripe/api-key")
		require.NoError(t, err)
		assert.Equal(t, "sk_live_1", v)
	}
	client.AssertNumberOfCalls(t, "GetSecretValue", 1)

	_, err := store.GetSecret(ctx, "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = store.GetSecret(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}

type fakeLogical struct {
	secrets map[string]*vault.Secret
	reads   []string
}

func (f *fakeLogical) ReadWithContext(_ context.Context, path string) (*vault.Secret, error) {
	f.reads = append(f.reads, path)
	return f.secrets[path], nil
}

func TestVaultStore(t *testing.T) {
	logical := &fakeLogical{secrets: map[string]*vault.Secret{
		"secret/data/billing/jwt": {Data: map[string]interface{}{
			"data": map[string]interface{}{"value": "jwt-key"},
		}},
		"secret/data/billing/empty": {Data: map[string]interface{}{
			"data": map[string]interface{}{"other": "x"},
		}},
	}}
	store := newVaultStore(logical, DefaultVaultConfig("http://vault:8200"), zap.NewNop())
	ctx := context.Background()

	v, err := store.GetSecret(ctx, "billing/jwt")
	require.NoError(t, err)
	assert.Equal(t, "jwt-key", v)

	_, _ = store.GetSecret(ctx, "billing/jwt")
	assert.Len(t, logical.reads, 1, "second read served from cache")

	_, err = store.GetSecret(ctx, "billing/missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = store.GetSecret(ctx, "billing/empty")
	assert.Error(t, err)
}

func TestVaultStore_KVv1(t *testing.T) {
	logical := &fakeLogical{secrets: map[string]*vault.Secret{
		"kv/billing/jwt": {Data: map[string]interface{}{"value": "v1-key"}},
	}}
	cfg := &VaultConfig{MountPath: "kv", KVVersion: "v1"}
	store := newVaultStore(logical, cfg, zap.NewNop())

	v, err := store.GetSecret(context.Background(), "billing/jwt")
	require.NoError(t, err)
	assert.Equal(t, "v1-key", v)
}

func TestSecretCache_Expiry(t *testing.T) {
	now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
	c := newSecretCache(time.Minute)
	c.now = func() time.Time { return now }

	c.set("k", "v")
	got, ok := c.get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)

	disabled := newSecretCache(0)
	disabled.set("k", "v")
	_, ok = disabled.get("k")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	store := &EnvSecretStore{lookup: func(string) (string, bool) { return "", false }}
	ctx := context.Background()

	v, err := Resolve(ctx, store, "jwt/signing-key", "dev-key")
	require.NoError(t, err)
	assert.Equal(t, "dev-key", v)

	_, err = Resolve(ctx, store, "jwt/signing-key", "")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestNewSecretStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewSecretStore(ctx, Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &EnvSecretStore{}, store)

	store, err = NewSecretStore(ctx, Config{Backend: BackendFile, FilePath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalSecretStore{}, store)

	_, err = NewSecretStore(ctx, Config{Backend: "gcp"}, zap.NewNop())
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	token := ConfigFrom(config.SecretsConfig{
		Backend:      BackendVault,
		VaultAddress: "https://vault.internal:8200",
		VaultToken:   "s.token",
		CacheTTL:     time.Minute,
	})
	assert.Equal(t, "token", token.Vault.AuthMethod)
	assert.Equal(t, time.Minute, token.Vault.CacheTTL)
	assert.Equal(t, time.Minute, token.AWS.CacheTTL)

	approle := ConfigFrom(config.SecretsConfig{
		Backend:       BackendVault,
		VaultRoleID:   "role",
		VaultSecretID: "secret",
	})
	assert.Equal(t, "approle", approle.Vault.AuthMethod)
	assert.Equal(t, "role", approle.Vault.RoleID)
}

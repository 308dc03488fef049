package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"go.uber.org/zap"
)

// AWSSecretsManagerConfig contains configuration for the AWS Secrets Manager store
type AWSSecretsManagerConfig struct {
	// AWS Region (e.g., "us-east-1")
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	// Prefix is prepended to every secret name, e.g. "billing/"
	Prefix string

	// Cache TTL for secrets; zero disables caching
	CacheTTL time.Duration
}

// secretValueGetter is the Secrets Manager call the store makes
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerStore implements ports.SecretStore with AWS Secrets Manager
type AWSSecretsManagerStore struct {
	client secretValueGetter
	prefix string
	cache  *secretCache
	logger *zap.Logger
}

// NewAWSSecretsManagerStore loads AWS credentials and creates the store
func NewAWSSecretsManagerStore(ctx context.Context, cfg *AWSSecretsManagerConfig, logger *zap.Logger) (*AWSSecretsManagerStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager store initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return newAWSSecretsManagerStore(secretsmanager.NewFromConfig(awsConfig, clientOptions...), cfg, logger), nil
}

func newAWSSecretsManagerStore(client secretValueGetter, cfg *AWSSecretsManagerConfig, logger *zap.Logger) *AWSSecretsManagerStore {
	return &AWSSecretsManagerStore{
		client: client,
		prefix: cfg.Prefix,
		cache:  newSecretCache(cfg.CacheTTL),
		logger: logger,
	}
}

// GetSecret returns the SecretString of the named secret
func (s *AWSSecretsManagerStore) GetSecret(ctx context.Context, name string) (string, error) {
	id := s.prefix + name
	if v, ok := s.cache.get(id); ok {
		return v, nil
	}

	startTime := time.Now()
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, id)
		}
		s.logger.Error("Failed to retrieve secret", zap.String("secret_id", id), zap.Error(err))
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	s.logger.Debug("Secret retrieved from AWS Secrets Manager",
		zap.String("secret_id", id),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	s.cache.set(id, *out.SecretString)
	return *out.SecretString, nil
}

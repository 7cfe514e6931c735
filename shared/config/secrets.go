package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

// ErrMissingJWTSecret is returned when neither JWT_SECRET nor JWT_SECRET_ARN yields a secret
var ErrMissingJWTSecret = errors.New("jwt secret is not configured")

// NewSecretsManagerClient builds a Secrets Manager client for region
func NewSecretsManagerClient(region string) (secretsmanageriface.SecretsManagerAPI, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return secretsmanager.New(sess), nil
}

// ResolveJWTSecret returns the signing secret. A literal JWT_SECRET wins; otherwise the
// secret named by JWT_SECRET_ARN is fetched. The secret value may be a raw string or a
// JSON object with a "jwtSecret" key.
func ResolveJWTSecret(ctx context.Context, cfg *AppConfig, client secretsmanageriface.SecretsManagerAPI) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	if cfg.JWTSecretARN == "" || client == nil {
		return "", ErrMissingJWTSecret
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.JWTSecretARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch jwt secret: %w", err)
	}

	raw := aws.StringValue(out.SecretString)
	if raw == "" {
		return "", ErrMissingJWTSecret
	}

	var wrapped struct {
		JWTSecret string `json:"jwtSecret"`
	}
	if json.Unmarshal([]byte(raw), &wrapped) == nil && wrapped.JWTSecret != "" {
		return wrapped.JWTSecret, nil
	}
	return raw, nil
}

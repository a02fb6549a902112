package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// EnvSecretManager resolves secrets from environment variables.
// Development only; production deployments use AWS Secrets Manager or Vault.
type EnvSecretManager struct {
	logger *zap.Logger
}

// NewEnvSecretManager creates an environment-backed secret manager.
func NewEnvSecretManager(logger *zap.Logger) *EnvSecretManager {
	return &EnvSecretManager{logger: logger}
}

// GetSecret maps a secret path to an environment variable: slashes and
// dashes become underscores and the name is upper-cased, so
// "pos/merchant-password" reads POS_MERCHANT_PASSWORD.
func (m *EnvSecretManager) GetSecret(ctx context.Context, path string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(path))
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("secret %s not set (env %s)", path, key)
	}
	return value, nil
}

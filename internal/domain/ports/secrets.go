package ports

import "context"

// SecretManager retrieves merchant credential material from a secret store.
// Backends: local environment, AWS Secrets Manager, HashiCorp Vault.
type SecretManager interface {
	// GetSecret returns the secret value stored at path. Path format depends
	// on the backend (AWS secret name, Vault KV path, env variable name).
	GetSecret(ctx context.Context, path string) (string, error)
}

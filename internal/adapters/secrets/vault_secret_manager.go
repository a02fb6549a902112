package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// VaultConfig configures the HashiCorp Vault backend. Only token auth is
// supported; the platform injects a periodic token via the environment.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string

	// KV v2 mount path, default "secret".
	MountPath string

	// Cache TTL; zero disables caching.
	CacheTTL time.Duration

	TLSSkipVerify bool
}

// DefaultVaultConfig returns default configuration for the Vault backend.
func DefaultVaultConfig(address, token string) *VaultConfig {
	return &VaultConfig{
		Address:   address,
		Token:     token,
		MountPath: "secret",
		CacheTTL:  5 * time.Minute,
	}
}

// VaultSecretManager implements ports.SecretManager on Vault's KV v2 engine.
type VaultSecretManager struct {
	client    *vault.Client
	mountPath string
	logger    *zap.Logger
	cache     *secretCache
}

// NewVaultSecretManager creates a new Vault backend.
func NewVaultSecretManager(cfg *VaultConfig, logger *zap.Logger) (*VaultSecretManager, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("configure tls: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token is required")
	}
	client.SetToken(cfg.Token)

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}

	logger.Info("vault secret manager initialized",
		zap.String("address", cfg.Address),
		zap.String("mount_path", mount),
	)

	return &VaultSecretManager{
		client:    client,
		mountPath: mount,
		logger:    logger,
		cache:     newSecretCache(cfg.CacheTTL),
	}, nil
}

// GetSecret reads a KV v2 secret. The path addresses the secret and key as
// "path/to/secret#key"; without a fragment the key "value" is used.
func (m *VaultSecretManager) GetSecret(ctx context.Context, path string) (string, error) {
	if v, ok := m.cache.get(path); ok {
		return v, nil
	}

	secretPath, key := path, "value"
	if i := strings.LastIndex(path, "#"); i >= 0 {
		secretPath, key = path[:i], path[i+1:]
	}

	kv, err := m.client.KVv2(m.mountPath).Get(ctx, secretPath)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", secretPath, err)
	}

	raw, ok := kv.Data[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", secretPath, key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret %s key %q is not a string", secretPath, key)
	}

	m.cache.put(path, value)
	return value, nil
}

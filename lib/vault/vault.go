package vault

import (
	"fmt"

	v "github.com/hashicorp/vault/api"
)

type Vault = v.Client

const (
	dbPwdPath    = "services/data/db/galaxy_pwd"
	cachePwdPath = "services/data/cache/galaxy_pwd"
	jwtKeyName   = "JWT_KEY"
)

type VaultManager struct {
	Api      *Vault
	Services *Vault
}

func NewVaultManager(address string) (VaultManager, error) {
	config := v.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	api, err := v.NewClient(config)
	if err != nil {
		return VaultManager{}, fmt.Errorf("failed to create Vault client: %w", err)
	}

	services, err := v.NewClient(config)
	if err != nil {
		return VaultManager{}, fmt.Errorf("failed to create Vault client: %w", err)
	}

	return VaultManager{
		Api:      api,
		Services: services,
	}, nil
}

func (manager *VaultManager) Health() bool {
	api_health, err := manager.Api.Sys().Health()
	if err != nil {
		return false
	}
	services_health, err := manager.Services.Sys().Health()
	if err != nil {
		return false
	}
	return api_health.Initialized && !api_health.Sealed &&
		services_health.Initialized && !services_health.Sealed
}

func (manager *VaultManager) GetCachePwd() (string, error) {
	return readValue(manager.Services, cachePwdPath)
}

func (manager *VaultManager) GetDbPwd() (string, error) {
	return readValue(manager.Services, dbPwdPath)
}

func (manager *VaultManager) GetJwtKey() (string, error) {
	return manager.GetApiKey(jwtKeyName)
}

func (manager *VaultManager) GetApiKey(name string) (string, error) {
	return readValue(manager.Api, fmt.Sprintf("api/data/%s", name))
}

// readValue reads the "value" field of a kv v2 secret.
func readValue(client *Vault, path string) (string, error) {
	secret, err := client.Logical().Read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found at path: %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret data format at path: %s", path)
	}
	key, ok := data["value"].(string)
	if !ok {
		return "", fmt.Errorf("key not found or invalid in secret data at path: %s", path)
	}
	return key, nil
}

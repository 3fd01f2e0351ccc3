package infra

import (
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/logger"
)

type ConsulKV interface {
	Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Delete(key string, options *api.WriteOptions) (*api.WriteMeta, error)
	List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

// GetConsulConfig builds the client configuration. Credentials are only sent in production.
func GetConsulConfig(environment string, consulCfg *config.ConsulConfig) *api.Config {
	clientConfig := api.DefaultConfig()
	if consulCfg == nil {
		return clientConfig
	}

	if environment == config.Production {
		clientConfig.Token = consulCfg.Token
		username := consulCfg.Username
		password := consulCfg.Password
		if username != "" || password != "" {
			clientConfig.HttpAuth = &api.HttpBasicAuth{
				Username: username,
				Password: password,
			}
		}
	}

	if consulCfg.Address != "" {
		clientConfig.Address = consulCfg.Address
	}
	return clientConfig
}

// GetConsulClient connects to Consul and checks that a leader is reachable.
func GetConsulClient(environment string, consulCfg *config.ConsulConfig) (*api.Client, error) {
	cfg := GetConsulConfig(environment, consulCfg)
	cfg.WaitTime = 10 * time.Second

	logger.Info("Consul config",
		"environment", environment,
		"address", cfg.Address,
		"wait_time", cfg.WaitTime,
		"token_length", len(cfg.Token),
		"http_auth", cfg.HttpAuth != nil,
	)

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	return client, nil
}

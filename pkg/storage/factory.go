package storage

import (
	"errors"
	"fmt"

	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/infra"
	"github.com/fystack/devidentity/pkg/logger"
)

// ErrDisabled is returned by NewStore when the configured registry type is "none".
var ErrDisabled = errors.New("registry storage disabled")

// NewStore opens the store selected by cfg.
func NewStore(environment string, cfg *config.RegistryConfig) (Store, error) {
	switch cfg.Type {
	case config.RegistryTypeNone, "":
		return nil, ErrDisabled

	case config.RegistryTypeBadger:
		store, err := NewBadgerStore(BadgerConfig{
			Password: cfg.BadgerPassword,
			DBPath:   cfg.BadgerPath,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to badger registry", "path", cfg.BadgerPath)
		return store, nil

	case config.RegistryTypeConsul:
		client, err := infra.GetConsulClient(environment, cfg.Consul)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to consul registry", "prefix", cfg.Consul.Prefix)
		return NewConsulStore(client.KV(), cfg.Consul.Prefix), nil

	default:
		return nil, fmt.Errorf("storage type %q is not supported", cfg.Type)
	}
}

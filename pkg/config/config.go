package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fystack/devidentity/pkg/logger"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// Environment constants
	Production  = "production"
	Development = "development"

	RegistryTypeNone   = "none"
	RegistryTypeBadger = "badger"
	RegistryTypeConsul = "consul"

	defaultKeystoreWorkFactor = 12
	defaultRegistryType       = RegistryTypeNone
	defaultBadgerPath         = "registry"
	defaultConsulPrefix       = "devidentity/parties"

	// age refuses scrypt work factors outside this range
	minKeystoreWorkFactor = 1
	maxKeystoreWorkFactor = 22

	EnvConfigFile = "DEVID_CONFIG_FILE"
)

type Config struct {
	Environment string `mapstructure:"environment"`

	// scrypt log2 work factor used for keystore encryption
	KeystoreWorkFactor int `mapstructure:"keystore_work_factor"`

	NotaryThreshold int `mapstructure:"notary_threshold"`

	Registry *RegistryConfig `mapstructure:"registry"`
}

type RegistryConfig struct {
	Type           string        `mapstructure:"type"`
	BadgerPath     string        `mapstructure:"badger_path"`
	BadgerPassword string        `mapstructure:"badger_password"`
	Consul         *ConsulConfig `mapstructure:"consul"`
}

type ConsulConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
	Prefix   string `mapstructure:"prefix"`
}

var (
	app *Config
	mu  sync.RWMutex
)

func initConfig() error {
	// env
	viper.SetEnvPrefix("DEVID")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("environment", Development)
	viper.SetDefault("keystore_work_factor", defaultKeystoreWorkFactor)
	viper.SetDefault("notary_threshold", DefaultNotaryThreshold)
	viper.SetDefault("registry.type", defaultRegistryType)
	viper.SetDefault("registry.badger_path", defaultBadgerPath)
	viper.SetDefault("registry.consul.prefix", defaultConsulPrefix)

	// set env config file
	configFile := os.Getenv(EnvConfigFile)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("devidentity")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.devidentity/")
	}

	if err := viper.ReadInConfig(); err != nil {
		// the config file is optional unless it was asked for explicitly
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("viper read config: %w", err)
	}

	return nil
}

func SetEnvConfigPath(configPath string) {
	if configPath != "" {
		os.Setenv(EnvConfigFile, configPath)
	}
}

func LoadConfig() (*Config, error) {
	var cfg Config
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateEnvironment(cfg.Environment); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	setConfig(&cfg)
	return &cfg, nil
}

func Load() (*Config, error) {
	if err := initConfig(); err != nil {
		return nil, err
	}
	return LoadConfig()
}

func validateEnvironment(environment string) error {
	validEnvironments := []string{Production, Development}

	if !slices.Contains(validEnvironments, environment) {
		return fmt.Errorf("invalid environment '%s'. Must be one of: %s", environment, strings.Join(validEnvironments, ", "))
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.KeystoreWorkFactor < minKeystoreWorkFactor || cfg.KeystoreWorkFactor > maxKeystoreWorkFactor {
		return fmt.Errorf("keystore_work_factor must be between %d and %d, got %d", minKeystoreWorkFactor, maxKeystoreWorkFactor, cfg.KeystoreWorkFactor)
	}
	if cfg.NotaryThreshold < 1 {
		return fmt.Errorf("notary_threshold must be at least 1, got %d", cfg.NotaryThreshold)
	}

	validRegistries := []string{RegistryTypeNone, RegistryTypeBadger, RegistryTypeConsul}
	if !slices.Contains(validRegistries, cfg.Registry.Type) {
		return fmt.Errorf("invalid registry type '%s'. Must be one of: %s", cfg.Registry.Type, strings.Join(validRegistries, ", "))
	}
	if cfg.Registry.Type == RegistryTypeBadger && cfg.Registry.BadgerPassword == "" {
		return fmt.Errorf("registry.badger_password is required for the badger registry")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = Development
	}
	if cfg.KeystoreWorkFactor == 0 {
		cfg.KeystoreWorkFactor = defaultKeystoreWorkFactor
	}
	if cfg.NotaryThreshold == 0 {
		cfg.NotaryThreshold = DefaultNotaryThreshold
	}
	if cfg.Registry == nil {
		cfg.Registry = &RegistryConfig{}
	}
	if cfg.Registry.Type == "" {
		cfg.Registry.Type = defaultRegistryType
	}
	if cfg.Registry.BadgerPath == "" {
		cfg.Registry.BadgerPath = defaultBadgerPath
	}
	if cfg.Registry.Consul == nil {
		cfg.Registry.Consul = &ConsulConfig{}
	}
	if cfg.Registry.Consul.Prefix == "" {
		cfg.Registry.Consul.Prefix = defaultConsulPrefix
	}
}

func setConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	app = cfg
}

// GetConfig returns the in-memory application configuration.
// It exits the process if the configuration has not been loaded yet.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if app == nil {
		logger.Fatal("configuration not loaded", nil)
	}
	return app
}

// Update applies the provided function while holding the configuration write lock.
// It panics if the configuration has not been loaded yet.
func Update(fn func(cfg *Config)) {
	mu.Lock()
	defer mu.Unlock()
	if app == nil {
		panic("configuration not loaded")
	}
	fn(app)
}

func Environment() string {
	return GetConfig().Environment
}

func KeystoreWorkFactor() int {
	return GetConfig().KeystoreWorkFactor
}

func NotaryThreshold() int {
	return GetConfig().NotaryThreshold
}

func Registry() *RegistryConfig {
	return GetConfig().Registry
}

func IsProduction() bool {
	return strings.EqualFold(Environment(), Production)
}

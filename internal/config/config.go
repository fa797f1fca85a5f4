// Package config loads the process configuration of escli and of
// applications bootstrapping a client from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/rpc"
)

const EnvPrefix = "esclient"

const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
	TransportGRPC   = "grpc"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Microservice string          `mapstructure:"microservice"`
	Environment  string          `mapstructure:"environment"`
	Version      string          `mapstructure:"version"`
	Tenant       string          `mapstructure:"tenant"`
	Transport    TransportConfig `mapstructure:"transport"`
	Retry        RetryConfig     `mapstructure:"retry"`
	Metrics      MetricsConfig   `mapstructure:"metrics"`
}

type TransportConfig struct {
	Kind          string `mapstructure:"kind"`
	Address       string `mapstructure:"address"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load reads path, if given, and applies ESCLIENT_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// every key needs a default for AutomaticEnv to pick it up on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("microservice", uuid.Nil.String())
	v.SetDefault("environment", execution.DefaultEnvironment)
	v.SetDefault("version", "1.0.0")
	v.SetDefault("tenant", execution.DevelopmentTenant.String())
	v.SetDefault("transport.kind", TransportMemory)
	v.SetDefault("transport.address", "")
	v.SetDefault("transport.subject_prefix", "esclient")
	v.SetDefault("retry.initial_interval", 100*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)
	v.SetDefault("retry.max_elapsed_time", time.Duration(0))
	v.SetDefault("metrics.listen", "")
}

func (c Config) Validate() error {
	var errs []error
	if _, err := uuid.Parse(c.Microservice); err != nil {
		errs = append(errs, fmt.Errorf("microservice: %w", err))
	}
	if _, err := uuid.Parse(c.Tenant); err != nil {
		errs = append(errs, fmt.Errorf("tenant: %w", err))
	}
	if _, err := execution.ParseVersion(c.Version); err != nil {
		errs = append(errs, fmt.Errorf("version: %w", err))
	}
	switch c.Transport.Kind {
	case TransportMemory:
	case TransportNATS, TransportGRPC:
		if c.Transport.Address == "" {
			errs = append(errs, fmt.Errorf("transport.address is required for %s", c.Transport.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind %q is not one of memory, nats, grpc", c.Transport.Kind))
	}
	if c.Retry.MaxInterval > 0 && c.Retry.InitialInterval > c.Retry.MaxInterval {
		errs = append(errs, errors.New("retry.initial_interval exceeds retry.max_interval"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ExecutionContext returns the context calls are made in. c must be valid.
func (c Config) ExecutionContext() execution.ExecutionContext {
	version, _ := execution.ParseVersion(c.Version)
	ec := execution.New(uuid.MustParse(c.Microservice), version, c.Environment)
	return ec.ForTenant(uuid.MustParse(c.Tenant))
}

func (c Config) RetryPolicy() rpc.RetryPolicy {
	return rpc.BackoffPolicy{
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		MaxElapsedTime:  c.Retry.MaxElapsedTime,
	}
}

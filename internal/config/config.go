// Package config loads Harrier configuration from files and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Load resolves the effective configuration. Precedence, lowest to highest:
// tier defaults, the optional YAML config file, then HARRIER_* environment
// variables (HARRIER_SERVER_PORT overrides server.port, and so on).
func Load(cfgFile string) (*domain.Config, error) {
	v := viper.New()

	v.SetEnvPrefix("HARRIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("harrier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/harrier")

		// A missing default config file is fine.
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Tier decides the component defaults before any overrides apply.
	base := domain.DefaultConfig()
	if strings.EqualFold(v.GetString("tier"), string(domain.TierPro)) {
		base = domain.ProConfig()
	}
	setDefaults(v, base)

	cfg := &domain.Config{
		Server: domain.ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetInt("server.read_timeout"),
			WriteTimeout: v.GetInt("server.write_timeout"),
		},
		Tier: domain.Tier(strings.ToLower(v.GetString("tier"))),
		Repository: domain.RepositoryConfig{
			Driver:           v.GetString("repository.driver"),
			SQLitePath:       v.GetString("repository.sqlite_path"),
			PostgresHost:     v.GetString("repository.postgres_host"),
			PostgresPort:     v.GetInt("repository.postgres_port"),
			PostgresUser:     v.GetString("repository.postgres_user"),
			PostgresPassword: v.GetString("repository.postgres_password"),
			PostgresDB:       v.GetString("repository.postgres_db"),
			PostgresSSLMode:  v.GetString("repository.postgres_sslmode"),
			MaxOpenConns:     v.GetInt("repository.max_open_conns"),
			MaxIdleConns:     v.GetInt("repository.max_idle_conns"),
			ConnMaxLifetime:  v.GetDuration("repository.conn_max_lifetime"),
		},
		Cache: domain.CacheConfig{
			Type:           v.GetString("cache.type"),
			LocalMaxSize:   v.GetInt("cache.local_max_size"),
			LocalTTL:       v.GetDuration("cache.local_ttl"),
			RedisAddr:      v.GetString("cache.redis_addr"),
			RedisPassword:  v.GetString("cache.redis_password"),
			RedisDB:        v.GetInt("cache.redis_db"),
			EnableTwoPhase: v.GetBool("cache.enable_two_phase"),
		},
		EventBus: domain.EventBusConfig{
			Type:              v.GetString("eventbus.type"),
			ChannelBufferSize: v.GetInt("eventbus.channel_buffer_size"),
			NATSUrl:           v.GetString("eventbus.nats_url"),
			NATSToken:         v.GetString("eventbus.nats_token"),
			NATSMaxReconnects: v.GetInt("eventbus.nats_max_reconnects"),
			NATSReconnectWait: v.GetInt("eventbus.nats_reconnect_wait"),
		},
		Logging: domain.LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Tracing: domain.TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			ServiceName:  v.GetString("tracing.service_name"),
			ExporterType: v.GetString("tracing.exporter_type"),
			Endpoint:     v.GetString("tracing.endpoint"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, base *domain.Config) {
	v.SetDefault("tier", string(base.Tier))
	v.SetDefault("server.host", base.Server.Host)
	v.SetDefault("server.port", base.Server.Port)
	v.SetDefault("server.read_timeout", base.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", base.Server.WriteTimeout)
	v.SetDefault("repository.driver", base.Repository.Driver)
	v.SetDefault("repository.sqlite_path", base.Repository.SQLitePath)
	v.SetDefault("repository.postgres_host", base.Repository.PostgresHost)
	v.SetDefault("repository.postgres_port", base.Repository.PostgresPort)
	v.SetDefault("repository.postgres_db", base.Repository.PostgresDB)
	v.SetDefault("repository.postgres_sslmode", "disable")
	v.SetDefault("repository.max_open_conns", 25)
	v.SetDefault("repository.max_idle_conns", 5)
	v.SetDefault("repository.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("cache.type", base.Cache.Type)
	v.SetDefault("cache.local_max_size", base.Cache.LocalMaxSize)
	v.SetDefault("cache.local_ttl", base.Cache.LocalTTL)
	v.SetDefault("cache.redis_addr", base.Cache.RedisAddr)
	v.SetDefault("cache.enable_two_phase", base.Cache.EnableTwoPhase)
	v.SetDefault("eventbus.type", base.EventBus.Type)
	v.SetDefault("eventbus.channel_buffer_size", base.EventBus.ChannelBufferSize)
	v.SetDefault("eventbus.nats_url", base.EventBus.NATSUrl)
	v.SetDefault("eventbus.nats_max_reconnects", base.EventBus.NATSMaxReconnects)
	v.SetDefault("eventbus.nats_reconnect_wait", base.EventBus.NATSReconnectWait)
	v.SetDefault("logging.level", base.Logging.Level)
	v.SetDefault("logging.format", base.Logging.Format)
	v.SetDefault("tracing.enabled", base.Tracing.Enabled)
	v.SetDefault("tracing.service_name", base.Tracing.ServiceName)
}

func validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid repository driver: %s", cfg.Repository.Driver)
	}
	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache type: %s", cfg.Cache.Type)
	}
	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("invalid event bus type: %s", cfg.EventBus.Type)
	}
	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		return fmt.Errorf("invalid tier: %s", cfg.Tier)
	}
	return nil
}

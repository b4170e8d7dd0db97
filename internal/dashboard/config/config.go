// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the dashboard service configuration from flags, environment
// variables, an optional YAML file and defaults, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"aetherflow/internal/dashboard/persistence"
)

// EnvPrefix prefixes every environment variable, e.g. AETHERFLOW_STORE_ADAPTER.
const EnvPrefix = "AETHERFLOW"

type Config struct {
	HTTPAddr        string        `mapstructure:"httpAddr"`
	MetricsAddr     string        `mapstructure:"metricsAddr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	// GaugeInterval is how often pipeline gauges are refreshed in the background; 0 disables it.
	GaugeInterval time.Duration `mapstructure:"gaugeInterval"`
	Log           LogConfig     `mapstructure:"log"`
	Store         StoreConfig   `mapstructure:"store"`
	// ActivityLog is the path of the JSONL activity file; empty disables it.
	ActivityLog string `mapstructure:"activityLog"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Adapter       string         `mapstructure:"adapter"`
	KeyPrefix     string         `mapstructure:"keyPrefix"`
	CacheSize     int            `mapstructure:"cacheSize"`
	TxMaxAttempts int            `mapstructure:"txMaxAttempts"`
	Redis         RedisConfig    `mapstructure:"redis"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// flagSpec ties a command-line flag to its configuration key.
type flagSpec struct {
	key   string
	flag  string
	value interface{}
	usage string
}

var flagSpecs = []flagSpec{
	{"httpAddr", "http_addr", ":8080", "HTTP listen address of the API"},
	{"metricsAddr", "metrics_addr", "", "separate listen address for /metrics; empty serves it on the API address"},
	{"shutdownTimeout", "shutdown_timeout", 5 * time.Second, "graceful shutdown timeout"},
	{"gaugeInterval", "gauge_interval", 15 * time.Second, "background refresh interval of the pipeline gauges; 0 disables it"},
	{"log.level", "log_level", "info", "log level (trace, debug, info, warn, error)"},
	{"log.format", "log_format", "text", "log format (text or json)"},
	{"store.adapter", "store_adapter", "memory", "key-value store adapter: memory, redis, sqlite or postgres"},
	{"store.keyPrefix", "store_key_prefix", "aetherflow", "prefix of every stored key; empty disables it"},
	{"store.cacheSize", "store_cache_size", 0, "LRU read cache entries in front of the store; 0 disables it"},
	{"store.txMaxAttempts", "store_tx_max_attempts", persistence.DefaultTxMaxAttempts, "max runs of an optimistic store transaction (redis)"},
	{"store.redis.addr", "redis_addr", "127.0.0.1:6379", "Redis address"},
	{"store.redis.password", "redis_password", "", "Redis password"},
	{"store.redis.db", "redis_db", 0, "Redis database number"},
	{"store.sqlite.path", "sqlite_path", "aetherflow.db", "SQLite database file"},
	{"store.postgres.dsn", "postgres_dsn", "", "Postgres connection string"},
	{"activityLog", "activity_log", "", "path of the JSONL activity log; empty disables it"},
}

// RegisterFlags adds every configuration flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range flagSpecs {
		switch v := s.value.(type) {
		case string:
			fs.String(s.flag, v, s.usage)
		case int:
			fs.Int(s.flag, v, s.usage)
		case time.Duration:
			fs.Duration(s.flag, v, s.usage)
		}
	}
}

// Load resolves the configuration. fs must have been populated by RegisterFlags and
// parsed; configFile may be empty.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	for _, s := range flagSpecs {
		v.SetDefault(s.key, s.value)
		if f := fs.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return Config{}, errors.WithStack(err)
			}
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

var adapters = map[string]bool{"memory": true, "redis": true, "sqlite": true, "postgres": true}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.HTTPAddr == "" {
		result = multierror.Append(result, errors.New("httpAddr must not be empty"))
	}
	if c.ShutdownTimeout <= 0 {
		result = multierror.Append(result, errors.Errorf("shutdownTimeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.GaugeInterval < 0 {
		result = multierror.Append(result, errors.Errorf("gaugeInterval must not be negative, got %s", c.GaugeInterval))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log.level"))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		result = multierror.Append(result, errors.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if !adapters[c.Store.Adapter] {
		result = multierror.Append(result, errors.Errorf("unknown store adapter: %s", c.Store.Adapter))
	}
	if c.Store.CacheSize < 0 {
		result = multierror.Append(result, errors.Errorf("store.cacheSize must not be negative, got %d", c.Store.CacheSize))
	}
	if c.Store.TxMaxAttempts <= 0 {
		result = multierror.Append(result, errors.Errorf("store.txMaxAttempts must be positive, got %d", c.Store.TxMaxAttempts))
	}
	switch c.Store.Adapter {
	case "redis":
		if c.Store.Redis.Addr == "" {
			result = multierror.Append(result, errors.New("store.redis.addr is required by the redis adapter"))
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			result = multierror.Append(result, errors.New("store.sqlite.path is required by the sqlite adapter"))
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			result = multierror.Append(result, errors.New("store.postgres.dsn is required by the postgres adapter"))
		}
	}
	return result.ErrorOrNil()
}

// StoreOptions converts the store section into persistence options.
func (c Config) StoreOptions(obs persistence.OpObserver) persistence.Options {
	return persistence.Options{
		KeyPrefix:     c.Store.KeyPrefix,
		CacheSize:     c.Store.CacheSize,
		TxMaxAttempts: c.Store.TxMaxAttempts,
		Redis: persistence.RedisOptions{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
		},
		SQLitePath:  c.Store.SQLite.Path,
		PostgresDSN: c.Store.Postgres.DSN,
		Observer:    obs,
	}
}

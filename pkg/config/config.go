// Package config loads and hot-reloads fluxgraph's runtime configuration
// using github.com/spf13/viper, watching the backing file with
// github.com/fsnotify/fsnotify the way viper's own OnConfigChange does.
package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/fluxgraph/fluxgraph/engine/core"
)

// Config holds every tunable the scheduler, dispatcher, and executor need.
type Config struct {
	RedisURL               string        `mapstructure:"redis_url"`
	DatabaseURL            string        `mapstructure:"database_url"`
	SecretKey              string        `mapstructure:"secret_key"`
	CredentialsSecretKey   string        `mapstructure:"credentials_secret_key"`
	SchedulerTickInterval  time.Duration `mapstructure:"scheduler_tick_interval"`
	ExecutorPoolSize       int           `mapstructure:"executor_pool_size"`
	TriggerStreamName      string        `mapstructure:"trigger_stream_name"`
	TriggerConsumerGroup   string        `mapstructure:"trigger_consumer_group"`
	TriggerReadBlock       time.Duration `mapstructure:"trigger_read_block"`
	TriggerClaimIdle       time.Duration `mapstructure:"trigger_claim_idle"`
	TriggerClaimInterval   time.Duration `mapstructure:"trigger_claim_interval"`
	ScheduleZSetKey        string        `mapstructure:"schedule_zset_key"`
	ControlPlaneTopic      string        `mapstructure:"control_plane_topic"`
	WebhookMaxBodyBytes    int64         `mapstructure:"webhook_max_body_bytes"`
	WebhookDedupeTTL       time.Duration `mapstructure:"webhook_dedupe_ttl"`
	PublicWebhookBaseURL   string        `mapstructure:"public_webhook_base_url"`
}

// Provider produces a Config, optionally watching for changes.
type Provider interface {
	Load() (*Config, error)
	Watch(onChange func(*Config)) error
}

// NewDefaultProvider returns a Provider reading from environment variables
// (FLUXGRAPH_*) with a config.yaml file as an optional override, mirroring
// viper's standard precedence: explicit file < env < defaults already set.
func NewDefaultProvider(configPath string) Provider {
	return &viperProvider{configPath: configPath}
}

type viperProvider struct {
	configPath string
	mu         sync.Mutex
	v          *viper.Viper
}

func (p *viperProvider) build() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FLUXGRAPH")
	v.AutomaticEnv()
	v.SetDefault("scheduler_tick_interval", time.Second)
	v.SetDefault("executor_pool_size", 8)
	v.SetDefault("trigger_stream_name", "workflow_triggers")
	v.SetDefault("trigger_consumer_group", "workflow_group")
	v.SetDefault("trigger_read_block", 5*time.Second)
	v.SetDefault("trigger_claim_idle", 30*time.Second)
	v.SetDefault("trigger_claim_interval", 10*time.Second)
	v.SetDefault("schedule_zset_key", "workflow_schedules_zset")
	v.SetDefault("control_plane_topic", "workflow_events")
	v.SetDefault("webhook_max_body_bytes", int64(1<<20))
	v.SetDefault("webhook_dedupe_ttl", 5*time.Minute)
	if p.configPath != "" {
		v.SetConfigFile(p.configPath)
	}
	return v
}

func (p *viperProvider) Load() (*Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.build()
	if p.configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(humanDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	p.v = v
	return &cfg, nil
}

// humanDurationHookFunc lets every time.Duration field in Config be set to
// a human-readable string ("3 days", "30 minutes") as well as a Go
// duration literal ("720h", "30m"); ParseHumanDuration tries the Go form
// first so existing config files keep working unchanged.
func humanDurationHookFunc() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from.Kind() != reflect.String {
			return data, nil
		}
		return core.ParseHumanDuration(data.(string))
	}
}

// Watch registers onChange to be invoked whenever the backing config file
// changes on disk. It is a no-op (but not an error) when no file was
// configured: callers can register a watcher unconditionally without
// checking whether a config file is actually in use.
func (p *viperProvider) Watch(onChange func(*Config)) error {
	p.mu.Lock()
	v := p.v
	p.mu.Unlock()
	if v == nil || p.configPath == "" {
		return nil
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg, viper.DecodeHook(humanDurationHookFunc())); err == nil {
			onChange(&cfg)
		}
	})
	v.WatchConfig()
	return nil
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Initialize loads cfg via provider and installs it as the process-wide
// configuration returned by Get. If watch callbacks are desired, pass a
// non-nil ctx; Initialize registers the provider's Watch under it.
func Initialize(ctx context.Context, provider Provider) (*Config, error) {
	if provider == nil {
		provider = NewDefaultProvider("")
	}
	cfg, err := provider.Load()
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
	if ctx != nil {
		_ = provider.Watch(func(updated *Config) {
			globalMu.Lock()
			globalCfg = updated
			globalMu.Unlock()
		})
	}
	return cfg, nil
}

// Get returns the process-wide configuration installed by Initialize.
// It panics if Initialize has not been called: every entry point must
// initialize configuration before reaching code that depends on it.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalCfg == nil {
		panic("config: Get called before Initialize")
	}
	return globalCfg
}

// Reload re-invokes provider.Load and replaces the process-wide config.
func Reload(_ context.Context, provider Provider) (*Config, error) {
	cfg, err := provider.Load()
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
	return cfg, nil
}

// resetForTest clears the process-wide config so tests can re-Initialize.
func resetForTest() {
	globalMu.Lock()
	globalCfg = nil
	globalMu.Unlock()
}

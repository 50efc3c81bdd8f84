// Package settings serves the dispatch settings snapshot. Values are re-read
// for every decision so admin edits apply to the next assignment.
package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/config"
	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// Hash fields under the settings key.
const (
	FieldExternalSLAMinutes  = "external_sla_minutes"
	FieldInternalSLAMinutes  = "internal_sla_minutes"
	FieldMaxExternalAttempts = "max_external_attempts"
	FieldMaxInternalAttempts = "max_internal_attempts"
)

// Provider returns the settings in force right now.
type Provider interface {
	Get(ctx context.Context) domain.DispatchSettings
}

// Defaults converts the environment fallbacks into a settings value.
func Defaults(cfg config.DispatchConfig) domain.DispatchSettings {
	return domain.DispatchSettings{
		ExternalSLAMinutes:  cfg.ExternalSLAMinutes,
		InternalSLAMinutes:  cfg.InternalSLAMinutes,
		MaxExternalAttempts: cfg.MaxExternalAttempts,
		MaxInternalAttempts: cfg.MaxInternalAttempts,
	}
}

// StaticProvider always returns the same settings.
type StaticProvider struct {
	Settings domain.DispatchSettings
}

// NewStaticProvider builds a provider from environment defaults.
func NewStaticProvider(cfg config.DispatchConfig) *StaticProvider {
	return &StaticProvider{Settings: Defaults(cfg)}
}

// Get returns the fixed snapshot.
func (p *StaticProvider) Get(context.Context) domain.DispatchSettings {
	return p.Settings
}

// RedisProvider reads settings from a Redis hash edited by administrators.
type RedisProvider struct {
	client   *redis.Client
	key      string
	defaults domain.DispatchSettings
	logger   *zap.Logger
}

// NewRedisProvider creates a provider reading cfg.SettingsKey.
func NewRedisProvider(client *redis.Client, cfg config.DispatchConfig, logger *zap.Logger) *RedisProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisProvider{
		client:   client,
		key:      cfg.SettingsKey,
		defaults: Defaults(cfg),
		logger:   logger,
	}
}

// Get loads the hash. Missing fields use the defaults; unparsable or
// negative values are treated as 0. When Redis is unreachable the defaults
// are returned.
func (p *RedisProvider) Get(ctx context.Context) domain.DispatchSettings {
	values, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		p.logger.Warn("settings store unavailable, using defaults", zap.String("key", p.key), zap.Error(err))
		return p.defaults
	}

	s := p.defaults
	s.ExternalSLAMinutes = p.field(values, FieldExternalSLAMinutes, s.ExternalSLAMinutes)
	s.InternalSLAMinutes = p.field(values, FieldInternalSLAMinutes, s.InternalSLAMinutes)
	s.MaxExternalAttempts = p.field(values, FieldMaxExternalAttempts, s.MaxExternalAttempts)
	s.MaxInternalAttempts = p.field(values, FieldMaxInternalAttempts, s.MaxInternalAttempts)
	return s
}

// Set writes a single field. Used by the CLI and tests.
func (p *RedisProvider) Set(ctx context.Context, field string, value int) error {
	return p.client.HSet(ctx, p.key, field, value).Err()
}

func (p *RedisProvider) field(values map[string]string, name string, fallback int) int {
	raw, ok := values[name]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		p.logger.Warn("invalid dispatch setting, treating as 0",
			zap.String("field", name), zap.String("value", raw))
		return 0
	}
	return n
}

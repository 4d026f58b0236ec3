package settings

import (
	"context"
	"strconv"
	"sync"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// Setting keys recognized by the warehouse core
const (
	KeyExpiryWarningDays  = "inventory.expiry_warning_days"
	KeyExpiryCriticalDays = "inventory.expiry_critical_days"
)

// Provider serves runtime settings with an in-memory cache over the
// settings table. Config defaults apply when a key has no row.
type Provider struct {
	repo     *repository.SettingRepository
	defaults config.InventoryConfig
	logger   *logger.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewProvider creates a new settings provider
func NewProvider(repo *repository.SettingRepository, defaults config.InventoryConfig, log *logger.Logger) *Provider {
	return &Provider{
		repo:     repo,
		defaults: defaults,
		logger:   log,
		cache:    make(map[string]string),
	}
}

// Get returns the value for a key, reading through the cache
func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	value, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	setting, err := p.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[key] = setting.Value
	p.mu.Unlock()

	return setting.Value, nil
}

// Set persists a setting and refreshes the cached value
func (p *Provider) Set(ctx context.Context, key, value string) error {
	if err := p.repo.Upsert(ctx, key, value); err != nil {
		return err
	}

	p.mu.Lock()
	p.cache[key] = value
	p.mu.Unlock()

	return nil
}

// Invalidate drops a key from the cache so the next Get re-reads it
func (p *Provider) Invalidate(key string) {
	p.mu.Lock()
	delete(p.cache, key)
	p.mu.Unlock()
}

// ExpiryThresholds returns the warning and critical windows in days.
// Missing or malformed rows fall back to the configured defaults.
func (p *Provider) ExpiryThresholds(ctx context.Context) (warningDays, criticalDays int) {
	warningDays = p.intOrDefault(ctx, KeyExpiryWarningDays, p.defaults.ExpiryWarningDays)
	criticalDays = p.intOrDefault(ctx, KeyExpiryCriticalDays, p.defaults.ExpiryCriticalDays)
	return warningDays, criticalDays
}

func (p *Provider) intOrDefault(ctx context.Context, key string, fallback int) int {
	value, err := p.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			p.logger.Error().Err(err).Str("key", key).Msg("failed to read setting, using default")
		}
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		p.logger.Error().Str("key", key).Str("value", value).Msg("malformed setting value, using default")
		return fallback
	}
	return n
}

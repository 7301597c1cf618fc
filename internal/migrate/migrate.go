// Package migrate upgrades the legacy single-source settings layout to the
// multi-source collection.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/lookout/internal/credential"
	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/settings"
)

// MigratedName is the display name given to the converted source.
const MigratedName = "Camera 1"

// Needed reports whether the legacy layout is present and the collection is not.
func Needed(ctx context.Context, store settings.Store) (bool, error) {
	legacy, err := store.Contains(ctx, settings.LegacyKeyIP)
	if err != nil {
		return false, fmt.Errorf("check legacy settings: %w", err)
	}
	if !legacy {
		return false, nil
	}
	current, err := store.Contains(ctx, settings.KeySources)
	if err != nil {
		return false, fmt.Errorf("check source collection: %w", err)
	}
	return !current, nil
}

// Migrate converts the legacy keys into a single-entry collection, selects
// it, and deletes the legacy keys. It returns false when there was nothing
// to do, which makes repeated runs no-ops.
func Migrate(ctx context.Context, store settings.Store, defaultTimeout int, log logger.Logger) (bool, error) {
	needed, err := Needed(ctx, store)
	if err != nil {
		return false, err
	}
	if !needed {
		log.Debug("settings migration not needed")
		return false, nil
	}

	legacy := make(map[string]string, len(settings.LegacyKeys))
	for _, key := range settings.LegacyKeys {
		v, ok, err := store.Value(ctx, key)
		if err != nil {
			return false, fmt.Errorf("read legacy key %s: %w", key, err)
		}
		if ok {
			legacy[key] = v
		}
	}

	record := fromLegacy(legacy, defaultTimeout, log)

	data, err := json.Marshal([]domain.PersistedSource{record})
	if err != nil {
		return false, fmt.Errorf("marshal migrated source: %w", err)
	}
	if err := store.SetValue(ctx, settings.KeySources, string(data)); err != nil {
		return false, fmt.Errorf("write migrated source: %w", err)
	}
	if err := store.SetValue(ctx, settings.KeySelectedID, record.ID); err != nil {
		return false, fmt.Errorf("write selected source: %w", err)
	}
	for _, key := range settings.LegacyKeys {
		if err := store.Remove(ctx, key); err != nil {
			return false, fmt.Errorf("remove legacy key %s: %w", key, err)
		}
	}
	if err := store.Sync(ctx); err != nil {
		return false, fmt.Errorf("flush migrated settings: %w", err)
	}

	log.Info("✅ migrated legacy single-source settings",
		logger.SourceID(record.ID),
		logger.String("host", record.Host))
	return true, nil
}

func fromLegacy(legacy map[string]string, defaultTimeout int, log logger.Logger) domain.PersistedSource {
	protocol := legacy[settings.LegacyKeyProtocol]
	if protocol == "" {
		protocol = domain.DefaultProtocol
	}

	port := domain.DefaultPort
	if raw := legacy[settings.LegacyKeyPort]; raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			port = p
		} else {
			log.Warn("legacy port is not a number, using default",
				logger.Int("default", domain.DefaultPort))
		}
	}

	resolution := domain.DefaultResolution
	if raw := legacy[settings.LegacyKeyResolution]; raw != "" {
		if r, err := domain.ParseResolution(raw); err == nil {
			resolution = r
		} else {
			log.Warn("legacy resolution unreadable, using default",
				logger.String("default", domain.DefaultResolution.String()),
				logger.Error(err))
		}
	}

	if defaultTimeout <= 0 {
		defaultTimeout = int(domain.DefaultConnectTimeout.Seconds())
	}

	return domain.PersistedSource{
		ID:             uuid.NewString(),
		Name:           MigratedName,
		Protocol:       protocol,
		Username:       legacy[settings.LegacyKeyUser],
		Password:       credential.Encode(legacy[settings.LegacyKeyPassword]),
		Host:           legacy[settings.LegacyKeyIP],
		Port:           port,
		Path:           legacy[settings.LegacyKeyStreamPath],
		Resolution:     resolution,
		ConnectTimeout: defaultTimeout,
		Location:       domain.DefaultLocation,
		State:          domain.StateStopped,
	}
}

package app

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/lookout/internal/config"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/redis"
	"github.com/MrSnakeDoc/lookout/internal/settings"
	"github.com/MrSnakeDoc/lookout/internal/settings/file"
	redisstore "github.com/MrSnakeDoc/lookout/internal/settings/redis"
)

// Store is the configured settings backend plus whatever it must release on
// shutdown.
type Store struct {
	settings.Store
	close func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the backend selected by cfg.SettingsBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Store, error) {
	switch cfg.SettingsBackend {
	case config.BackendMemory:
		log.Warn("memory settings backend: sources are lost on exit")
		return &Store{Store: settings.NewMemory()}, nil

	case config.BackendRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("Redis initialized successfully")
		return &Store{
			Store: redisstore.NewStore(client, redisstore.HashKey(cfg.RedisProfile)),
			close: client.Close,
		}, nil

	default:
		s := file.Open(cfg.SettingsFile)
		if err := s.Status(); err != nil {
			// A corrupt file is reported, not fatal: Load sees the status and
			// starts empty, and the next save rewrites the file.
			log.Warn("settings file unreadable", logger.String("path", cfg.SettingsFile), logger.Error(err))
		} else {
			log.Info("settings file opened", logger.String("path", cfg.SettingsFile))
		}
		return &Store{Store: s}, nil
	}
}

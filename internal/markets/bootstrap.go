// Package markets 组装行情榜单服务：存储、缓存、消息、数据源与应用服务
package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/coinboard/internal/markets/application"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/internal/markets/infrastructure/messaging"
	"github.com/wyfcoding/coinboard/internal/markets/infrastructure/persistence/rdb"
	marketsredis "github.com/wyfcoding/coinboard/internal/markets/infrastructure/persistence/redis"
	"github.com/wyfcoding/coinboard/internal/markets/infrastructure/source"
	"github.com/wyfcoding/coinboard/pkg/cache"
	"github.com/wyfcoding/coinboard/pkg/config"
	"github.com/wyfcoding/coinboard/pkg/db"
	"github.com/wyfcoding/coinboard/pkg/logger"
	"github.com/wyfcoding/coinboard/pkg/metrics"
	"github.com/wyfcoding/coinboard/pkg/mq"
)

// Service 组装完成的服务依赖
type Service struct {
	DB      *db.DB
	Metrics *metrics.Metrics // 未启用时为 nil
	Refresh *application.RefreshService
	Query   *application.QueryService

	closers []func() error
}

// InitLogging 按配置初始化全局日志
func InitLogging(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
}

// New 按配置组装服务
// Redis 与 Kafka 是可选组件，连接失败时记录日志并降级运行
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{}

	// 1. 指标
	if cfg.Metrics.Enabled {
		s.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	// 2. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	s.DB = database
	s.closers = append(s.closers, database.Close)

	if cfg.Database.AutoMigrate {
		if err := rdb.AutoMigrate(database); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// 3. Redis 榜单缓存
	var listing domain.ListingCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Error(ctx, "Failed to init redis, listing cache disabled", "error", err)
		} else {
			s.closers = append(s.closers, redisCache.Close)
			listing = marketsredis.NewListingCache(redisCache, time.Duration(cfg.Redis.ListingTTL)*time.Second)
		}
	}

	// 4. Kafka 事件发布
	var publisher domain.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Error(ctx, "Failed to init kafka producer, refresh events disabled", "error", err)
		} else {
			s.closers = append(s.closers, producer.Close)
			publisher = messaging.NewRefreshPublisher(producer, cfg.Kafka.Topic)
		}
	}

	// 5. 数据源
	fetcher, err := source.New(cfg.Scraper)
	if err != nil {
		s.Close()
		return nil, err
	}

	// 6. 仓储与应用服务
	entryRepo := rdb.NewMarketEntryRepository(database)
	runRepo := rdb.NewRefreshRunRepository(database)

	s.Refresh = application.NewRefreshService(fetcher, entryRepo, runRepo, listing, publisher, s.Metrics)
	s.Query = application.NewQueryService(entryRepo, runRepo, listing)

	logger.Info(ctx, "Markets service assembled",
		"source", fetcher.Name(),
		"driver", database.Driver(),
		"cache", listing != nil,
		"events", publisher != nil,
	)
	return s, nil
}

// Close 按创建的逆序释放资源
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn(context.Background(), "Failed to release resource", "error", err)
		}
	}
	s.closers = nil
}

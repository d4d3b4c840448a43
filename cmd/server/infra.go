package main

import (
	"context"
	"fmt"
	"log/slog"

	"basecamp/internal/platform/config"
	"basecamp/internal/platform/database"
	"basecamp/internal/platform/kafka/producer"
	"basecamp/internal/platform/redis"
	"basecamp/migrations"
)

// topicPartitions is used when topics are created on startup.
const topicPartitions = 6

// infra holds the optional external connections. Each is nil when its URL
// is not configured and the in-process fallback is used instead.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
	log      *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{log: log}

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	in.db = db
	if db != nil {
		if cfg.DB.MigrateOnStart {
			if err := database.Migrate(migrations.FS, ".", cfg.DB.URL, log); err != nil {
				in.Close()
				return nil, err
			}
		}
		log.Info("postgres connected")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	in.redis = rc
	if rc == nil {
		log.Warn("REDIS_URL not set; record locks are process-local")
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.producer = p
		if err := p.EnsureTopics(ctx, topicPartitions, cfg.Kafka.NoticeTopic, cfg.Kafka.EventsTopic); err != nil {
			in.Close()
			return nil, err
		}
		log.Info("kafka producer ready", "notice_topic", cfg.Kafka.NoticeTopic, "events_topic", cfg.Kafka.EventsTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set; notices are logged and events discarded")
	}
	return in, nil
}

// Close releases connections in reverse order of opening.
func (in *infra) Close() {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			in.log.Error("kafka close failed", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Error("redis close failed", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.log.Error("database close failed", "error", err)
		}
	}
}

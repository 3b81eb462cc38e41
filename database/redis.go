package database

import (
	"context"
	"log/slog"
	"time"

	"tripsplit-backend/config"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// ConnectRedis leaves Redis nil when the server is unreachable; event
// publishing is then disabled.
func ConnectRedis(cfg *config.Config) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis not available, settlement events disabled", "addr", cfg.RedisURL, "error", err)
		client.Close()
		Redis = nil
		return
	}

	slog.Info("redis connected", "addr", cfg.RedisURL)
	Redis = client
}

package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aethermoor/server/config"
	"github.com/go-redis/redis/v8"
)

var (
	// RedisClient is the global client. It stays nil when no Redis address
	// is configured; callers that use it for optional state (login lockout,
	// §10) must fall back to an in-memory path rather than assume non-nil.
	RedisClient *redis.Client
	// Ctx is the background context root for Redis calls issued outside a
	// request/session context.
	Ctx = context.Background()
)

// InitRedis opens the client and verifies connectivity. Returns nil without
// opening a client when no address is configured, so Redis stays optional.
func InitRedis() error {
	redisConfig := config.GlobalConfig.Redis
	if redisConfig.Host == "" {
		return nil
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     redisConfig.GetRedisAddr(),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(Ctx, 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	log.Println("connected to redis")
	return nil
}

// CloseRedis releases the client, if one was opened.
func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			log.Printf("error closing redis connection: %v", err)
			return
		}
		log.Println("redis connection closed")
	}
}

package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"brandlift-pipeline-server/modules/common/config"
)

// Connect - 파이프라인 Job 큐용 Redis 연결 생성
// 워커 1개 + HTTP 핸들러의 LPUSH만 쓰므로 작은 풀로 충분하다.
func Connect(cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second, // BRPOP 같은 블로킹 명령은 go-redis가 별도 처리
		WriteTimeout: 10 * time.Second,
		MaxRetries:   3,
		PoolSize:     8,
	}

	if cfg.RedisUseTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // 관리형 Redis의 self-signed 인증서용
		}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", cfg.GetRedisAddr(), err)
	}

	log.Printf("✅ Redis connected: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	return rdb, nil
}

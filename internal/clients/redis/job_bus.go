// Package redis wraps the pub/sub channel used to wake idle pipeline
// workers the moment a job is enqueued, instead of waiting out the poll
// interval. Delivery is a hint only; the durable queue is the database.
package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/envutil"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

type JobBus interface {
	Nudge(ctx context.Context, jobType string) error
	StartListener(ctx context.Context, onNudge func(jobType string)) error
	Ping(ctx context.Context) error
	Close() error
}

type jobBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewJobBus connects using REDIS_URL (a redis:// URL or a bare host:port,
// REDIS_ADDR is accepted as an alias) and REDIS_CHANNEL. Callers treat a
// missing address as "run without the bus" and skip construction.
func NewJobBus(log *logger.Logger) (JobBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	}
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "jobs"
	}

	opts := &goredis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}
	opts.PoolSize = envutil.GetEnvAsInt("WORKER_BROKER_POOL_LIMIT", 10, log)
	dialTimeout := time.Duration(envutil.GetEnvAsInt("WORKER_BROKER_CONN_TIMEOUT", 5, log)) * time.Second
	opts.DialTimeout = dialTimeout

	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &jobBus{
		log:     log.With("service", "RedisJobBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *jobBus) Nudge(ctx context.Context, jobType string) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job bus not initialized")
	}
	return b.rdb.Publish(ctx, b.channel, jobType).Err()
}

func (b *jobBus) StartListener(ctx context.Context, onNudge func(jobType string)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job bus not initialized")
	}
	if onNudge == nil {
		return fmt.Errorf("onNudge callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				onNudge(m.Payload)
			}
		}
	}()

	return nil
}

func (b *jobBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job bus not initialized")
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *jobBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

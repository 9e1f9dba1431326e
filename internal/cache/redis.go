// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/punishroulette/roulette/internal/models"
)

// ChannelPrefix is the Redis pub/sub namespace for table change events.
// One channel per table: "roulette.events.members", "roulette.events.groups", etc.
const ChannelPrefix = "roulette.events."

// Channel returns the pub/sub channel name for a table.
func Channel(table string) string {
	return ChannelPrefix + table
}

// Connect initializes a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Bus publishes and subscribes table change events over Redis pub/sub.
type Bus struct {
	rdb *redis.Client
}

func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// PublishChange serializes the event to JSON and publishes it on the table's
// channel. Delivery is fire-and-forget: subscribers that miss an event
// recover on their next full re-fetch.
func (b *Bus) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(ev.Table), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", Channel(ev.Table), err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription covering the given tables and
// returns a channel of decoded events. The channel closes when ctx is
// cancelled. Malformed payloads are dropped.
func (b *Bus) Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, error) {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, Channel(t))
	}
	sub := b.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	out := make(chan models.ChangeEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var ev models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

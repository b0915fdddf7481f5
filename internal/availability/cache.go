package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/utils"

	"github.com/go-redis/redis/v8"
)

// Cache is a read-through wrapper around the calculator. With a nil client it
// calls straight through, so correctness never depends on Redis being up.
type Cache struct {
	calc   *Calculator
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewCache(calc *Calculator, client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{calc: calc, client: client, ttl: ttl, logger: log}
}

func (c *Cache) monthKey(year int, month time.Month) string {
	return fmt.Sprintf("availability:%d:%04d-%02d", c.calc.Capacity, year, int(month))
}

func (c *Cache) BlockedDays(ctx context.Context, year int, month time.Month) ([]string, error) {
	if c.client == nil {
		return c.calc.BlockedDays(ctx, year, month)
	}

	key := c.monthKey(year, month)
	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var days []string
		if unmarshalErr := json.Unmarshal([]byte(cached), &days); unmarshalErr == nil {
			return days, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("CACHE", fmt.Sprintf("redis read for %s failed: %v", key, err))
	}

	days, err := c.calc.BlockedDays(ctx, year, month)
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(days); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("CACHE", fmt.Sprintf("redis write for %s failed: %v", key, setErr))
		}
	}
	return days, nil
}

// RangeFits is never cached: booking decisions always read through to the
// stores.
func (c *Cache) RangeFits(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	return c.calc.RangeFits(ctx, start, end, excludeID)
}

// InvalidateRange drops every cached month the range [start, end) touches.
// Called after any mutation that changes what blocks a day.
func (c *Cache) InvalidateRange(ctx context.Context, start, end time.Time) {
	if c.client == nil {
		return
	}

	last := utils.DayUTC(end).AddDate(0, 0, -1)
	cursor := time.Date(start.UTC().Year(), start.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		key := c.monthKey(cursor.Year(), cursor.Month())
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("CACHE", fmt.Sprintf("redis invalidate for %s failed: %v", key, err))
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
}

package availability

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, calc *Calculator) (*Cache, *redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return NewCache(calc, client, time.Minute, logger.NewLogger("availability-test")), client, mr
}

func TestCacheReadThroughAndInvalidate(t *testing.T) {
	reservations := &fakeReservations{rows: []models.Reservation{
		confirmed("a", day(2026, 11, 10), day(2026, 11, 11)),
	}}
	calc := NewCalculator(reservations, &fakeBlackouts{}, 1)
	cache, client, mr := setupTestCache(t, calc)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()

	blocked, err := cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10"}, blocked)

	// The month is now cached, so new confirmations are invisible...
	reservations.rows = append(reservations.rows, confirmed("b", day(2026, 11, 15), day(2026, 11, 16)))

	blocked, err = cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10"}, blocked)

	// ...until the mutation's range is invalidated.
	cache.InvalidateRange(ctx, day(2026, 11, 15), day(2026, 11, 16))

	blocked, err = cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10", "2026-11-15"}, blocked)
}

func TestCacheInvalidateRangeSpanningMonths(t *testing.T) {
	reservations := &fakeReservations{}
	calc := NewCalculator(reservations, &fakeBlackouts{}, 1)
	cache, client, mr := setupTestCache(t, calc)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()

	// Prime two months.
	_, err := cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	_, err = cache.BlockedDays(ctx, 2026, time.December)
	require.NoError(t, err)
	assert.True(t, mr.Exists("availability:1:2026-11"))
	assert.True(t, mr.Exists("availability:1:2026-12"))

	// A stay crossing the month boundary must drop both.
	cache.InvalidateRange(ctx, day(2026, 11, 29), day(2026, 12, 2))

	assert.False(t, mr.Exists("availability:1:2026-11"))
	assert.False(t, mr.Exists("availability:1:2026-12"))
}

func TestCacheExpiry(t *testing.T) {
	reservations := &fakeReservations{rows: []models.Reservation{
		confirmed("a", day(2026, 11, 10), day(2026, 11, 11)),
	}}
	calc := NewCalculator(reservations, &fakeBlackouts{}, 1)
	cache, client, mr := setupTestCache(t, calc)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()

	_, err := cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)

	reservations.rows = append(reservations.rows, confirmed("b", day(2026, 11, 15), day(2026, 11, 16)))

	// miniredis only advances TTLs manually.
	mr.FastForward(2 * time.Minute)

	blocked, err := cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10", "2026-11-15"}, blocked)
}

func TestCacheWithoutClientCallsThrough(t *testing.T) {
	reservations := &fakeReservations{rows: []models.Reservation{
		confirmed("a", day(2026, 11, 10), day(2026, 11, 11)),
	}}
	calc := NewCalculator(reservations, &fakeBlackouts{}, 1)
	cache := NewCache(calc, nil, time.Minute, logger.NewLogger("availability-test"))

	blocked, err := cache.BlockedDays(context.Background(), 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10"}, blocked)

	// Invalidation with no client is a quiet no-op.
	cache.InvalidateRange(context.Background(), day(2026, 11, 10), day(2026, 11, 11))
}

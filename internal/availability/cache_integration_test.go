package availability

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCacheIntegration runs the read-through flow against a real Redis.
func TestCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Could not start Redis container (is Docker running?): %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	reservations := &fakeReservations{rows: []models.Reservation{
		confirmed("a", day(2026, 11, 10), day(2026, 11, 11)),
	}}
	calc := NewCalculator(reservations, &fakeBlackouts{}, 1)
	cache := NewCache(calc, client, time.Minute, logger.NewLogger("availability-test"))

	blocked, err := cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10"}, blocked)

	// Served from Redis now.
	reservations.rows = append(reservations.rows, confirmed("b", day(2026, 11, 20), day(2026, 11, 21)))
	blocked, err = cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10"}, blocked)

	cache.InvalidateRange(ctx, day(2026, 11, 20), day(2026, 11, 21))

	blocked, err = cache.BlockedDays(ctx, 2026, time.November)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-10", "2026-11-20"}, blocked)
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another writer is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BookingLocker grants one payment writer per booking.
// Key format: lock:payment:<booking_id>
type BookingLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewBookingLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *BookingLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &BookingLocker{client: client, ttl: ttl, log: log}
}

// Acquire takes the booking's lock or fails with domain.ErrConflict when
// another writer holds it. The lock expires after ttl if never released.
func (l *BookingLocker) Acquire(ctx context.Context, bookingID string) (func(), error) {
	key := l.key(bookingID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("payment lock held for booking %s: %w", bookingID, domain.ErrConflict)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("booking_id", bookingID).Msg("failed to release payment lock")
		}
	}
	return release, nil
}

func (l *BookingLocker) key(bookingID string) string {
	return fmt.Sprintf("lock:payment:%s", bookingID)
}

package payment

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/auroragems/backend-aurora/internal/common"
)

// ReplayGuard deduplicates completion signals delivered more than once.
// Once reports true the first time a key is seen within the TTL window.
type ReplayGuard interface {
	Once(ctx context.Context, key string) (bool, error)
}

// RedisReplayGuard implements ReplayGuard with a SET NX marker per signal.
type RedisReplayGuard struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// Once marks the key as seen and reports whether this was the first delivery.
func (g RedisReplayGuard) Once(ctx context.Context, key string) (bool, error) {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "pay:replay"
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return g.Client.SetNX(ctx, fmt.Sprintf("%s:%s", prefix, key), "1", ttl).Result()
}

// replayKey derives a stable dedup key from the completion identifiers,
// signature included, so a forged variant of a signal never shares a key with
// the genuine one.
func replayKey(provider string, c Completion) string {
	return common.Sha256Hex(provider + "|" + c.ProviderOrderID + "|" + c.PaymentID + "|" + c.Signature + "|" + c.LocalOrderID)
}

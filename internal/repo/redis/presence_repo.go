package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

const presencePrefix = "presence:"

// PresenceRepo mirrors presence transitions into redis so operational tooling
// and other services can see who was online recently. The in-memory registry
// stays authoritative; this mirror expires on its own.
type PresenceRepo struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewPresenceRepo(client *goredis.Client, ttl time.Duration) *PresenceRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &PresenceRepo{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *PresenceRepo) Touch(ctx context.Context, userID int64, status enums.PresenceStatus) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	key := presenceKey(userID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"status":    string(status),
		"last_seen": r.now().UTC().Unix(),
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch presence mirror: %w", err)
	}

	return nil
}

// Get reads a mirrored presence record. A missing key reports offline with a
// zero last-seen time.
func (r *PresenceRepo) Get(ctx context.Context, userID int64) (enums.PresenceStatus, time.Time, error) {
	if r.client == nil {
		return "", time.Time{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get presence mirror: %w", err)
	}
	if len(values) == 0 {
		return enums.PresenceOffline, time.Time{}, nil
	}

	lastSeenUnix, err := strconv.ParseInt(values["last_seen"], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse last_seen: %w", err)
	}

	return enums.PresenceStatus(values["status"]), time.Unix(lastSeenUnix, 0).UTC(), nil
}

func presenceKey(userID int64) string {
	return presencePrefix + strconv.FormatInt(userID, 10)
}

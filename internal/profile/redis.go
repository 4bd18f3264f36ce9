package profile

import (
	"context"
)

// HashStore is the subset of the redis client used for profiles.
type HashStore interface {
	GetProfile(ctx context.Context, userID string) (map[string]string, bool, error)
}

// RedisSource reads one hash per user on every lookup, so edits in redis
// are visible without a reload.
type RedisSource struct {
	store HashStore
}

func NewRedisSource(store HashStore) *RedisSource {
	return &RedisSource{store: store}
}

func (rs *RedisSource) Lookup(ctx context.Context, userID string) (Profile, bool, error) {
	fields, ok, err := rs.store.GetProfile(ctx, userID)
	if err != nil || !ok {
		return Profile{}, false, err
	}

	attrs := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		attrs[k] = v
	}
	return fromFields(userID, attrs), true, nil
}

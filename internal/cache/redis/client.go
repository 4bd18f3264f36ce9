package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/pkg/logger"
)

const profilePrefix = "profile:"

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func ProfileKey(userID string) string {
	return profilePrefix + userID
}

// GetProfile returns the hash stored for userID. A missing key is reported
// as found == false, not as an error.
func (c *Client) GetProfile(ctx context.Context, userID string) (map[string]string, bool, error) {
	fields, err := c.client.HGetAll(ctx, ProfileKey(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	logger.Debug("Profile cache hit", zap.String("user_id", userID))
	return fields, true, nil
}

func (c *Client) SetProfile(ctx context.Context, userID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, ProfileKey(userID))
	pipe.HSet(ctx, ProfileKey(userID), values...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}

	logger.Debug("Profile stored", zap.String("user_id", userID))
	return nil
}

func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, ProfileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// ProfileIDs lists the user IDs that currently have a stored profile.
func (c *Client) ProfileIDs(ctx context.Context) ([]string, error) {
	var ids []string

	iter := c.client.Scan(ctx, 0, profilePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(profilePrefix):])
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile keys: %w", err)
	}

	return ids, nil
}

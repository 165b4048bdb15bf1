package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda respostas de leitura de usuários no Redis com TTL curto.
// Invalidado a cada escrita que toca saldos ou cadastro.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

const keyAllUsers = "wager:users:all"

func keyUser(externalID string) string { return "wager:user:" + externalID }

func (c *Cache) GetUsers(ctx context.Context, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyAllUsers).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetUsers(ctx context.Context, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyAllUsers, b, ttl).Err()
}

func (c *Cache) GetUser(ctx context.Context, externalID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyUser(externalID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetUser(ctx context.Context, externalID string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyUser(externalID), b, ttl).Err()
}

// InvalidateUsers derruba a lista e, se informados, os registros individuais
func (c *Cache) InvalidateUsers(ctx context.Context, externalIDs ...string) error {
	keys := make([]string, 0, len(externalIDs)+1)
	keys = append(keys, keyAllUsers)
	for _, id := range externalIDs {
		keys = append(keys, keyUser(id))
	}
	return c.R.Del(ctx, keys...).Err()
}

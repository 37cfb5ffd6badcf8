package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

// DefaultRedisPrefix namespaces user hashes.
const DefaultRedisPrefix = "gs:"

const (
	fieldHash  = "hash"
	fieldRoles = "roles"
)

// RedisDirectory stores users as Redis hashes under <prefix>user:<id> with
// fields "hash" and "roles" (comma separated).
type RedisDirectory struct {
	redis  redis.UniversalClient
	prefix string
	v      *verifier
}

var _ goSession.IdentityResolver = (*RedisDirectory)(nil)

// NewRedisDirectory pings client before returning. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisDirectory(ctx context.Context, client redis.UniversalClient, prefix string, h password.Hasher) (*RedisDirectory, error) {
	if client == nil {
		return nil, errors.New("credentials: redis client is required")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	v, err := newVerifier(h)
	if err != nil {
		return nil, err
	}
	return &RedisDirectory{redis: client, prefix: prefix, v: v}, nil
}

func (d *RedisDirectory) key(id string) string {
	return d.prefix + "user:" + id
}

// Put writes u, replacing any existing record.
func (d *RedisDirectory) Put(ctx context.Context, u User) error {
	if err := u.validate(); err != nil {
		return err
	}
	key := d.key(u.ID)
	_, err := d.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldHash, u.PasswordHash, fieldRoles, strings.Join(u.Roles, ","))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", goSession.ErrIdentityUnavailable, err)
	}
	return nil
}

// Delete removes a user. Missing users are not an error.
func (d *RedisDirectory) Delete(ctx context.Context, id string) error {
	if err := d.redis.Del(ctx, d.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", goSession.ErrIdentityUnavailable, err)
	}
	return nil
}

func (d *RedisDirectory) ResolveIdentity(ctx context.Context, creds goSession.Credentials) (goSession.Principal, error) {
	return resolve(ctx, d.v, d.get, creds)
}

func (d *RedisDirectory) LookupIdentity(ctx context.Context, identity string) (goSession.Principal, error) {
	return lookup(ctx, d.get, identity)
}

func (d *RedisDirectory) get(ctx context.Context, id string) (User, bool, error) {
	if id == "" {
		return User{}, false, nil
	}
	fields, err := d.redis.HGetAll(ctx, d.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("%w: %v", goSession.ErrIdentityUnavailable, err)
	}
	hash, ok := fields[fieldHash]
	if !ok || hash == "" {
		return User{}, false, nil
	}
	return User{ID: id, PasswordHash: hash, Roles: splitRoles(fields[fieldRoles])}, true, nil
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

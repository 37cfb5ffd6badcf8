package credentials

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

func fastHasher(t *testing.T) password.Hasher {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func demoUsers(t *testing.T, h password.Hasher) []User {
	t.Helper()
	users, err := DemoUsers(h)
	require.NoError(t, err)
	return users
}

func TestMemoryDirectoryResolve(t *testing.T) {
	h := fastHasher(t)
	d, err := NewMemoryDirectory(h, demoUsers(t, h)...)
	require.NoError(t, err)
	require.Equal(t, 3, d.Len())

	ctx := context.Background()
	p, err := d.ResolveIdentity(ctx, goSession.Credentials{UserID: "admin", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Identity)
	assert.Equal(t, []string{"ADMIN", "USER"}, p.Roles)

	_, err = d.ResolveIdentity(ctx, goSession.Credentials{UserID: "john", Password: "wrong-password"})
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)

	_, err = d.ResolveIdentity(ctx, goSession.Credentials{UserID: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)
}

func TestMemoryDirectoryLookupAndDelete(t *testing.T) {
	h := fastHasher(t)
	d, err := NewMemoryDirectory(h, demoUsers(t, h)...)
	require.NoError(t, err)

	ctx := context.Background()
	p, err := d.LookupIdentity(ctx, "asraf")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, p.Roles)

	d.Delete("asraf")
	_, err = d.LookupIdentity(ctx, "asraf")
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)
	assert.Equal(t, 2, d.Len())
}

func TestMemoryDirectoryRolesAreCopied(t *testing.T) {
	h := fastHasher(t)
	d, err := NewMemoryDirectory(h, demoUsers(t, h)...)
	require.NoError(t, err)

	p, err := d.LookupIdentity(context.Background(), "admin")
	require.NoError(t, err)
	p.Roles[0] = "ROOT"

	again, err := d.LookupIdentity(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", again.Roles[0])
}

func TestPutRejectsInvalidUsers(t *testing.T) {
	d, err := NewMemoryDirectory(fastHasher(t))
	require.NoError(t, err)

	assert.ErrorIs(t, d.Put(User{ID: "", PasswordHash: "x"}), ErrInvalidUser)
	assert.ErrorIs(t, d.Put(User{ID: " john", PasswordHash: "x"}), ErrInvalidUser)
	assert.ErrorIs(t, d.Put(User{ID: "john"}), ErrInvalidUser)
}

func TestUnusableStoredHashIsInvalidCredentials(t *testing.T) {
	d, err := NewMemoryDirectory(fastHasher(t), User{ID: "broken", PasswordHash: "not-a-hash"})
	require.NoError(t, err)

	_, err = d.ResolveIdentity(context.Background(), goSession.Credentials{UserID: "broken", Password: "password123"})
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)
}

func TestFileDirectoryLoadsAndReloads(t *testing.T) {
	h := fastHasher(t)
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteFile(path, demoUsers(t, h)[:1]))

	var reloads atomic.Int32
	d, err := OpenFileDirectory(FileConfig{
		Path:        path,
		Hasher:      h,
		ReloadDelay: 20 * time.Millisecond,
		OnReload:    func(int, error) { reloads.Add(1) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	assert.Equal(t, 1, d.Len())

	require.NoError(t, WriteFile(path, demoUsers(t, h)))
	require.Eventually(t, func() bool { return d.Len() == 3 }, 5*time.Second, 10*time.Millisecond)

	assert.Positive(t, reloads.Load())

	p, err := d.ResolveIdentity(context.Background(), goSession.Credentials{UserID: "admin", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Identity)
}

func TestFileDirectoryKeepsTableOnBadFile(t *testing.T) {
	h := fastHasher(t)
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteFile(path, demoUsers(t, h)))

	d, err := OpenFileDirectory(FileConfig{Path: path, Hasher: h, ReloadDelay: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Error(t, d.Reload())
	assert.Equal(t, 3, d.Len())

	_, err = d.LookupIdentity(context.Background(), "john")
	assert.NoError(t, err)
}

func TestOpenFileDirectoryErrors(t *testing.T) {
	_, err := OpenFileDirectory(FileConfig{})
	assert.Error(t, err)

	_, err = OpenFileDirectory(FileConfig{Path: filepath.Join(t.TempDir(), "missing.json"), Hasher: fastHasher(t)})
	assert.Error(t, err)

	dup := filepath.Join(t.TempDir(), "dup.json")
	require.NoError(t, WriteFile(dup, []User{{ID: "a", PasswordHash: "x"}, {ID: "a", PasswordHash: "y"}}))
	_, err = OpenFileDirectory(FileConfig{Path: dup, Hasher: fastHasher(t)})
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestFileDirectoryCloseIsIdempotent(t *testing.T) {
	h := fastHasher(t)
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteFile(path, demoUsers(t, h)))

	d, err := OpenFileDirectory(FileConfig{Path: path, Hasher: h})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func newRedisDirectory(t *testing.T) (*RedisDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	d, err := NewRedisDirectory(context.Background(), client, "", fastHasher(t))
	require.NoError(t, err)
	return d, mr
}

func TestRedisDirectoryPutResolveDelete(t *testing.T) {
	d, mr := newRedisDirectory(t)
	ctx := context.Background()
	for _, u := range demoUsers(t, fastHasher(t)) {
		require.NoError(t, d.Put(ctx, u))
	}

	assert.Equal(t, "ADMIN,USER", mr.HGet("gs:user:admin", "roles"))

	p, err := d.ResolveIdentity(ctx, goSession.Credentials{UserID: "admin", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "USER"}, p.Roles)

	_, err = d.ResolveIdentity(ctx, goSession.Credentials{UserID: "admin", Password: "password123"})
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)

	require.NoError(t, d.Delete(ctx, "admin"))
	_, err = d.LookupIdentity(ctx, "admin")
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)
}

func TestRedisDirectoryUnavailable(t *testing.T) {
	d, mr := newRedisDirectory(t)
	mr.Close()

	_, err := d.LookupIdentity(context.Background(), "john")
	assert.ErrorIs(t, err, goSession.ErrIdentityUnavailable)
	assert.NotErrorIs(t, err, goSession.ErrInvalidCredentials)
}

func TestNewRedisDirectoryPingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisDirectory(context.Background(), client, "", fastHasher(t))
	assert.Error(t, err)
}

func TestSplitRoles(t *testing.T) {
	assert.Nil(t, splitRoles(""))
	assert.Equal(t, []string{"ADMIN", "USER"}, splitRoles("ADMIN, USER,"))
}

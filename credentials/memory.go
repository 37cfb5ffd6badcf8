package credentials

import (
	"context"
	"sync"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

// MemoryDirectory is a fixed in-process user table.
type MemoryDirectory struct {
	v     *verifier
	mu    sync.RWMutex
	users map[string]User
}

var _ goSession.IdentityResolver = (*MemoryDirectory)(nil)

// NewMemoryDirectory returns a directory holding users. A nil hasher selects
// password.Default.
func NewMemoryDirectory(h password.Hasher, users ...User) (*MemoryDirectory, error) {
	v, err := newVerifier(h)
	if err != nil {
		return nil, err
	}
	d := &MemoryDirectory{v: v, users: make(map[string]User, len(users))}
	for _, u := range users {
		if err := d.Put(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Put adds or replaces a user.
func (d *MemoryDirectory) Put(u User) error {
	if err := u.validate(); err != nil {
		return err
	}
	u.Roles = append([]string(nil), u.Roles...)
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) Delete(id string) {
	d.mu.Lock()
	delete(d.users, id)
	d.mu.Unlock()
}

func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *MemoryDirectory) ResolveIdentity(ctx context.Context, creds goSession.Credentials) (goSession.Principal, error) {
	return resolve(ctx, d.v, d.get, creds)
}

func (d *MemoryDirectory) LookupIdentity(ctx context.Context, identity string) (goSession.Principal, error) {
	return lookup(ctx, d.get, identity)
}

func (d *MemoryDirectory) get(_ context.Context, id string) (User, bool, error) {
	d.mu.RLock()
	u, ok := d.users[id]
	d.mu.RUnlock()
	return u, ok, nil
}

// replace swaps the whole table. Used by FileDirectory reloads.
func (d *MemoryDirectory) replace(users map[string]User) {
	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
}

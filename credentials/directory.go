package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

// ErrInvalidUser is returned by Put for a record that cannot be stored.
var ErrInvalidUser = errors.New("invalid user record")

// dummyPassword is hashed once per directory so lookups of unknown users
// spend the same verification work as known ones.
const dummyPassword = "gosession-unknown-user"

// User is one directory record. PasswordHash is an argon2id PHC string or a
// bcrypt hash.
type User struct {
	ID           string   `json:"id"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
}

func (u User) validate() error {
	if strings.TrimSpace(u.ID) == "" || u.ID != strings.TrimSpace(u.ID) {
		return fmt.Errorf("%w: id must be non-empty without surrounding spaces", ErrInvalidUser)
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: %s has no password hash", ErrInvalidUser, u.ID)
	}
	return nil
}

func (u User) principal() goSession.Principal {
	return goSession.Principal{
		Identity: u.ID,
		Roles:    append([]string(nil), u.Roles...),
	}
}

// verifier checks passwords for every directory implementation.
type verifier struct {
	hasher    password.Hasher
	dummyHash string
}

func newVerifier(h password.Hasher) (*verifier, error) {
	if h == nil {
		h = password.Default()
	}
	dummy, err := h.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &verifier{hasher: h, dummyHash: dummy}, nil
}

// check returns the principal for u when pw matches. Unknown users and
// wrong passwords return the same error.
func (v *verifier) check(u User, found bool, pw string) (goSession.Principal, error) {
	if !found {
		_, _ = v.hasher.Verify(pw, v.dummyHash)
		return goSession.Principal{}, goSession.ErrInvalidCredentials
	}
	ok, err := v.hasher.Verify(pw, u.PasswordHash)
	if err != nil {
		return goSession.Principal{}, fmt.Errorf("%w: stored hash unusable: %v", goSession.ErrInvalidCredentials, err)
	}
	if !ok {
		return goSession.Principal{}, goSession.ErrInvalidCredentials
	}
	return u.principal(), nil
}

// lookupFunc adapts a record getter to the resolver interface.
type lookupFunc func(ctx context.Context, id string) (User, bool, error)

func resolve(ctx context.Context, v *verifier, get lookupFunc, creds goSession.Credentials) (goSession.Principal, error) {
	u, found, err := get(ctx, creds.UserID)
	if err != nil {
		return goSession.Principal{}, err
	}
	return v.check(u, found, creds.Password)
}

func lookup(ctx context.Context, get lookupFunc, identity string) (goSession.Principal, error) {
	u, found, err := get(ctx, identity)
	if err != nil {
		return goSession.Principal{}, err
	}
	if !found {
		return goSession.Principal{}, goSession.ErrInvalidCredentials
	}
	return u.principal(), nil
}

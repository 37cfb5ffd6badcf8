package password

import "errors"

// MinPasswordBytes is the shortest password Hash accepts.
const MinPasswordBytes = 8

var (
	// ErrPasswordTooShort is returned by Hash for passwords under MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrInvalidHash reports a stored hash that cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrUnsupportedHash reports a stored hash in a format no hasher handles.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Hasher hashes and verifies passwords in one encoding.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
	Handles(encodedHash string) bool
}

// Chain hashes with its first hasher and verifies with whichever hasher
// recognizes the stored encoding.
type Chain struct {
	hashers []Hasher
}

// NewChain returns a Chain. The first hasher is the preferred one.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{hashers: append([]Hasher{primary}, legacy...)}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.hashers[0].Hash(password)
}

func (c *Chain) Verify(password, encodedHash string) (bool, error) {
	for _, h := range c.hashers {
		if h.Handles(encodedHash) {
			return h.Verify(password, encodedHash)
		}
	}
	return false, ErrUnsupportedHash
}

// NeedsUpgrade is true for any hash not produced by the primary hasher.
func (c *Chain) NeedsUpgrade(encodedHash string) (bool, error) {
	if c.hashers[0].Handles(encodedHash) {
		return c.hashers[0].NeedsUpgrade(encodedHash)
	}
	if !c.Handles(encodedHash) {
		return false, ErrUnsupportedHash
	}
	return true, nil
}

func (c *Chain) Handles(encodedHash string) bool {
	for _, h := range c.hashers {
		if h.Handles(encodedHash) {
			return true
		}
	}
	return false
}

// Default returns an Argon2id primary hasher that also verifies bcrypt hashes.
func Default() *Chain {
	a, _ := NewArgon2(DefaultArgon2Config())
	b, _ := NewBcrypt(0)
	return NewChain(a, b)
}

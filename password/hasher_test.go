package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	hash, err := b.Hash("adminpass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !b.Handles(hash) {
		t.Fatalf("expected bcrypt prefix, got %s", hash)
	}
	if ok, err := b.Verify("adminpass", hash); err != nil || !ok {
		t.Fatalf("expected verify success: ok=%v err=%v", ok, err)
	}
	if ok, err := b.Verify("adminpass!", hash); err != nil || ok {
		t.Fatalf("expected verify mismatch: ok=%v err=%v", ok, err)
	}
	if _, err := b.Verify("adminpass", "$2a$garbage"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestChainVerifiesLegacyAndFlagsUpgrade(t *testing.T) {
	a, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	chain := NewChain(a, b)

	legacy, err := b.Hash("password123")
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	if ok, err := chain.Verify("password123", legacy); err != nil || !ok {
		t.Fatalf("expected chain to verify bcrypt hash: ok=%v err=%v", ok, err)
	}
	if up, err := chain.NeedsUpgrade(legacy); err != nil || !up {
		t.Fatalf("expected bcrypt hash to need upgrade: up=%v err=%v", up, err)
	}

	current, err := chain.Hash("password123")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if !a.Handles(current) {
		t.Fatalf("expected primary hasher output, got %s", current)
	}
	if up, err := chain.NeedsUpgrade(current); err != nil || up {
		t.Fatalf("expected current hash not to need upgrade: up=%v err=%v", up, err)
	}

	if _, err := chain.Verify("password123", "md5:abc"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

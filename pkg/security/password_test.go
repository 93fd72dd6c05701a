package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/user-directory/pkg/config"
	"github.com/angelmondragon/user-directory/pkg/security"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := config.PasswordConfig{BcryptCost: bcrypt.MinCost}

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("expected bcrypt hash with cost 4, got %q", hash)
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	if !errors.Is(err, security.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestHasherClampsCost(t *testing.T) {
	if got := security.NewHasher(config.PasswordConfig{BcryptCost: 1}).Cost(); got != bcrypt.MinCost {
		t.Fatalf("expected min cost, got %d", got)
	}
	if got := security.NewHasher(config.PasswordConfig{BcryptCost: 99}).Cost(); got != bcrypt.MaxCost {
		t.Fatalf("expected max cost, got %d", got)
	}
	if got := (security.Hasher{}).Cost(); got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost for zero hasher, got %d", got)
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := security.NewHasher(config.PasswordConfig{BcryptCost: 4}).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashRejectsPasswordOverByteLimit(t *testing.T) {
	hasher := security.NewHasher(config.PasswordConfig{BcryptCost: 4})

	// 40 two-byte runes: under 72 characters, over 72 bytes
	long := strings.Repeat("é", 40)
	if _, err := hasher.Hash(long); !errors.Is(err, security.ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if _, err := hasher.Hash(strings.Repeat("a", security.MaxPasswordBytes)); err != nil {
		t.Fatalf("72 byte password should hash: %v", err)
	}
}

package security_test

import (
	"strings"
	"testing"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/security"
)

func cheapConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := security.NewHasher(cheapConfig())

	hash, err := hasher.Hash("very-secure-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := hasher.Verify("very-secure-password", hash)
	if err != nil {
		t.Fatalf("Verify returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("Verify failed for the correct password")
	}

	ok, err = hasher.Verify("bogus-password", hash)
	if err != nil {
		t.Fatalf("Verify returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("Verify returned true for incorrect password")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := security.NewHasher(cheapConfig()).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	hasher := security.NewHasher(cheapConfig())
	for _, encoded := range []string{"not-a-hash", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=19$m=8,t=1,p=1$c2FsdA$"} {
		if _, err := hasher.Verify("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := security.NewHasher(cheapConfig())
	hash, err := weak.Hash("password123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("hash made with current params should not need rehash")
	}

	stronger := cheapConfig()
	stronger.ArgonTime = 2
	if !security.NewHasher(stronger).NeedsRehash(hash) {
		t.Fatal("expected rehash when time cost increases")
	}
	if !weak.NeedsRehash("garbage") {
		t.Fatal("malformed hashes always need rehash")
	}
}

func TestRandomPassword(t *testing.T) {
	pw, err := security.RandomPassword(20)
	if err != nil {
		t.Fatalf("RandomPassword returned error: %v", err)
	}
	if len(pw) != 20 {
		t.Fatalf("expected 20 characters, got %d", len(pw))
	}
	if strings.ContainsAny(pw, "0O1lI") {
		t.Fatalf("password contains look-alike characters: %q", pw)
	}
	if _, err := security.RandomPassword(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

package service_test

import (
	"testing"

	"github.com/vantage-solutions/ms-go-accounts/app/service"
)

func TestHashPassword(t *testing.T) {
	digest, err := service.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if digest == "secret1" {
		t.Fatalf("digest must not equal the plaintext")
	}
	if !service.CheckPassword("secret1", digest) {
		t.Fatalf("expected digest to verify against original password")
	}
	if service.CheckPassword("secret2", digest) {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := service.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := service.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected different digests for the same password")
	}
}

func TestCheckPasswordFailsClosed(t *testing.T) {
	if service.CheckPassword("secret1", "not-a-bcrypt-digest") {
		t.Fatalf("expected malformed digest to read as no match")
	}
	if service.CheckPassword("secret1", "") {
		t.Fatalf("expected empty digest to read as no match")
	}
}

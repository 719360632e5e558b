package utils

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not be the plain password")
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Fatal("matching password rejected")
	}
	if VerifyPassword(hash, "correct horsE") {
		t.Fatal("wrong password accepted")
	}
	if VerifyPassword("", "correct horse") {
		t.Fatal("empty hash must never match")
	}
}

func TestHashPasswordLength(t *testing.T) {
	for _, pw := range []string{"", "short", strings.Repeat("x", MaxPasswordLen+1)} {
		if _, err := HashPassword(pw, bcrypt.MinCost); !errors.Is(err, ErrPasswordLength) {
			t.Errorf("len %d: err = %v", len(pw), err)
		}
	}
}

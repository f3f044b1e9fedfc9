package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter22" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "hunter23") {
		t.Fatalf("wrong password accepted")
	}
}

package member

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func testCredentialYAML(t *testing.T) []byte {
	return []byte(fmt.Sprintf(`coordinators:
  - username: TC@example.org
    name: Pat Coordinator
    password_hash: %q
admins:
  - username: admin
    name: Console Admin
    password_hash: %q
`, mustHash(t, "coordinator-pass"), mustHash(t, "admin-pass-123")))
}

func TestParseCredentials_VerifyCoordinator(t *testing.T) {
	s, err := ParseCredentials(testCredentialYAML(t))
	if err != nil {
		t.Fatalf("ParseCredentials() error: %v", err)
	}
	ctx := context.Background()
	if !s.Verify(ctx, "tc@example.org", nil, "coordinator-pass") {
		t.Error("expected coordinator credential to verify")
	}
	if s.Verify(ctx, "tc@example.org", nil, "wrong") {
		t.Error("expected wrong password to fail")
	}
	if s.Verify(ctx, "nobody@example.org", nil, "coordinator-pass") {
		t.Error("expected unknown coordinator to fail")
	}
	if s.Verify(ctx, "tc@example.org", nil, "") {
		t.Error("expected empty password to fail")
	}
	if s.CoordinatorName("tc@example.org") != "Pat Coordinator" {
		t.Errorf("unexpected name %q", s.CoordinatorName("tc@example.org"))
	}
}

func TestParseCredentials_VerifyAdmin(t *testing.T) {
	s, err := ParseCredentials(testCredentialYAML(t))
	if err != nil {
		t.Fatalf("ParseCredentials() error: %v", err)
	}
	a, ok := s.VerifyAdmin("admin", "admin-pass-123")
	if !ok || a.Name != "Console Admin" {
		t.Errorf("expected admin to verify, got %v %v", a, ok)
	}
	if _, ok := s.VerifyAdmin("admin", "nope"); ok {
		t.Error("expected wrong admin password to fail")
	}
}

func TestParseCredentials_RejectsPlainPassword(t *testing.T) {
	_, err := ParseCredentials([]byte("admins:\n  - username: admin\n    password_hash: hunter2\n"))
	if err == nil {
		t.Fatal("expected error for non-bcrypt hash")
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for short password")
	}
	h, err := HashPassword("long-enough-password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("long-enough-password")) != nil {
		t.Error("hash does not verify")
	}
}

func TestDummyHashMatchesStoredCost(t *testing.T) {
	h, err := HashPassword("long-enough-password")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := bcrypt.Cost([]byte(h))
	got, err := bcrypt.Cost(dummyHash)
	if err != nil {
		t.Fatalf("dummy hash is not a bcrypt hash: %v", err)
	}
	if got != want {
		t.Errorf("dummy hash cost %d, stored hashes use %d", got, want)
	}
}

package member

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// UserCredential is one entry of the credentials file.
type UserCredential struct {
	Username     string `yaml:"username"`
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`
}

type credentialFile struct {
	Coordinators []UserCredential `yaml:"coordinators"`
	Admins       []UserCredential `yaml:"admins"`
}

// CredentialStore holds per-user bcrypt hashes for coordinators (keyed by
// email) and console admins (keyed by username). It is the default
// CredentialPolicy.
type CredentialStore struct {
	coordinators map[string]UserCredential
	admins       map[string]UserCredential
}

// dummyHash keeps the cost of a failed lookup equal to a failed compare.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused-password"), bcrypt.DefaultCost)

// LoadCredentials reads a YAML credentials file:
//
//	coordinators:
//	  - username: tc@example.org
//	    name: Pat Coordinator
//	    password_hash: $2a$10$...
//	admins:
//	  - username: admin
//	    password_hash: $2a$10$...
func LoadCredentials(path string) (*CredentialStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	return ParseCredentials(data)
}

func ParseCredentials(data []byte) (*CredentialStore, error) {
	var f credentialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	s := &CredentialStore{
		coordinators: make(map[string]UserCredential, len(f.Coordinators)),
		admins:       make(map[string]UserCredential, len(f.Admins)),
	}
	for _, c := range f.Coordinators {
		if err := checkEntry(c); err != nil {
			return nil, fmt.Errorf("coordinator %q: %w", c.Username, err)
		}
		s.coordinators[strings.ToLower(strings.TrimSpace(c.Username))] = c
	}
	for _, a := range f.Admins {
		if err := checkEntry(a); err != nil {
			return nil, fmt.Errorf("admin %q: %w", a.Username, err)
		}
		s.admins[strings.TrimSpace(a.Username)] = a
	}
	return s, nil
}

func checkEntry(c UserCredential) error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if _, err := bcrypt.Cost([]byte(c.PasswordHash)); err != nil {
		return fmt.Errorf("password_hash is not a bcrypt hash")
	}
	return nil
}

// Verify implements CredentialPolicy.
func (s *CredentialStore) Verify(_ context.Context, coordinatorEmail string, _ *Member, credential string) bool {
	c, ok := s.coordinators[strings.ToLower(strings.TrimSpace(coordinatorEmail))]
	return compare(c.PasswordHash, ok, credential)
}

// VerifyAdmin checks a console admin's username and password.
func (s *CredentialStore) VerifyAdmin(username, password string) (*UserCredential, bool) {
	a, ok := s.admins[strings.TrimSpace(username)]
	if !compare(a.PasswordHash, ok, password) {
		return nil, false
	}
	return &a, true
}

// CoordinatorName returns the display name recorded for a coordinator.
func (s *CredentialStore) CoordinatorName(email string) string {
	return s.coordinators[strings.ToLower(strings.TrimSpace(email))].Name
}

func compare(hash string, found bool, password string) bool {
	if !found || password == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword returns a bcrypt hash suitable for the credentials file.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

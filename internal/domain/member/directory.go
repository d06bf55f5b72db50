package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrMemberNotFound is an ordinary lookup miss, not a fault.
	ErrMemberNotFound = errors.New("member not found")
	// ErrRosterUnavailable wraps any failure to read or parse the roster.
	ErrRosterUnavailable = errors.New("member roster is unavailable")
	ErrAuthFailed        = errors.New("invalid credentials")
)

// ValidationError reports a malformed Medicaid ID at login.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// CredentialPolicy decides whether a coordinator may open a session for a
// member. Implementations must not reveal why a check failed.
type CredentialPolicy interface {
	Verify(ctx context.Context, coordinatorEmail string, m *Member, credential string) bool
}

// Directory serves member lookups from a cached roster. The cache is
// refreshed when the roster file's modification time changes; a failed
// refresh keeps serving the last good copy.
type Directory struct {
	source RosterSource
	policy CredentialPolicy
	logger zerolog.Logger

	mu      sync.RWMutex
	members map[string]*Member
	modTime time.Time
}

func NewDirectory(source RosterSource, policy CredentialPolicy, logger zerolog.Logger) *Directory {
	return &Directory{source: source, policy: policy, logger: logger}
}

// FindMember does a case-insensitive exact match on the Medicaid ID.
func (d *Directory) FindMember(ctx context.Context, medicaidID string) (*Member, error) {
	members, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := members[NormalizeMedicaidID(medicaidID)]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

// Authenticate validates the Medicaid ID format, resolves the member, checks
// the member is assigned to the coordinator and verifies the credential.
func (d *Directory) Authenticate(ctx context.Context, coordinatorEmail, medicaidID, credential string) (*Member, error) {
	if ok, reason := ValidateMedicaidID(medicaidID); !ok {
		return nil, &ValidationError{Reason: reason}
	}
	coordinatorEmail = strings.TrimSpace(coordinatorEmail)
	if coordinatorEmail == "" {
		return nil, &ValidationError{Reason: "coordinator email is required"}
	}

	m, err := d.FindMember(ctx, medicaidID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(m.CoordinatorEmail, coordinatorEmail) {
		d.logger.Info().
			Str("medicaid_id", m.MedicaidID).
			Str("coordinator_email", coordinatorEmail).
			Msg("login for member not assigned to coordinator")
		return nil, ErrAuthFailed
	}
	if d.policy == nil || !d.policy.Verify(ctx, coordinatorEmail, m, credential) {
		return nil, ErrAuthFailed
	}
	return m, nil
}

// Count returns the number of members in the current roster.
func (d *Directory) Count(ctx context.Context) (int, error) {
	members, err := d.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (d *Directory) snapshot(ctx context.Context) (map[string]*Member, error) {
	mod, statErr := d.source.ModTime()

	d.mu.RLock()
	cached, cachedMod := d.members, d.modTime
	d.mu.RUnlock()
	if cached != nil && statErr == nil && mod.Equal(cachedMod) {
		return cached, nil
	}

	list, err := d.source.Load(ctx)
	if err != nil {
		if cached != nil {
			d.logger.Warn().Err(err).Msg("roster reload failed, serving cached copy")
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRosterUnavailable, err)
	}

	members := make(map[string]*Member, len(list))
	for _, m := range list {
		if _, dup := members[m.MedicaidID]; dup {
			d.logger.Warn().Str("medicaid_id", m.MedicaidID).Msg("duplicate roster row, keeping first")
			continue
		}
		members[m.MedicaidID] = m
	}

	d.mu.Lock()
	d.members = members
	d.modTime = mod
	d.mu.Unlock()
	d.logger.Info().Int("members", len(members)).Msg("roster loaded")
	return members, nil
}

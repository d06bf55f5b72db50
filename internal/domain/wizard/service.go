package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/member"
)

// ErrDateLocked is returned when a new service date is requested after the
// session became active.
var ErrDateLocked = errors.New("service date is fixed for an active session")

// EntryRecorder persists completed entries and answers the duplicate check.
type EntryRecorder interface {
	Recorder
	Record(ctx context.Context, e *logentry.LogEntry) (int, error)
}

// MemberLookup resolves the member a session is opened for.
type MemberLookup interface {
	FindMember(ctx context.Context, medicaidID string) (*member.Member, error)
}

type Service struct {
	sessions *SessionStore
	guard    *Guard
	records  EntryRecorder
	members  MemberLookup
	rules    Rules
	logger   zerolog.Logger
}

func NewService(sessions *SessionStore, records EntryRecorder, members MemberLookup, rules Rules, logger zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		guard:    NewGuard(records, logger),
		records:  records,
		members:  members,
		rules:    rules,
		logger:   logger,
	}
}

func demographics(m *member.Member) Demographics {
	return Demographics{
		MedicaidID:       m.MedicaidID,
		MemberName:       m.FullName,
		MemberID:         m.MemberID,
		MemberDOB:        m.DateOfBirth,
		CoordinatorName:  m.CoordinatorName,
		CoordinatorEmail: m.CoordinatorEmail,
	}
}

// Start opens a session for the member on serviceDate. The duplicate check
// runs here and only here.
func (s *Service) Start(ctx context.Context, owner, medicaidID string, serviceDate time.Time) (*Session, error) {
	if serviceDate.IsZero() {
		return nil, FieldErrors{"service_date": "is required"}
	}
	m, err := s.members.FindMember(ctx, medicaidID)
	if err != nil {
		return nil, err
	}
	day := time.Date(serviceDate.Year(), serviceDate.Month(), serviceDate.Day(), 0, 0, 0, 0, time.UTC)

	result := s.guard.Check(ctx, m.MedicaidID, day)
	status := StatusActive
	if result == DuplicateFound {
		status = StatusAwaitingConfirmation
	}
	sess := s.sessions.Create(owner, status, result.String(), NewState(demographics(m), day))
	s.logger.Info().
		Str("session_id", sess.ID).
		Str("medicaid_id", m.MedicaidID).
		Str("guard", sess.Guard).
		Msg("wizard session started")
	return sess, nil
}

func (s *Service) load(owner, id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.Owner != owner {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) Get(owner, id string) (*Session, error) {
	return s.load(owner, id)
}

// Confirm resolves a duplicate warning. With proceed set the session becomes
// active on the same date; otherwise the guard runs again for newDate.
func (s *Service) Confirm(ctx context.Context, owner, id string, proceed bool, newDate time.Time) (*Session, error) {
	sess, err := s.load(owner, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusAwaitingConfirmation {
		return nil, ErrDateLocked
	}
	if proceed {
		sess.Status = StatusActive
	} else {
		if newDate.IsZero() {
			return nil, FieldErrors{"service_date": "a new date is required"}
		}
		day := time.Date(newDate.Year(), newDate.Month(), newDate.Day(), 0, 0, 0, 0, time.UTC)
		result := s.guard.Check(ctx, sess.State.Draft.Member.MedicaidID, day)
		sess.Guard = result.String()
		sess.State.ServiceDate = day
		if result == Clean {
			sess.Status = StatusActive
		}
	}
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// apply runs one event against an active session and stores the result.
func (s *Service) apply(owner, id string, ev Event) (*Session, State, Effect, error) {
	sess, err := s.load(owner, id)
	if err != nil {
		return nil, State{}, EffectNone, err
	}
	switch sess.Status {
	case StatusActive:
	case StatusSubmitting:
		return nil, State{}, EffectNone, ErrSubmitInProgress
	default:
		return nil, State{}, EffectNone, ErrAwaitingConfirmation
	}
	next, effect, err := Advance(sess.State, ev, s.rules)
	if err != nil {
		return nil, State{}, EffectNone, err
	}
	return sess, next, effect, nil
}

func (s *Service) SelectCategory(owner, id, category string) (*Session, error) {
	sess, next, _, err := s.apply(owner, id, SelectCategory{Category: category})
	if err != nil {
		return nil, err
	}
	sess.State = next
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Back(owner, id string) (*Session, error) {
	sess, next, _, err := s.apply(owner, id, Back{})
	if err != nil {
		return nil, err
	}
	sess.State = next
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Submit validates and merges one section. When the note is complete it is
// assembled and recorded and the session ends; the stored entry is returned.
// The session is claimed before the entry is recorded, so a concurrent final
// submit fails with ErrSubmitInProgress. A failed save keeps the merged draft
// so the same submit can be retried.
func (s *Service) Submit(ctx context.Context, owner, id string, section Section, p Payload) (*Session, *logentry.IndexedEntry, error) {
	sess, next, effect, err := s.apply(owner, id, Submit{Section: section, Payload: p})
	if err != nil {
		return nil, nil, err
	}
	sess.State = next
	if effect != EffectPersist {
		if err := s.sessions.Update(sess); err != nil {
			return nil, nil, err
		}
		return sess, nil, nil
	}

	entry, err := Assemble(next)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Claim(sess.ID); err != nil {
		return nil, nil, err
	}
	idx, err := s.records.Record(ctx, entry)
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_id", sess.ID).
			Str("medicaid_id", entry.MedicaidID).
			Msg("persist log entry")
		if uerr := s.sessions.Release(sess); uerr != nil {
			return nil, nil, uerr
		}
		return sess, nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	s.sessions.Delete(sess.ID)
	s.logger.Info().
		Str("session_id", sess.ID).
		Int("index", idx).
		Str("medicaid_id", entry.MedicaidID).
		Str("note_category", entry.NoteCategory).
		Msg("log entry recorded")
	return sess, &logentry.IndexedEntry{Index: idx, LogEntry: entry}, nil
}

func (s *Service) Abandon(owner, id string) error {
	if _, err := s.load(owner, id); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}

package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/ics"
	"github.com/example/semesterplan/internal/internaltypes"
	"github.com/example/semesterplan/internal/logger"
)

// Import outcome labels, used for metrics and the audit trail.
const (
	StatusSuccess   = "success"
	StatusMalformed = "malformed"
	StatusForbidden = "forbidden"
	StatusFailed    = "failed"
)

type Upload struct {
	Filename string
	Body     []byte
}

// Summary is what the caller sees after a successful import.
type Summary struct {
	// Updated is the number of reservations committed.
	Updated int
	// Failed lists correlation keys that did not resolve to a reservation.
	Failed []string
	// Events is the number of VEVENT blocks in the document.
	Events int
	// Skipped counts events that contributed no interval.
	Skipped int
}

// Run is one recorded import.
type Run struct {
	ID        string
	UserID    int64
	Username  string
	Filename  string
	Updated   int
	Failed    []string
	Events    int
	Skipped   int
	CreatedAt time.Time
}

// History keeps an audit trail of completed imports.
type History interface {
	RecordRun(ctx context.Context, run Run) error
}

// Recorder receives import metrics.
type Recorder interface {
	ObserveImport(status string, d time.Duration)
	AddEvents(parsed, skipped int)
	AddReservations(updated, unresolved int)
}

// Service runs the whole import pipeline for an already identified user:
// parse, reconcile, commit once, record.
type Service struct {
	Parser *ics.Parser
	Lookup Lookup
	Store  Store

	// History and Metrics are optional.
	History History
	Metrics Recorder

	Log logger.Logger
}

func (s *Service) Import(ctx context.Context, actor user.User, up Upload) (Summary, error) {
	start := time.Now()
	log := s.Log.With("user", actor.Username, "file", up.Filename)

	g, err := s.Parser.ParseAndGroup(up.Body)
	if err != nil {
		log.Error("error processing the ICS file", "error", err)
		s.observe(StatusMalformed, start)
		return Summary{}, err
	}
	if s.Metrics != nil {
		s.Metrics.AddEvents(g.Events, len(g.Skipped))
	}
	if len(g.Skipped) > 0 {
		log.Warn("some calendar events were skipped", "skipped", len(g.Skipped), "events", g.Events)
	}

	rec := &Reconciler{Lookup: s.Lookup, Store: s.Store, Log: log}
	out := rec.Reconcile(ctx, g, actor)

	if err := rec.Commit(ctx, out, actor); err != nil {
		if errors.Is(err, internaltypes.ErrForbidden) {
			log.Error("user doesn't have enough rights for storing the imported reservations", "error", err)
			s.observe(StatusForbidden, start)
		} else {
			log.Error("storing imported reservations failed", "error", err)
			s.observe(StatusFailed, start)
		}
		return Summary{}, err
	}

	if len(out.Failed) > 0 {
		log.Warn("failed to resolve the following reservation ids", "keys", strings.Join(out.Failed, ", "))
	}

	sum := Summary{
		Updated: len(out.Store),
		Failed:  out.Failed,
		Events:  g.Events,
		Skipped: len(g.Skipped),
	}

	if s.History != nil {
		run := Run{
			ID:        uuid.NewString(),
			UserID:    actor.ID,
			Username:  actor.Username,
			Filename:  up.Filename,
			Updated:   sum.Updated,
			Failed:    sum.Failed,
			Events:    sum.Events,
			Skipped:   sum.Skipped,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.History.RecordRun(ctx, run); err != nil {
			log.Error("recording import run failed", "error", err)
		}
	}

	if s.Metrics != nil {
		s.Metrics.AddReservations(sum.Updated, len(sum.Failed))
	}
	s.observe(StatusSuccess, start)
	log.Info("import successful", "updated", sum.Updated, "failed", len(sum.Failed))
	return sum, nil
}

// DryRun parses up without touching storage.
func (s *Service) DryRun(up Upload) (ics.ImportGroup, error) {
	return s.Parser.ParseAndGroup(up.Body)
}

func (s *Service) observe(status string, start time.Time) {
	if s.Metrics != nil {
		s.Metrics.ObserveImport(status, time.Since(start))
	}
}

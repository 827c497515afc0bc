package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/semesterplan/internal/domain/reservation"
	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/ics"
	"github.com/example/semesterplan/internal/internaltypes"
	"github.com/example/semesterplan/internal/logger"
)

// Lookup resolves a reservation reference to an editable copy.
// It returns internaltypes.ErrNotFound when nothing matches.
type Lookup interface {
	Edit(ctx context.Context, ref reservation.Ref) (*reservation.Reservation, error)
}

// Store persists reservations as one unit. It returns
// internaltypes.ErrForbidden when actor may not write one of them.
type Store interface {
	StoreAndRemove(ctx context.Context, store, remove []*reservation.Reservation, actor user.User) error
}

// Outcome is the result of reconciling one import. Store and Failed are
// independent: committing only ever looks at Store.
type Outcome struct {
	Store  []*reservation.Reservation
	Failed []string
}

type Reconciler struct {
	Lookup Lookup
	Store  Store
	Log    logger.Logger
}

// Reconcile replaces the appointments of every resolvable reservation in g
// with the imported intervals. Keys that cannot be resolved are collected in
// Outcome.Failed and do not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, g ics.ImportGroup, actor user.User) Outcome {
	var out Outcome
	for _, grp := range g.Groups {
		res, err := r.Lookup.Edit(ctx, reservation.Ref(grp.Key))
		if err != nil {
			out.Failed = append(out.Failed, grp.Key)
			if errors.Is(err, internaltypes.ErrNotFound) {
				r.Log.Error("reservation not found for imported key", "key", grp.Key)
			} else {
				r.Log.Error("reservation lookup failed", "key", grp.Key, "error", err)
			}
			continue
		}

		appts := make([]reservation.Appointment, 0, len(grp.Intervals))
		for _, iv := range grp.Intervals {
			appts = append(appts, reservation.NewAppointment(iv.Start, iv.End, actor))
		}
		res.ReplaceAppointments(appts)

		out.Store = append(out.Store, res)
		r.Log.Info("replaced reservation appointments from imported calendar",
			"key", grp.Key, "appointments", len(appts))
	}
	return out
}

// Commit hands every reconciled reservation to the store in a single call.
// Nothing is removed.
func (r *Reconciler) Commit(ctx context.Context, out Outcome, actor user.User) error {
	if err := r.Store.StoreAndRemove(ctx, out.Store, nil, actor); err != nil {
		if errors.Is(err, internaltypes.ErrForbidden) {
			return err
		}
		return fmt.Errorf("store reservations: %w", err)
	}
	return nil
}

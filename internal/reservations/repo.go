package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/semesterplan/internal/db"
	"github.com/example/semesterplan/internal/domain/reservation"
	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/internaltypes"
)

// database is the part of *db.DB the repository needs.
type database interface {
	QueryRow(ctx context.Context, sql string, args ...any) db.Row
	Query(ctx context.Context, sql string, args ...any) (db.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) error
	InTx(ctx context.Context, fn func(tx db.Tx) error) error
}

type Repo struct{ db database }

func NewRepo(d database) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, res reservation.Reservation) error {
	res.Name = strings.TrimSpace(res.Name)
	if res.ID == "" || res.Name == "" {
		return errors.New("reservation id and name are required")
	}
	return r.db.Exec(ctx, `INSERT INTO reservations(id, name, owner_id) VALUES ($1,$2,$3)`,
		string(res.ID), res.Name, res.OwnerID)
}

// Listing is a reservation without its appointments.
type Listing struct {
	reservation.Reservation
	AppointmentCount int
}

// List returns every reservation, newest first.
func (r *Repo) List(ctx context.Context) ([]Listing, error) {
	rows, err := r.db.Query(ctx, `
SELECT r.id, r.name, r.owner_id, r.created_at, r.updated_at,
       (SELECT count(*) FROM appointments a WHERE a.reservation_id = r.id)
FROM reservations r
ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		var id string
		if err := rows.Scan(&id, &l.Name, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt, &l.AppointmentCount); err != nil {
			return nil, err
		}
		l.ID = reservation.Ref(id)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Edit loads the reservation identified by ref together with its
// appointments. The returned value is a private copy; nothing is written
// until StoreAndRemove.
func (r *Repo) Edit(ctx context.Context, ref reservation.Ref) (*reservation.Reservation, error) {
	res := &reservation.Reservation{ID: ref}
	err := r.db.QueryRow(ctx, `SELECT name, owner_id, created_at, updated_at FROM reservations WHERE id=$1`, string(ref)).
		Scan(&res.Name, &res.OwnerID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}

	rows, err := r.db.Query(ctx, `
SELECT id, starts_at, ends_at, owner_id, created_at
FROM appointments
WHERE reservation_id=$1
ORDER BY starts_at, created_at`, string(ref))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a reservation.Appointment
		if err := rows.Scan(&a.ID, &a.Start, &a.End, &a.OwnerID, &a.CreatedAt); err != nil {
			return nil, err
		}
		res.AddAppointment(a)
	}
	return res, rows.Err()
}

// StoreAndRemove writes every reservation in store and deletes every
// reservation in remove inside a single transaction. If actor may not edit
// one of them nothing is written and internaltypes.ErrForbidden is returned.
func (r *Repo) StoreAndRemove(ctx context.Context, store, remove []*reservation.Reservation, actor user.User) error {
	return r.db.InTx(ctx, func(tx db.Tx) error {
		now := time.Now().UTC()
		for _, res := range store {
			if err := checkOwner(ctx, tx, res.ID, actor); err != nil {
				return err
			}
			if err := tx.Exec(ctx, `DELETE FROM appointments WHERE reservation_id=$1`, string(res.ID)); err != nil {
				return err
			}
			for _, a := range res.Appointments {
				err := tx.Exec(ctx, `
INSERT INTO appointments(id, reservation_id, starts_at, ends_at, owner_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
					a.ID, string(res.ID), a.Start, a.End, a.OwnerID, a.CreatedAt)
				if err != nil {
					return err
				}
			}
			if err := tx.Exec(ctx, `UPDATE reservations SET name=$2, updated_at=$3 WHERE id=$1`, string(res.ID), res.Name, now); err != nil {
				return err
			}
			res.UpdatedAt = now
		}
		for _, res := range remove {
			if err := checkOwner(ctx, tx, res.ID, actor); err != nil {
				return err
			}
			if err := tx.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, string(res.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func checkOwner(ctx context.Context, tx db.Tx, ref reservation.Ref, actor user.User) error {
	var owner int64
	err := tx.QueryRow(ctx, `SELECT owner_id FROM reservations WHERE id=$1 FOR UPDATE`, string(ref)).Scan(&owner)
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("reservation %s: %w", ref, internaltypes.ErrNotFound)
		}
		return err
	}
	if !actor.CanEdit(owner) {
		return internaltypes.ErrForbidden
	}
	return nil
}

func (r *Repo) RecordRun(ctx context.Context, run importer.Run) error {
	failed := run.Failed
	if failed == nil {
		failed = []string{}
	}
	return r.db.Exec(ctx, `
INSERT INTO import_runs(id, user_id, username, filename, updated, failed_keys, events, skipped, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.ID, run.UserID, run.Username, run.Filename, run.Updated, failed, run.Events, run.Skipped, run.CreatedAt)
}

// ListRuns returns the most recent import runs, newest first.
func (r *Repo) ListRuns(ctx context.Context, limit int) ([]importer.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id, user_id, username, filename, updated, failed_keys, events, skipped, created_at
FROM import_runs
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []importer.Run
	for rows.Next() {
		var run importer.Run
		if err := rows.Scan(&run.ID, &run.UserID, &run.Username, &run.Filename, &run.Updated, &run.Failed, &run.Events, &run.Skipped, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

package importer_test

import (
	"context"
	"sync"
	"time"

	"github.com/example/semesterplan/internal/domain/reservation"
	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/internaltypes"
)

// memStore is an in-memory Lookup + Store + History.
type memStore struct {
	mu sync.Mutex

	reservations map[reservation.Ref]*reservation.Reservation
	lookupErr    map[reservation.Ref]error
	commitErr    error

	commits [][]*reservation.Reservation
	removes [][]*reservation.Reservation
	runs    []importer.Run
}

func newMemStore(rs ...*reservation.Reservation) *memStore {
	m := &memStore{
		reservations: map[reservation.Ref]*reservation.Reservation{},
		lookupErr:    map[reservation.Ref]error{},
	}
	for _, r := range rs {
		m.reservations[r.ID] = r
	}
	return m
}

func (m *memStore) Edit(_ context.Context, ref reservation.Ref) (*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.lookupErr[ref]; ok {
		return nil, err
	}
	r, ok := m.reservations[ref]
	if !ok {
		return nil, internaltypes.ErrNotFound
	}
	cp := *r
	cp.Appointments = append([]reservation.Appointment(nil), r.Appointments...)
	return &cp, nil
}

func (m *memStore) StoreAndRemove(_ context.Context, store, remove []*reservation.Reservation, _ user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, store)
	m.removes = append(m.removes, remove)
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, r := range store {
		m.reservations[r.ID] = r
	}
	return nil
}

func (m *memStore) RecordRun(_ context.Context, run importer.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

type statusCount map[string]int

// recorder collects metrics calls.
type recorder struct {
	statuses            statusCount
	parsed, skipped     int
	updated, unresolved int
}

func newRecorder() *recorder { return &recorder{statuses: statusCount{}} }

func (r *recorder) ObserveImport(status string, _ time.Duration) { r.statuses[status]++ }
func (r *recorder) AddEvents(parsed, skipped int)                { r.parsed += parsed; r.skipped += skipped }
func (r *recorder) AddReservations(updated, unresolved int) {
	r.updated += updated
	r.unresolved += unresolved
}

func withAppointments(id reservation.Ref, owner user.User, n int) *reservation.Reservation {
	r := &reservation.Reservation{ID: id, Name: string(id), OwnerID: owner.ID}
	base := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s := base.AddDate(0, 0, i)
		r.AddAppointment(reservation.NewAppointment(s, s.Add(time.Hour), owner))
	}
	return r
}

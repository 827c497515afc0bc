package reservation

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/semesterplan/internal/domain/user"
)

// Ref identifies a stored reservation. Imported calendars carry it verbatim
// in their correlation property.
type Ref string

type Appointment struct {
	ID        string
	Start     time.Time
	End       time.Time
	OwnerID   int64
	CreatedAt time.Time
}

// NewAppointment creates an appointment owned by u.
func NewAppointment(start, end time.Time, u user.User) Appointment {
	return Appointment{
		ID:        uuid.NewString(),
		Start:     start,
		End:       end,
		OwnerID:   u.ID,
		CreatedAt: time.Now().UTC(),
	}
}

type Reservation struct {
	ID      Ref
	Name    string
	OwnerID int64

	Appointments []Appointment

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Reservation) AddAppointment(a Appointment) {
	r.Appointments = append(r.Appointments, a)
}

// RemoveAppointment drops the appointment with the given id and reports
// whether it was present.
func (r *Reservation) RemoveAppointment(id string) bool {
	for i, a := range r.Appointments {
		if a.ID == id {
			r.Appointments = append(r.Appointments[:i], r.Appointments[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceAppointments removes every existing appointment, one by one, and
// then adds appts in order.
func (r *Reservation) ReplaceAppointments(appts []Appointment) {
	existing := make([]Appointment, len(r.Appointments))
	copy(existing, r.Appointments)
	for _, a := range existing {
		r.RemoveAppointment(a.ID)
	}
	for _, a := range appts {
		r.AddAppointment(a)
	}
}

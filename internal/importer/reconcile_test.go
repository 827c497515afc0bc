package importer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/ics"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/internaltypes"
	"github.com/example/semesterplan/internal/logger"
)

func interval(day int) ics.Interval {
	s := time.Date(2024, 10, day, 8, 0, 0, 0, time.UTC)
	return ics.Interval{Start: s, End: s.Add(90 * time.Minute)}
}

func TestReconcile(t *testing.T) {
	planner := user.User{ID: 2, Username: "semesterplaner"}
	ctx := context.Background()

	Convey("Given stored reservations with placeholder appointments", t, func() {
		store := newMemStore(
			withAppointments("a", planner, 3),
			withAppointments("b", planner, 1),
			withAppointments("c", planner, 2),
		)
		rec := &importer.Reconciler{Lookup: store, Store: store, Log: logger.Nop()}

		Convey("When a reservation is reconciled against two intervals", func() {
			before := map[string]bool{}
			for _, a := range store.reservations["a"].Appointments {
				before[a.ID] = true
			}

			out := rec.Reconcile(ctx, ics.ImportGroup{Groups: []ics.Group{
				{Key: "a", Intervals: []ics.Interval{interval(1), interval(8)}},
			}}, planner)

			Convey("Then it holds exactly the two new appointments", func() {
				So(out.Failed, ShouldBeEmpty)
				So(out.Store, ShouldHaveLength, 1)
				appts := out.Store[0].Appointments
				So(appts, ShouldHaveLength, 2)
				So(appts[0].Start, ShouldEqual, interval(1).Start)
				So(appts[1].Start, ShouldEqual, interval(8).Start)
				for _, a := range appts {
					So(before[a.ID], ShouldBeFalse)
					So(a.OwnerID, ShouldEqual, planner.ID)
				}
			})

			Convey("And the stored copy is untouched until commit", func() {
				So(store.reservations["a"].Appointments, ShouldHaveLength, 3)
			})
		})

		Convey("When one key of several does not resolve", func() {
			out := rec.Reconcile(ctx, ics.ImportGroup{Groups: []ics.Group{
				{Key: "a", Intervals: []ics.Interval{interval(1)}},
				{Key: "missing", Intervals: []ics.Interval{interval(2)}},
				{Key: "c", Intervals: []ics.Interval{interval(3)}},
			}}, planner)

			Convey("Then the others are still reconciled in key order", func() {
				So(out.Failed, ShouldResemble, []string{"missing"})
				So(out.Store, ShouldHaveLength, 2)
				So(string(out.Store[0].ID), ShouldEqual, "a")
				So(string(out.Store[1].ID), ShouldEqual, "c")
			})
		})

		Convey("When the lookup itself errors for a key", func() {
			store.lookupErr["b"] = errors.New("connection reset")
			out := rec.Reconcile(ctx, ics.ImportGroup{Groups: []ics.Group{
				{Key: "b", Intervals: []ics.Interval{interval(1)}},
				{Key: "c"},
			}}, planner)

			Convey("Then that key is treated as unresolved", func() {
				So(out.Failed, ShouldResemble, []string{"b"})
				So(out.Store, ShouldHaveLength, 1)
			})
		})

		Convey("When a key has no usable intervals", func() {
			out := rec.Reconcile(ctx, ics.ImportGroup{Groups: []ics.Group{{Key: "c"}}}, planner)

			Convey("Then the reservation is still appended, now empty", func() {
				So(out.Store, ShouldHaveLength, 1)
				So(out.Store[0].Appointments, ShouldBeEmpty)
			})
		})

		Convey("When committing an outcome", func() {
			out := rec.Reconcile(ctx, ics.ImportGroup{Groups: []ics.Group{
				{Key: "a", Intervals: []ics.Interval{interval(1)}},
				{Key: "b", Intervals: []ics.Interval{interval(2)}},
				{Key: "nope"},
			}}, planner)
			err := rec.Commit(ctx, out, planner)

			Convey("Then the store receives one batch with no removals", func() {
				So(err, ShouldBeNil)
				So(store.commits, ShouldHaveLength, 1)
				So(store.commits[0], ShouldHaveLength, 2)
				So(store.removes[0], ShouldBeEmpty)
				So(store.reservations["a"].Appointments, ShouldHaveLength, 1)
			})
		})

		Convey("When the store refuses the write", func() {
			store.commitErr = internaltypes.ErrForbidden
			err := rec.Commit(ctx, importer.Outcome{}, planner)

			Convey("Then the forbidden error is returned unchanged", func() {
				So(err, ShouldEqual, internaltypes.ErrForbidden)
			})
		})

		Convey("When the store fails otherwise", func() {
			cause := errors.New("disk full")
			store.commitErr = cause
			err := rec.Commit(ctx, importer.Outcome{}, planner)

			Convey("Then the error is wrapped and not mistaken for forbidden", func() {
				So(errors.Is(err, cause), ShouldBeTrue)
				So(errors.Is(err, internaltypes.ErrForbidden), ShouldBeFalse)
			})
		})
	})
}

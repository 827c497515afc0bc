package ics_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/example/semesterplan/internal/ics"
)

// fixedRules reports the same DST answer for every instant.
type fixedRules bool

func (f fixedRules) IsDST(time.Time) bool { return bool(f) }

func TestNormalize(t *testing.T) {
	Convey("Given the default normalizer", t, func() {
		n := ics.DefaultNormalizer()

		Convey("When the timestamp falls in summer time", func() {
			got, err := n.Normalize("20210702T120000Z")

			Convey("Then it is shifted by two hours", func() {
				So(err, ShouldBeNil)
				So(got.UTC(), ShouldEqual, time.Date(2021, time.July, 2, 14, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the timestamp falls in winter time", func() {
			got, err := n.Normalize("20210102T120000Z")

			Convey("Then it is shifted by one hour", func() {
				So(err, ShouldBeNil)
				So(got.UTC(), ShouldEqual, time.Date(2021, time.January, 2, 13, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the timestamp straddles the spring transition", func() {
			// Clocks in Berlin moved forward at 2021-03-28 01:00 UTC.
			before, err1 := n.Normalize("20210328T005959Z")
			after, err2 := n.Normalize("20210328T010000Z")

			Convey("Then the shift changes at the transition instant", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(before.UTC(), ShouldEqual, time.Date(2021, time.March, 28, 1, 59, 59, 0, time.UTC))
				So(after.UTC(), ShouldEqual, time.Date(2021, time.March, 28, 3, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the same timestamp is normalized twice", func() {
			a, _ := n.Normalize("20231015T083000Z")
			b, _ := n.Normalize("20231015T083000Z")

			Convey("Then both results are the same instant", func() {
				So(a.Equal(b), ShouldBeTrue)
			})
		})

		Convey("When the timestamp is not in basic UTC form", func() {
			for _, in := range []string{
				"invalid_date",
				"",
				"20210702T120000",
				"2021-07-02T12:00:00Z",
				"20210702",
				"20211302T120000Z",
				"20210702T120000Z ",
				"20210702T120000.5Z",
				"20210702T120000,123Z",
			} {
				_, err := n.Normalize(in)
				So(errors.Is(err, ics.ErrTimestampFormat), ShouldBeTrue)
			}
		})
	})

	Convey("Given synthetic zone rules", t, func() {
		ts := "20210102T120000Z"
		naive := time.Date(2021, time.January, 2, 12, 0, 0, 0, time.UTC)

		Convey("When the rules always report daylight saving", func() {
			got, err := ics.NewNormalizer(fixedRules(true)).Normalize(ts)

			Convey("Then the shift is two hours even in January", func() {
				So(err, ShouldBeNil)
				So(got.Sub(naive), ShouldEqual, 2*time.Hour)
			})
		})

		Convey("When the rules never report daylight saving", func() {
			got, err := ics.NewNormalizer(fixedRules(false)).Normalize("20210702T120000Z")

			Convey("Then the shift is one hour even in July", func() {
				So(err, ShouldBeNil)
				So(got.UTC(), ShouldEqual, time.Date(2021, time.July, 2, 13, 0, 0, 0, time.UTC))
			})
		})
	})
}

func TestNewLocationRules(t *testing.T) {
	if _, err := ics.NewLocationRules("Europe/Berlin"); err != nil {
		t.Fatalf("Europe/Berlin: %v", err)
	}
	if _, err := ics.NewLocationRules("Nowhere/Special"); err == nil {
		t.Fatal("expected an error for an unknown region")
	}
}

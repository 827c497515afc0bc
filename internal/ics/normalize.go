package ics

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // the reference region must resolve on hosts without zoneinfo
)

// ReferenceRegion is the civil timezone whose offset is applied to imported
// timestamps unless configured otherwise.
const ReferenceRegion = "Europe/Berlin"

// timestampLayout is the basic UTC form DTSTART/DTEND values must use.
const timestampLayout = "20060102T150405Z"

var ErrTimestampFormat = errors.New("timestamp is not in yyyyMMdd'T'HHmmss'Z' form")

// ZoneRules answers whether daylight saving is in effect in a region at a
// given instant.
type ZoneRules interface {
	IsDST(t time.Time) bool
}

// LocationRules implements ZoneRules with a tz database location.
type LocationRules struct {
	loc *time.Location
}

func NewLocationRules(name string) (LocationRules, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return LocationRules{}, fmt.Errorf("load location %q: %w", name, err)
	}
	return LocationRules{loc: loc}, nil
}

func (r LocationRules) IsDST(t time.Time) bool {
	return t.In(r.loc).IsDST()
}

func (r LocationRules) String() string {
	return r.loc.String()
}

// Normalizer converts DTSTART/DTEND values into instants.
//
// The producer of the imported calendars writes reference-region wall time
// but labels it UTC. Normalize keeps that contract: the digits are read as
// UTC and then moved forward by the region's offset at that instant (two
// hours during daylight saving, one hour otherwise). Consumers depend on
// this exact arithmetic.
type Normalizer struct {
	rules ZoneRules
}

func NewNormalizer(rules ZoneRules) *Normalizer {
	return &Normalizer{rules: rules}
}

// DefaultNormalizer uses the rules of ReferenceRegion.
func DefaultNormalizer() *Normalizer {
	rules, err := NewLocationRules(ReferenceRegion)
	if err != nil {
		// tzdata is embedded; this only fails if the region name is wrong.
		panic(err)
	}
	return NewNormalizer(rules)
}

func (n *Normalizer) Normalize(ts string) (time.Time, error) {
	// time.Parse accepts a fractional-seconds suffix the layout does not name.
	if len(ts) != len(timestampLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, ts)
	}
	u, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, ts)
	}
	if n.rules.IsDST(u) {
		return u.Add(2 * time.Hour), nil
	}
	return u.Add(time.Hour), nil
}

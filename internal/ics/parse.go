package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/semesterplan/internal/logger"
)

// DefaultCorrelationProperty is the custom VEVENT property naming the
// reservation an event belongs to.
const DefaultCorrelationProperty = "X-RAPLA-ID"

var (
	ErrMalformedDocument = errors.New("malformed calendar document")
	ErrMissingProperty   = errors.New("missing property")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Interval is one normalized start/end pair.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Group holds the intervals imported for one correlation key, in document order.
type Group struct {
	Key       string
	Intervals []Interval
}

// Skip records a VEVENT that did not contribute an interval.
type Skip struct {
	// Index is the zero-based position of the VEVENT in the document.
	Index int
	// Key is the event's correlation key, empty if it had none.
	Key    string
	Reason error
}

// ImportGroup is the parse result: groups in first-seen key order plus the
// events that were skipped along the way.
type ImportGroup struct {
	Groups  []Group
	Skipped []Skip
	// Events is the number of VEVENT blocks seen.
	Events int
}

// Keys returns the correlation keys in first-seen order.
func (g ImportGroup) Keys() []string {
	keys := make([]string, len(g.Groups))
	for i, gr := range g.Groups {
		keys[i] = gr.Key
	}
	return keys
}

func (g ImportGroup) Lookup(key string) (Group, bool) {
	for _, gr := range g.Groups {
		if gr.Key == key {
			return gr, true
		}
	}
	return Group{}, false
}

// Parser turns ICS documents into ImportGroups.
type Parser struct {
	property   string
	normalizer *Normalizer
	log        logger.Logger
}

type Option func(*Parser)

// WithCorrelationProperty overrides DefaultCorrelationProperty.
func WithCorrelationProperty(name string) Option {
	return func(p *Parser) {
		if name = strings.TrimSpace(name); name != "" {
			p.property = strings.ToUpper(name)
		}
	}
}

func WithNormalizer(n *Normalizer) Option {
	return func(p *Parser) {
		if n != nil {
			p.normalizer = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		property: DefaultCorrelationProperty,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.normalizer == nil {
		p.normalizer = DefaultNormalizer()
	}
	return p
}

// ParseAndGroup parses doc and groups its events by correlation key.
//
// Only a document that is not iCalendar at all is an error
// (ErrMalformedDocument). An event without a correlation key is skipped. An
// event with a key but a missing or malformed DTSTART/DTEND still registers
// the key, so the reservation is reconciled, but adds no interval.
func (p *Parser) ParseAndGroup(doc []byte) (ImportGroup, error) {
	doc = bytes.TrimPrefix(doc, utf8BOM)
	if len(bytes.TrimSpace(doc)) == 0 {
		return ImportGroup{}, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	if doc[len(doc)-1] != '\n' {
		doc = append(doc[:len(doc):len(doc)], '\n')
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(doc))
	if err != nil {
		return ImportGroup{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	var out ImportGroup
	index := make(map[string]int)

	for i, ve := range cal.Events() {
		out.Events++

		key, iv, err := p.extract(ve)
		if key == "" {
			out.Skipped = append(out.Skipped, Skip{Index: i, Reason: err})
			p.log.Debug("ics event skipped", "index", i, "reason", err)
			continue
		}

		pos, seen := index[key]
		if !seen {
			pos = len(out.Groups)
			index[key] = pos
			out.Groups = append(out.Groups, Group{Key: key})
		}

		if err != nil {
			out.Skipped = append(out.Skipped, Skip{Index: i, Key: key, Reason: err})
			p.log.Debug("ics event has no usable interval", "index", i, "key", key, "reason", err)
			continue
		}
		out.Groups[pos].Intervals = append(out.Groups[pos].Intervals, iv)
	}

	return out, nil
}

// extract returns the event's correlation key and its normalized interval.
// A non-nil error with a non-empty key means the key is valid but the
// interval is not.
func (p *Parser) extract(ve *ical.VEvent) (string, Interval, error) {
	key := propertyValue(ve, ical.ComponentProperty(p.property))
	if key == "" {
		return "", Interval{}, fmt.Errorf("%w: %s", ErrMissingProperty, p.property)
	}

	rawStart := propertyValue(ve, ical.ComponentPropertyDtStart)
	if rawStart == "" {
		return key, Interval{}, fmt.Errorf("%w: DTSTART", ErrMissingProperty)
	}
	rawEnd := propertyValue(ve, ical.ComponentPropertyDtEnd)
	if rawEnd == "" {
		return key, Interval{}, fmt.Errorf("%w: DTEND", ErrMissingProperty)
	}

	start, err := p.normalizer.Normalize(rawStart)
	if err != nil {
		return key, Interval{}, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := p.normalizer.Normalize(rawEnd)
	if err != nil {
		return key, Interval{}, fmt.Errorf("DTEND: %w", err)
	}
	return key, Interval{Start: start, End: end}, nil
}

// propertyValue returns the first value of prop. Property names are matched
// case-insensitively; GetProperty compares them verbatim.
func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	for _, p := range ve.Properties {
		if strings.EqualFold(p.IANAToken, string(prop)) {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

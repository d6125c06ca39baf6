// Package slots computes bookable appointment candidates from a service
// type, an urgency flag, a business-hours policy and the calendar's busy
// intervals. It performs no I/O.
package slots

import (
	"strings"
	"time"
)

// MaxCandidates is the number of slots offered to a customer.
const MaxCandidates = 3

const (
	urgentBuffer  = 15 * time.Minute
	normalBuffer  = 30 * time.Minute
	urgentHorizon = 3
	normalHorizon = 7
)

type durations struct {
	normal time.Duration
	urgent time.Duration
}

var serviceDurations = map[string]durations{
	"plumber":     {normal: 120 * time.Minute, urgent: 60 * time.Minute},
	"electrician": {normal: 120 * time.Minute, urgent: 60 * time.Minute},
	"locksmith":   {normal: 60 * time.Minute, urgent: 30 * time.Minute},
	"handyman":    {normal: 60 * time.Minute, urgent: 30 * time.Minute},
}

var defaultDurations = durations{normal: 120 * time.Minute, urgent: 60 * time.Minute}

// Interval is a half-open busy period [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval. Empty
// intervals overlap nothing.
func (i Interval) Overlaps(start, end time.Time) bool {
	if !i.End.After(i.Start) {
		return false
	}
	return start.Before(i.End) && end.After(i.Start)
}

// Request describes one slot search.
type Request struct {
	Service string
	Urgent  bool
	Hours   Hours
	Now     time.Time
}

// Window is the range the calendar must be queried for.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the appointment length for a service title. Unknown
// services get the plumber/electrician length.
func Duration(service string, urgent bool) time.Duration {
	d, ok := serviceDurations[strings.ToLower(strings.TrimSpace(service))]
	if !ok {
		d = defaultDurations
	}
	if urgent {
		return d.urgent
	}
	return d.normal
}

// Plan returns the search window: from the first business moment after the
// lead-time buffer, rounded up to the slot grid, until the horizon.
func Plan(req Request) Window {
	h := req.Hours.normalized()
	buffer, days := normalBuffer, normalHorizon
	if req.Urgent {
		buffer, days = urgentBuffer, urgentHorizon
	}

	start := h.nextOpen(req.Now.Add(buffer))
	start = roundUp(start, gridStep(Duration(req.Service, req.Urgent)))
	return Window{Start: start, End: start.AddDate(0, 0, days)}
}

// Find walks the window in appointment-sized steps and returns up to
// MaxCandidates start times in increasing order. Every candidate lies inside
// business hours, ends no later than closing and does not overlap busy.
// An empty result means nothing is free in the window.
func Find(req Request, busy []Interval) []time.Time {
	h := req.Hours.normalized()
	length := Duration(req.Service, req.Urgent)
	window := Plan(req)

	found := make([]time.Time, 0, MaxCandidates)
	cursor := window.Start
	for len(found) < MaxCandidates && cursor.Before(window.End) {
		if !h.within(cursor) {
			cursor = h.nextOpen(cursor)
			continue
		}

		end := cursor.Add(length)
		if !end.After(h.closing(cursor)) && !overlapsAny(busy, cursor, end) {
			found = append(found, cursor)
		}
		cursor = end
	}
	return found
}

func overlapsAny(busy []Interval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// gridStep is a whole hour for appointments of an hour or more, otherwise
// half an hour.
func gridStep(length time.Duration) time.Duration {
	if length >= time.Hour {
		return time.Hour
	}
	return 30 * time.Minute
}

// roundUp moves t forward to the next wall-clock multiple of step.
func roundUp(t time.Time, step time.Duration) time.Time {
	stepMinutes := int(step / time.Minute)
	minutes := t.Hour()*60 + t.Minute()
	exact := t.Second() == 0 && t.Nanosecond() == 0 && minutes%stepMinutes == 0
	if exact {
		return t
	}
	next := (minutes/stepMinutes + 1) * stepMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), 0, next, 0, 0, t.Location())
}

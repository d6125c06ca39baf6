package slots

import "time"

const (
	defaultOpenHour  = 8
	defaultCloseHour = 18
)

// Hours is a business-hours policy: an opening and closing hour (closing
// exclusive, 24 allowed) on a set of weekdays, evaluated in Location.
type Hours struct {
	Start    int
	End      int
	Days     []time.Weekday
	Location *time.Location
}

// DefaultHours is 08:00–18:00 Monday to Friday in UTC.
func DefaultHours() Hours {
	return Hours{
		Start:    defaultOpenHour,
		End:      defaultCloseHour,
		Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Location: time.UTC,
	}
}

// Valid reports whether the policy can produce any business time at all.
func (h Hours) Valid() bool {
	if h.Start < 0 || h.End > 24 || h.Start >= h.End {
		return false
	}
	for _, d := range h.Days {
		if d >= time.Sunday && d <= time.Saturday {
			return true
		}
	}
	return false
}

// normalized replaces an unusable policy with the default, keeping the
// location when one was given.
func (h Hours) normalized() Hours {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	if !h.Valid() {
		h = DefaultHours()
	}
	h.Location = loc
	return h
}

func (h Hours) isBusinessDay(d time.Weekday) bool {
	for _, day := range h.Days {
		if day == d {
			return true
		}
	}
	return false
}

func (h Hours) at(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, h.Location)
}

func (h Hours) opening(t time.Time) time.Time { return h.at(t, h.Start) }
func (h Hours) closing(t time.Time) time.Time { return h.at(t, h.End) }

// within reports whether t falls on a business day inside [opening, closing).
func (h Hours) within(t time.Time) bool {
	t = t.In(h.Location)
	if !h.isBusinessDay(t.Weekday()) {
		return false
	}
	return !t.Before(h.opening(t)) && t.Before(h.closing(t))
}

// nextOpen returns t itself when it is inside business hours, otherwise the
// next opening time after t.
func (h Hours) nextOpen(t time.Time) time.Time {
	t = t.In(h.Location)
	for i := 0; i < 8; i++ {
		if h.isBusinessDay(t.Weekday()) {
			if open := h.opening(t); t.Before(open) {
				return open
			}
			if t.Before(h.closing(t)) {
				return t
			}
		}
		t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, h.Location)
	}
	return t
}

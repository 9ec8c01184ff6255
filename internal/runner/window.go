package runner

import "time"

// Window is the business-hours policy: ticks may fire at any wall-clock
// time, but submissions only go out inside the window. The zero value is
// always open, which tests and demo runs rely on.
type Window struct {
	StartHour int
	EndHour   int
	Weekdays  bool
	Location  *time.Location
}

// BusinessHours is the default dispatch window.
func BusinessHours() Window {
	return Window{StartHour: 9, EndHour: 18, Weekdays: true, Location: time.UTC}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.StartHour == 0 && w.EndHour == 0 {
		return true
	}

	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	if w.Weekdays {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}

	hour := t.Hour()
	return hour >= w.StartHour && hour < w.EndHour
}

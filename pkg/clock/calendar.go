// Package clock answers time-of-day questions for the station: who is on
// air, whether an announcement or weather window is open, and when the next
// announcement boundary falls. All functions are pure over an explicit time
// so tests can substitute the clock.
package clock

import (
	"fmt"
	"time"

	"aetherfm/pkg/config"
	"aetherfm/pkg/model"
)

// WeatherWindow identifies one of the three daily weather slots.
type WeatherWindow string

const (
	WeatherNone    WeatherWindow = ""
	WeatherMorning WeatherWindow = "morning"
	WeatherMidday  WeatherWindow = "midday"
	WeatherEvening WeatherWindow = "evening"
)

// Calendar is the schedule oracle. Construct once from validated config.
type Calendar struct {
	shifts   []model.Shift
	windowS  int
	weather  config.WeatherHours
	showHour int
	showID   string
}

// New creates a Calendar from validated schedule configuration.
func New(sched config.ScheduleConfig) *Calendar {
	return &Calendar{
		shifts:   sched.Shifts,
		windowS:  sched.AnnouncementWindowS,
		weather:  sched.WeatherHours,
		showHour: sched.ShowHour,
		showID:   sched.ShowID,
	}
}

// PersonaOnAirAt returns the persona on air at t. Shift boundaries are
// half-open [start, next_start): at the exact boundary the incoming persona
// is already on air. Before the first shift of the day, the last shift of the
// previous day is still on.
func (c *Calendar) PersonaOnAirAt(t time.Time) model.PersonaID {
	minutes := t.Hour()*60 + t.Minute()
	current := c.shifts[len(c.shifts)-1].Persona
	for _, s := range c.shifts {
		if minutes >= s.StartMinutes {
			current = s.Persona
		}
	}
	return current
}

// IsAnnouncementMoment reports whether t is within the tolerance window after
// a :00 or :30 boundary.
func (c *Calendar) IsAnnouncementMoment(t time.Time) bool {
	if t.Minute() != 0 && t.Minute() != 30 {
		return false
	}
	return t.Second() <= c.windowS
}

// NextAnnouncementAfter returns the next :00 or :30 boundary strictly after t.
func (c *Calendar) NextAnnouncementAfter(t time.Time) time.Time {
	t = t.Truncate(time.Second)
	boundary := t.Truncate(30 * time.Minute)
	for !boundary.After(t) {
		boundary = boundary.Add(30 * time.Minute)
	}
	return boundary
}

// AnnouncementSlot formats the half-hour slot containing t as a content
// target id ("HH-MM").
func AnnouncementSlot(t time.Time) string {
	minute := 0
	if t.Minute() >= 30 {
		minute = 30
	}
	return fmt.Sprintf("%02d-%02d", t.Hour(), minute)
}

// WeatherWindowAt returns the open weather window at t, or WeatherNone. The
// window is the first minute of each declared hour.
func (c *Calendar) WeatherWindowAt(t time.Time) WeatherWindow {
	if t.Minute() != 0 {
		return WeatherNone
	}
	switch t.Hour() {
	case c.weather.Morning:
		return WeatherMorning
	case c.weather.Midday:
		return WeatherMidday
	case c.weather.Evening:
		return WeatherEvening
	}
	return WeatherNone
}

// ShowWindowAt returns the show id if t falls within the configured show
// hour, otherwise "". Whether the show already played today is the caller's
// concern.
func (c *Calendar) ShowWindowAt(t time.Time) string {
	if t.Hour() == c.showHour {
		return c.showID
	}
	return ""
}

// ShowID returns the configured show id.
func (c *Calendar) ShowID() string { return c.showID }

// Handoff describes one persona transition of the day.
type Handoff struct {
	From model.PersonaID
	To   model.PersonaID
	At   int // minutes from midnight
}

// Handoffs returns the persona transitions in schedule order, including the
// midnight wrap from the last shift back to the first. Transitions between
// identical personas are skipped.
func (c *Calendar) Handoffs() []Handoff {
	var out []Handoff
	n := len(c.shifts)
	for i := 0; i < n; i++ {
		prev := c.shifts[(i+n-1)%n].Persona
		cur := c.shifts[i]
		if prev == cur.Persona {
			continue
		}
		out = append(out, Handoff{From: prev, To: cur.Persona, At: cur.StartMinutes})
	}
	return out
}

// TargetID formats a handoff as a content target id ("HH-MM-from-to").
func (h Handoff) TargetID() string {
	return fmt.Sprintf("%02d-%02d-%s-%s", h.At/60, h.At%60, h.From, h.To)
}

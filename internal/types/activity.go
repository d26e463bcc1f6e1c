package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a minute-of-day. Values past 24:00 are allowed so that a
// window closing after midnight still compares correctly.
type Clock int

// NewClock builds a Clock from hours and minutes.
func NewClock(h, m int) Clock { return Clock(h*60 + m) }

// ParseClock accepts "HH:MM", "HHMM" or "H:MM".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("types: empty clock")
	}
	var hs, ms string
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hs, ms = s[:i], s[i+1:]
	} else if len(s) == 4 {
		hs, ms = s[:2], s[2:]
	} else {
		return 0, fmt.Errorf("types: invalid clock %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, fmt.Errorf("types: invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, fmt.Errorf("types: invalid clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("types: invalid clock %q", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a clock string or a bare minute count.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParseClock(s)
		if err != nil {
			return err
		}
		*c = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("types: clock must be string or minutes: %w", err)
	}
	*c = Clock(n)
	return nil
}

// TimeWindow is a scheduled [Start, End] span.
type TimeWindow struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Duration returns the window length in minutes.
func (w TimeWindow) Duration() int { return int(w.End - w.Start) }

// DayTime is one end of an opening period. Day follows time.Weekday (0 = Sunday).
type DayTime struct {
	Day  int   `json:"day"`
	Time Clock `json:"time"`
}

// OpeningPeriod is one contiguous open interval. A nil Close means the
// place does not close (24h when it is the only period).
type OpeningPeriod struct {
	Open  DayTime  `json:"open"`
	Close *DayTime `json:"close,omitempty"`
}

// PlaceRef links an activity to validated place data.
type PlaceRef struct {
	PlaceID      string          `json:"place_id,omitempty"`
	Validated    bool            `json:"validated"`
	Location     *LatLng         `json:"location,omitempty"`
	Address      string          `json:"address,omitempty"`
	OpeningHours []OpeningPeriod `json:"opening_hours,omitempty"`
	Cost         string          `json:"cost,omitempty"`
}

// Activity is one scheduled item of a day.
type Activity struct {
	Name   string     `json:"name"`
	Type   string     `json:"type,omitempty"`
	Window TimeWindow `json:"window"`
	Energy string     `json:"energy,omitempty"`
	Place  *PlaceRef  `json:"place,omitempty"`
}

// Location returns the activity coordinates when known.
func (a Activity) Location() (LatLng, bool) {
	if a.Place == nil || a.Place.Location == nil {
		return LatLng{}, false
	}
	return *a.Place.Location, true
}

// Cost returns the free-text admission price, if any.
func (a Activity) Cost() string {
	if a.Place == nil {
		return ""
	}
	return a.Place.Cost
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (a Activity) Clone() Activity {
	out := a
	if a.Place != nil {
		p := *a.Place
		if a.Place.Location != nil {
			loc := *a.Place.Location
			p.Location = &loc
		}
		if a.Place.OpeningHours != nil {
			p.OpeningHours = make([]OpeningPeriod, len(a.Place.OpeningHours))
			for i, op := range a.Place.OpeningHours {
				p.OpeningHours[i] = op
				if op.Close != nil {
					c := *op.Close
					p.OpeningHours[i].Close = &c
				}
			}
		}
		out.Place = &p
	}
	return out
}

// DayItinerary is the unit of work for optimisation, detection and repair.
type DayItinerary struct {
	Index      int        `json:"day_index"`
	Date       string     `json:"date"`
	City       string     `json:"city"`
	Activities []Activity `json:"activities"`
}

const DateLayout = "2006-01-02"

// Weekday resolves Date to a day-of-week.
func (d DayItinerary) Weekday() (time.Weekday, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(d.Date))
	if err != nil {
		return 0, fmt.Errorf("types: invalid date %q: %w", d.Date, err)
	}
	return t.Weekday(), nil
}

// Clone deep-copies the day and its activities.
func (d DayItinerary) Clone() DayItinerary {
	out := d
	out.Activities = make([]Activity, len(d.Activities))
	for i, a := range d.Activities {
		out.Activities[i] = a.Clone()
	}
	return out
}

package pipeline

import (
	"time"

	"roadplan/internal/types"
)

const minutesPerDay = 24 * 60

type openWindow struct {
	open, close types.Clock
}

// windowsOn projects opening periods onto one weekday as minute ranges
// relative to that day's midnight. A period opened the previous evening
// contributes its tail after midnight. A single period opening Sunday
// 00:00 without a close means always open.
func windowsOn(periods []types.OpeningPeriod, day time.Weekday) []openWindow {
	if len(periods) == 1 && periods[0].Close == nil && periods[0].Open.Day == 0 && periods[0].Open.Time == 0 {
		return []openWindow{{open: 0, close: minutesPerDay}}
	}
	wd := int(day)
	yesterday := (wd + 6) % 7
	var out []openWindow
	for _, p := range periods {
		if p.Close == nil {
			if p.Open.Day == wd {
				out = append(out, openWindow{open: p.Open.Time, close: minutesPerDay})
			}
			continue
		}
		span := ((p.Close.Day-p.Open.Day+7)%7)*minutesPerDay + int(p.Close.Time) - int(p.Open.Time)
		if span <= 0 {
			span += minutesPerDay
		}
		switch p.Open.Day {
		case wd:
			out = append(out, openWindow{open: p.Open.Time, close: p.Open.Time + types.Clock(span)})
		case yesterday:
			end := int(p.Open.Time) + span - minutesPerDay
			if end > 0 {
				out = append(out, openWindow{open: 0, close: types.Clock(end)})
			}
		}
	}
	return out
}

type availability int

const (
	availOpen availability = iota
	availClosedAllDay
	availBeforeOpening
	availAfterClosing
)

type availabilityCheck struct {
	status availability
	// nearest opening after start, or the last close before it
	opensAt, closesAt types.Clock
}

// checkAvailability compares a scheduled start against the day's windows.
// A start that falls between two windows is reported against the next
// opening.
func checkAvailability(periods []types.OpeningPeriod, day time.Weekday, start types.Clock) availabilityCheck {
	windows := windowsOn(periods, day)
	if len(windows) == 0 {
		return availabilityCheck{status: availClosedAllDay}
	}
	nextOpen, lastClose := types.Clock(-1), types.Clock(-1)
	for _, w := range windows {
		if start >= w.open && start < w.close {
			return availabilityCheck{status: availOpen, opensAt: w.open, closesAt: w.close}
		}
		if w.open > start && (nextOpen < 0 || w.open < nextOpen) {
			nextOpen = w.open
		}
		if w.close <= start && w.close > lastClose {
			lastClose = w.close
		}
	}
	if nextOpen >= 0 {
		return availabilityCheck{status: availBeforeOpening, opensAt: nextOpen}
	}
	return availabilityCheck{status: availAfterClosing, closesAt: lastClose}
}

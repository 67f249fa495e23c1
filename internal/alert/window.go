package alert

import "time"

// scanDays bounds the forward search for the next window opening. Eight days
// always covers a full weekly cycle plus today.
const scanDays = 8

// AlwaysVisible reports whether the alert ignores time windows: it is not
// scheduled, or it is scheduled without any days or times.
func (a *Alert) AlwaysVisible() bool {
	return !a.IsScheduled || (a.Days.Empty() && a.Start == nil && a.End == nil)
}

// window returns the daily bounds, defaulting to the whole day.
func (a *Alert) window() (start, end Clock) {
	start, end = 0, lastMinute
	if a.Start != nil {
		start = *a.Start
	}
	if a.End != nil {
		end = *a.End
	}
	return start, end
}

// crossesMidnight reports whether the window ends on the day after it opens.
func (a *Alert) crossesMidnight() bool {
	start, end := a.window()
	return end < start
}

// IsVisible reports whether t falls inside the alert's window, evaluated in
// loc. Bounds are inclusive at minute precision. The weekday of t must be
// scheduled; a window crossing midnight is open at or after its start or at
// or before its end on that weekday.
func (a *Alert) IsVisible(t time.Time, loc *time.Location) bool {
	if a.AlwaysVisible() {
		return true
	}
	local := t.In(loc)
	c := ClockOf(local)
	start, end := a.window()
	if !a.Days.Includes(local.Weekday()) {
		return false
	}
	if start <= end {
		return c >= start && c <= end
	}
	return c >= start || c <= end
}

// NextWindowStart returns the earliest window opening at or after from, or
// nil when the alert has no window to open (always-visible alerts).
func (a *Alert) NextWindowStart(from time.Time, loc *time.Location) *time.Time {
	if a.AlwaysVisible() {
		return nil
	}
	start, _ := a.window()
	local := from.In(loc)
	for i := 0; i <= scanDays; i++ {
		day := local.AddDate(0, 0, i)
		candidate := start.on(day, loc)
		if candidate.Before(from) || !a.Days.Includes(candidate.Weekday()) {
			continue
		}
		utc := candidate.UTC()
		return &utc
	}
	return nil
}

// OccurrenceStart returns the opening instant of the window occurrence that
// contains t. After midnight that is the previous day's start clock, whether
// or not the previous day is scheduled. Only meaningful when IsVisible(t).
func (a *Alert) OccurrenceStart(t time.Time, loc *time.Location) time.Time {
	start, _ := a.window()
	local := t.In(loc)
	day := local
	if a.crossesMidnight() && ClockOf(local) < start {
		day = local.AddDate(0, 0, -1)
	}
	return start.on(day, loc).UTC()
}

// Bucket quantizes t into the dedupe bucket for this alert. With a repeat
// interval the bucket is floor(unix minute / repeat) * repeat in UTC.
// Without one, the bucket is the current window occurrence, so the alert
// fires once per opening; always-visible alerts then use a single fixed
// bucket and fire once per version.
func (a *Alert) Bucket(t time.Time, loc *time.Location) time.Time {
	if a.RepeatEvery != nil && *a.RepeatEvery > 0 {
		step := int64(*a.RepeatEvery)
		minute := t.Unix() / 60
		return time.Unix((minute-minute%step)*60, 0).UTC()
	}
	if a.AlwaysVisible() {
		return time.Unix(0, 0).UTC()
	}
	return a.OccurrenceStart(t, loc)
}

// NextRun computes the next delivery instant after a dispatch pass at now.
// A visible repeating alert fires again at now + repeat if the window is
// still open then, otherwise at the next opening after that instant. A visible alert
// without repeat fires again at the next opening after the current one.
// A dormant alert fires at its next opening. Nil means no further runs.
func (a *Alert) NextRun(now time.Time, loc *time.Location) *time.Time {
	if !a.IsVisible(now, loc) {
		return a.NextWindowStart(now, loc)
	}
	if repeat := a.Repeat(); repeat > 0 {
		candidate := now.Add(repeat).UTC()
		if a.IsVisible(candidate, loc) {
			return &candidate
		}
		return a.NextWindowStart(candidate, loc)
	}
	return a.NextWindowStart(now.Add(time.Minute), loc)
}

// Exhausted reports whether a one-shot alert (always visible, no repeat)
// has already been delivered for its current version.
func (a *Alert) Exhausted() bool {
	if a.RepeatEvery != nil || !a.AlwaysVisible() || a.LastSentAt == nil {
		return false
	}
	return !a.LastSentAt.Before(a.UpdatedAt)
}

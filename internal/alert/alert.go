// Package alert models recurring, time-windowed announcements and evaluates
// their visibility windows.
//
// An alert is visible while its daily window is open on one of its scheduled
// weekdays. All window math happens in a single operating time zone (the
// restaurant's), never in a subscriber's locale.
package alert

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinRepeatMinutes is the smallest re-fire interval accepted at creation.
const MinRepeatMinutes = 10

// Text is a localized title/content pair.
type Text struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Alert is an announcement of type "alert".
type Alert struct {
	ID           int64
	Title        string
	Content      string
	Translations map[string]Text // language code -> localized text
	IsActive     bool

	IsScheduled bool
	Days        Days
	Start       *Clock
	End         *Clock
	RepeatEvery *int // minutes; nil means once per window occurrence

	NextRunAt  *time.Time
	LastSentAt *time.Time
	UpdatedAt  time.Time // version marker
}

// Localized returns the title and content for lang, falling back to the
// base text when no translation exists.
func (a *Alert) Localized(lang string) Text {
	base := Text{Title: a.Title, Content: a.Content}
	lang = BaseLang(lang)
	if lang == "" || len(a.Translations) == 0 {
		return base
	}
	t, ok := a.Translations[lang]
	if !ok {
		return base
	}
	if t.Title == "" {
		t.Title = base.Title
	}
	if t.Content == "" {
		t.Content = base.Content
	}
	return t
}

// BaseLang reduces a language tag such as "es-MX" to its lowercase base
// language.
func BaseLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// Repeat returns the re-fire interval, or zero when none is configured.
func (a *Alert) Repeat() time.Duration {
	if a.RepeatEvery == nil || *a.RepeatEvery <= 0 {
		return 0
	}
	return time.Duration(*a.RepeatEvery) * time.Minute
}

// --------------------------------------------------------------------------
// Clock
// --------------------------------------------------------------------------

// Clock is a local time of day with minute precision, stored as minutes
// since midnight.
type Clock int

const lastMinute Clock = 23*60 + 59

// ParseClock parses "HH:MM" (a trailing ":SS" is accepted and ignored).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// ClockOf returns the clock reading of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// on returns the instant at clock c on the calendar day of d, in loc.
func (c Clock) on(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// --------------------------------------------------------------------------
// Days
// --------------------------------------------------------------------------

// Days is a set of weekdays. The empty set means every day.
type Days uint8

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday parses an English weekday name or its three-letter form.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}

// ParseDays builds a set from weekday names.
func ParseDays(names []string) (Days, error) {
	var days Days
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return 0, err
		}
		days = days.With(d)
	}
	return days, nil
}

// NewDays builds a set from weekdays.
func NewDays(wd ...time.Weekday) Days {
	var days Days
	for _, d := range wd {
		days = days.With(d)
	}
	return days
}

func (d Days) With(wd time.Weekday) Days { return d | 1<<uint(wd) }

// Empty reports whether no weekday is set.
func (d Days) Empty() bool { return d == 0 }

// Includes reports whether wd is in the set. An empty set includes every day.
func (d Days) Includes(wd time.Weekday) bool {
	return d.Empty() || d&(1<<uint(wd)) != 0
}

// Names returns the lowercase weekday names in Sunday-first order.
func (d Days) Names() []string {
	names := make([]string, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if d&(1<<uint(wd)) != 0 {
			names = append(names, strings.ToLower(wd.String()))
		}
	}
	return names
}

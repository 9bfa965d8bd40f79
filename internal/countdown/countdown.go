// Package countdown turns a task deadline into the remaining-time text shown
// next to each task.
package countdown

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Locale selects the wording of the countdown.
type Locale string

const (
	English    Locale = "en"
	Indonesian Locale = "id"
)

// ErrInvalidDeadline is returned when a deadline string matches no known layout.
var ErrInvalidDeadline = errors.New("invalid deadline")

// InputLayout is the layout produced by a datetime-local input.
const InputLayout = "2006-01-02T15:04"

const displayLayout = "2006-01-02 15:04"

var localLayouts = []string{
	InputLayout,
	"2006-01-02T15:04:05",
	displayLayout,
	"2006-01-02",
}

type wording struct {
	expired     string
	placeholder string
	invalid     string
	format      func(h, m, s int64) string
}

var wordings = map[Locale]wording{
	English: {
		expired:     "Time's up!",
		placeholder: "Calculating...",
		invalid:     "Invalid deadline",
		format: func(h, m, s int64) string {
			return fmt.Sprintf("%s %s %s", plural(h, "hour"), plural(m, "minute"), plural(s, "second"))
		},
	},
	Indonesian: {
		expired:     "Waktu habis!",
		placeholder: "Menghitung...",
		invalid:     "Tenggat tidak valid",
		format: func(h, m, s int64) string {
			return fmt.Sprintf("%dj %dm %dd", h, m, s)
		},
	},
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ParseLocale maps a config value to a Locale.
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return English, nil
	}
	if _, ok := wordings[l]; !ok {
		return "", fmt.Errorf("unknown locale %q", s)
	}
	return l, nil
}

// ParseDeadline reads a deadline string. Layouts without a zone are read in loc.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, s)
}

// Remaining is the formatted time left until a deadline.
type Remaining struct {
	Text    string
	Expired bool
	Left    time.Duration
}

// Formatter renders countdowns. The zero value formats in English and local time.
type Formatter struct {
	Locale   Locale
	Location *time.Location
}

func (f Formatter) words() wording {
	if w, ok := wordings[f.Locale]; ok {
		return w
	}
	return wordings[English]
}

// Sentinel is the text shown once a deadline has passed.
func (f Formatter) Sentinel() string { return f.words().expired }

// Placeholder is shown before the first countdown tick.
func (f Formatter) Placeholder() string { return f.words().placeholder }

// Invalid is shown for deadlines that cannot be parsed.
func (f Formatter) Invalid() string { return f.words().invalid }

// Format computes the time left between now and deadline.
func (f Formatter) Format(deadline string, now time.Time) (Remaining, error) {
	t, err := ParseDeadline(deadline, f.Location)
	if err != nil {
		return Remaining{Text: f.Invalid()}, err
	}
	return f.FormatDuration(t.Sub(now)), nil
}

// FormatDuration renders a remaining duration. Anything at or below zero is expired.
func (f Formatter) FormatDuration(left time.Duration) Remaining {
	w := f.words()
	if left <= 0 {
		return Remaining{Text: w.expired, Expired: true}
	}
	total := int64(left / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return Remaining{Text: w.format(h, m, s), Left: left}
}

// DisplayDeadline renders a deadline for the list, or returns it unchanged when unparseable.
func (f Formatter) DisplayDeadline(deadline string) string {
	t, err := ParseDeadline(deadline, f.Location)
	if err != nil {
		return deadline
	}
	if f.Location != nil {
		t = t.In(f.Location)
	}
	return t.Format(displayLayout)
}

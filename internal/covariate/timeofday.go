package covariate

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// Window is a minute-precision time-of-day interval with inclusive bounds.
// Windows may wrap midnight; a point in time is the window [t, t].
type Window struct {
	start int // minutes after midnight, 0..1439
	end   int
}

// ParseWindow reads "HH:MM" or "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	first, second, isRange := strings.Cut(s, "-")
	start, err := parseMinute(strings.TrimSpace(first))
	if err != nil {
		return Window{}, fmt.Errorf("time-of-day %q: %w", s, err)
	}
	end := start
	if isRange {
		end, err = parseMinute(strings.TrimSpace(second))
		if err != nil {
			return Window{}, fmt.Errorf("time-of-day %q: %w", s, err)
		}
	}
	return Window{start: start, end: end}, nil
}

func parseMinute(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("hour out of range in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("minute out of range in %q", s)
	}
	return h*60 + m, nil
}

// String renders the canonical form: zero-padded, point windows collapsed.
func (w Window) String() string {
	if w.start == w.end {
		return minuteString(w.start)
	}
	return minuteString(w.start) + "-" + minuteString(w.end)
}

func minuteString(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// span is the inclusive length in minutes measured forward from start,
// which makes the midnight wrap a plain modular offset.
func (w Window) span() int {
	return (w.end - w.start + minutesPerDay) % minutesPerDay
}

func (w Window) offsetOf(minute int) int {
	return (minute - w.start + minutesPerDay) % minutesPerDay
}

// Covers reports whether the window includes the given minute of the day.
func (w Window) Covers(minute int) bool {
	return w.offsetOf(minute) <= w.span()
}

// Contains reports whether other lies entirely inside w.
func (w Window) Contains(other Window) bool {
	offset := w.offsetOf(other.start)
	return offset <= w.span() && offset+other.span() <= w.span()
}

// Overlaps reports whether the windows share at least one minute.
func (w Window) Overlaps(other Window) bool {
	return w.Covers(other.start) || other.Covers(w.start)
}

// TimeOfDayMatcher compares minute-precision windows. The current window
// must lie entirely inside the baseline's recorded window to conform;
// windows that merely overlap partially conform; disjoint or unparseable
// values do not conform.
type TimeOfDayMatcher struct{}

func (TimeOfDayMatcher) Match(current, baseline string) Conformance {
	if current == Undefined || baseline == Undefined || current == "" || baseline == "" {
		return DoesNotConform
	}
	cur, err := ParseWindow(current)
	if err != nil {
		return DoesNotConform
	}
	base, err := ParseWindow(baseline)
	if err != nil {
		return DoesNotConform
	}
	switch {
	case base.Contains(cur):
		return Conforms
	case base.Overlaps(cur):
		return PartiallyConforms
	default:
		return DoesNotConform
	}
}

func (TimeOfDayMatcher) Canonicalize(value string) string {
	w, err := ParseWindow(value)
	if err != nil {
		return value
	}
	return w.String()
}

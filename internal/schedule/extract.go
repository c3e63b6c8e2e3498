package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches "1.2 07:00–09:00" and "1.2: 07:00 - 09:00" (hyphen, en dash and
// em dash variants, arbitrary whitespace around all tokens).
var intervalRe = regexp.MustCompile(`(\d+\.\d+)\s*[:\-–—]?\s*(\d{1,2}:\d{2})\s*[–\-—]\s*(\d{1,2}:\d{2})`)

// Entry is one raw (subgroup, start, end) triple as it appears in the text.
// Times are untouched "HH:MM" strings; validation happens in ResolveDay.
type Entry struct {
	Subgroup string
	Start    string
	End      string
}

// Extract scans a plain-text document for outage interval entries, in first
// occurrence order. Duplicates are preserved; unmatched text is ignored.
func Extract(text string) []Entry {
	ms := intervalRe.FindAllStringSubmatch(text, -1)
	if len(ms) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		out = append(out, Entry{
			Subgroup: strings.TrimSpace(m[1]),
			Start:    m[2],
			End:      m[3],
		})
	}
	return out
}

// Subgroups returns the distinct subgroup keys of entries, sorted.
func Subgroups(entries []Entry) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Subgroup]; ok {
			continue
		}
		seen[e.Subgroup] = struct{}{}
		out = append(out, e.Subgroup)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Interval is an entry anchored to concrete wall-clock times on one
// calendar day in the civil timezone.
type Interval struct {
	Subgroup string
	Start    time.Time
	End      time.Time
}

// Key is the idempotency key for this interval's alert,
// e.g. "2025-11-02_1.1_0730".
func (iv Interval) Key() string {
	return fmt.Sprintf("%s_%s_%s", iv.Start.Format("2006-01-02"), iv.Subgroup, iv.Start.Format("1504"))
}

// ResolveDay anchors entries to the given day in loc. Entries whose start or
// end does not parse as a valid 24-hour HH:MM are dropped.
func ResolveDay(entries []Entry, day time.Time, loc *time.Location) []Interval {
	y, mo, d := day.In(loc).Date()
	out := make([]Interval, 0, len(entries))
	for _, e := range entries {
		sh, sm, err := parseClock(e.Start)
		if err != nil {
			continue
		}
		eh, em, err := parseClock(e.End)
		if err != nil {
			continue
		}
		out = append(out, Interval{
			Subgroup: e.Subgroup,
			Start:    time.Date(y, mo, d, sh, sm, 0, 0, loc),
			End:      time.Date(y, mo, d, eh, em, 0, 0, loc),
		})
	}
	return out
}

func parseClock(s string) (hour, minute int, err error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0, 0, fmt.Errorf("no colon in %q", s)
	}
	hour, err = strconv.Atoi(s[:i])
	if err != nil {
		return 0, 0, err
	}
	minute, err = strconv.Atoi(s[i+1:])
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock out of range: %q", s)
	}
	return hour, minute, nil
}

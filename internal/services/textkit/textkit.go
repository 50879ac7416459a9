package textkit

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ErrUnparsableTime is returned when a date string matches no known layout.
var ErrUnparsableTime = errors.New("unrecognized date format")

// TextStats holds the counts produced by Analyze.
type TextStats struct {
	Characters         int `json:"characters"`
	CharactersNoSpaces int `json:"charactersNoSpaces"`
	Words              int `json:"words"`
	Sentences          int `json:"sentences"`
	Paragraphs         int `json:"paragraphs"`
	Lines              int `json:"lines"`
}

// Analyze counts characters, words, sentences, paragraphs, and lines.
// Characters are counted as runes, not bytes, so multibyte text is counted
// the way a user would expect.
func Analyze(text string) TextStats {
	stats := TextStats{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
	}

	for _, r := range text {
		if !unicode.IsSpace(r) {
			stats.CharactersNoSpaces++
		}
		if r == '.' || r == '!' || r == '?' {
			stats.Sentences++
		}
	}

	if text != "" {
		stats.Lines = strings.Count(text, "\n") + 1

		for _, block := range strings.Split(text, "\n\n") {
			if strings.TrimSpace(block) != "" {
				stats.Paragraphs++
			}
		}
	}

	return stats
}

// millisecondThreshold separates unix seconds from unix milliseconds.
// Values above it would be dates past the year 33658 as seconds, so they
// are treated as milliseconds.
const millisecondThreshold = 1_000_000_000_000

// TimestampInfo is the result of a timestamp conversion.
type TimestampInfo struct {
	Unix     int64  `json:"unix"`
	UnixMs   int64  `json:"unixMs"`
	UTC      string `json:"utc"`     // RFC 3339
	Weekday  string `json:"weekday"` // e.g. "Monday"
	ISOWeek  int    `json:"isoWeek"`
	Relative string `json:"relative,omitempty"`
}

// FromUnix converts a unix timestamp to its calendar form. Millisecond
// precision inputs are detected by magnitude.
func FromUnix(value int64) TimestampInfo {
	var t time.Time
	if value > millisecondThreshold || value < -millisecondThreshold {
		t = time.UnixMilli(value)
	} else {
		t = time.Unix(value, 0)
	}
	return describe(t.UTC())
}

// timeLayouts are the accepted date formats for FromString, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FromString parses a date string and returns its timestamp forms.
// Layouts without an explicit zone are interpreted as UTC.
func FromString(s string) (TimestampInfo, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return describe(t.UTC()), nil
		}
	}
	return TimestampInfo{}, ErrUnparsableTime
}

func describe(t time.Time) TimestampInfo {
	_, week := t.ISOWeek()
	return TimestampInfo{
		Unix:     t.Unix(),
		UnixMs:   t.UnixMilli(),
		UTC:      t.Format(time.RFC3339),
		Weekday:  t.Weekday().String(),
		ISOWeek:  week,
		Relative: relativeTo(t, time.Now()),
	}
}

// relativeTo renders a coarse human description of the distance between t
// and now, e.g. "3 days ago" or "in 2 hours".
func relativeTo(t, now time.Time) string {
	d := now.Sub(t)
	past := d >= 0
	if !past {
		d = -d
	}

	var phrase string
	switch {
	case d < time.Minute:
		phrase = "less than a minute"
	case d < time.Hour:
		phrase = plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		phrase = plural(int(d.Hours()), "hour")
	case d < 365*24*time.Hour:
		phrase = plural(int(d.Hours()/24), "day")
	default:
		phrase = plural(int(d.Hours()/24/365), "year")
	}

	if past {
		return phrase + " ago"
	}
	return "in " + phrase
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

package textkit

import (
	"testing"
	"time"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want TextStats
	}{
		{
			name: "empty",
			text: "",
			want: TextStats{},
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: TextStats{
				Characters:         12,
				CharactersNoSpaces: 11,
				Words:              2,
				Sentences:          1,
				Paragraphs:         1,
				Lines:              1,
			},
		},
		{
			name: "two paragraphs",
			text: "First one. Still first!\n\nSecond one?",
			want: TextStats{
				Characters:         36,
				CharactersNoSpaces: 30,
				Words:              6,
				Sentences:          3,
				Paragraphs:         2,
				Lines:              3,
			},
		},
		{
			name: "multibyte runes counted once",
			text: "héllo",
			want: TextStats{
				Characters:         5,
				CharactersNoSpaces: 5,
				Words:              1,
				Paragraphs:         1,
				Lines:              1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Analyze(tt.text); got != tt.want {
				t.Errorf("Analyze(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFromUnix_Seconds(t *testing.T) {
	info := FromUnix(1700000000)
	if info.UTC != "2023-11-14T22:13:20Z" {
		t.Errorf("UTC: got %q", info.UTC)
	}
	if info.Unix != 1700000000 {
		t.Errorf("Unix: got %d", info.Unix)
	}
	if info.Weekday != "Tuesday" {
		t.Errorf("Weekday: got %q", info.Weekday)
	}
	if info.ISOWeek != 46 {
		t.Errorf("ISOWeek: got %d, want 46", info.ISOWeek)
	}
	if info.Relative == "" {
		t.Error("Relative: expected a non-empty description")
	}
}

func TestRelativeTo(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-30 * time.Second), "less than a minute ago"},
		{"minutes ago", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour ago", now.Add(-1 * time.Hour), "1 hour ago"},
		{"days ago", now.Add(-72 * time.Hour), "3 days ago"},
		{"future", now.Add(2 * time.Hour), "in 2 hours"},
		{"years ago", now.Add(-2 * 365 * 24 * time.Hour), "2 years ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relativeTo(tt.t, now); got != tt.want {
				t.Errorf("relativeTo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromUnix_MillisecondsAutodetected(t *testing.T) {
	info := FromUnix(1700000000000)
	if info.UTC != "2023-11-14T22:13:20Z" {
		t.Errorf("UTC: got %q", info.UTC)
	}
	if info.UnixMs != 1700000000000 {
		t.Errorf("UnixMs: got %d", info.UnixMs)
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		in       string
		wantUnix int64
	}{
		{"2023-11-14T22:13:20Z", 1700000000},
		{"2023-11-14 22:13:20", 1700000000},
		{"2023-11-14", 1699920000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			info, err := FromString(tt.in)
			if err != nil {
				t.Fatalf("FromString(%q): %v", tt.in, err)
			}
			if info.Unix != tt.wantUnix {
				t.Errorf("Unix: got %d, want %d", info.Unix, tt.wantUnix)
			}
		})
	}
}

func TestFromString_Unparsable(t *testing.T) {
	if _, err := FromString("next tuesday"); err != ErrUnparsableTime {
		t.Fatalf("expected ErrUnparsableTime, got %v", err)
	}
}

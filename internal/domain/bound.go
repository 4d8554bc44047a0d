package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

var dayLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
}

// DateBound is one side of an inclusive publish-time range. It accepts a date
// string or an epoch number (seconds, or milliseconds when large enough).
type DateBound struct {
	raw      string
	at       time.Time
	set      bool
	wholeDay bool
}

// ParseDateBound parses s in the local time zone. An empty string yields an unset bound.
func ParseDateBound(s string) (DateBound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateBound{}, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochBound(s, f), nil
	}

	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return DateBound{raw: s, at: t, set: true, wholeDay: true}, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return DateBound{raw: s, at: t, set: true}, nil
		}
	}
	return DateBound{}, fmt.Errorf("unrecognized date %q", s)
}

// MustDateBound is ParseDateBound for literals.
func MustDateBound(s string) DateBound {
	b, err := ParseDateBound(s)
	if err != nil {
		panic(err)
	}
	return b
}

// EpochBound builds a bound from epoch seconds.
func EpochBound(sec int64) DateBound {
	return epochBound(strconv.FormatInt(sec, 10), float64(sec))
}

func epochBound(raw string, f float64) DateBound {
	if f > 1e12 {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return DateBound{raw: raw, at: time.Unix(int64(sec), int64(frac*1e9)), set: true}
}

func (b DateBound) IsSet() bool { return b.set }

func (b DateBound) String() string { return b.raw }

// Start is the earliest instant the bound admits.
func (b DateBound) Start() time.Time { return b.at }

// End is the latest instant the bound admits; a bare date covers the whole day.
func (b DateBound) End() time.Time {
	if b.wholeDay {
		return b.at.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return b.at
}

func (b *DateBound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = DateBound{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseDateBound(s)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("date bound must be a string or number: %w", err)
	}
	*b = epochBound(string(data), f)
	return nil
}

func (b DateBound) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte(`""`), nil
	}
	return json.Marshal(b.raw)
}

// TimeRange is an inclusive publish-time filter. Unset bounds are open.
type TimeRange struct {
	Earliest DateBound
	Latest   DateBound
}

func (r TimeRange) Contains(t time.Time) bool {
	if r.Earliest.IsSet() && t.Before(r.Earliest.Start()) {
		return false
	}
	if r.Latest.IsSet() && t.After(r.Latest.End()) {
		return false
	}
	return true
}

// Applied returns the instants the range actually admits, formatted in local time;
// an unset side is empty.
func (r TimeRange) Applied() (earliest, latest string) {
	if r.Earliest.IsSet() {
		earliest = r.Earliest.Start().Format(time.DateTime)
	}
	if r.Latest.IsSet() {
		latest = r.Latest.End().Format(time.DateTime)
	}
	return earliest, latest
}

// Valid reports whether the range is non-empty.
func (r TimeRange) Valid() bool {
	if !r.Earliest.IsSet() || !r.Latest.IsSet() {
		return true
	}
	return !r.Earliest.Start().After(r.Latest.End())
}

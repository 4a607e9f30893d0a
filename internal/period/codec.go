package period

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-content/internal/apperr"
)

// Metadata keys written onto period-keyed records.
const (
	KeyWeek             = "week"
	KeyDay              = "day"
	KeyMonth            = "month"
	KeySemester         = "semester"
	KeySemesterName     = "semesterName"
	KeyYear             = "year"
	KeyTimeBasedContent = "timeBasedContent"
)

// Encoding is the codec output for one period of a track type.
type Encoding struct {
	Type       TrackType
	Identifier string
	// Number is the numeric period component. For semester periods it is the
	// leading integer of the label, or 1.
	Number          int
	MetadataKey     string
	SemesterName    string
	Label           string
	NamePrefix      string
	OrderMultiplier int64
}

// Multiplier returns the ordering multiplier of a track type.
func Multiplier(t TrackType) int64 {
	switch t {
	case Days:
		return 100
	case Weeks:
		return 1_000
	case Months:
		return 10_000
	case Semester:
		return 100_000
	case Years:
		return 1_000_000
	}
	return 0
}

// Capacity is the number of items one period can hold. Item indices must stay
// below the next-smaller multiplier so that periods never interleave.
func Capacity(t TrackType) int {
	switch t {
	case Days, Weeks:
		return 100
	case Months:
		return 1_000
	case Semester:
		return 10_000
	case Years:
		return 100_000
	}
	return 0
}

func metadataKey(t TrackType) string {
	switch t {
	case Weeks:
		return KeyWeek
	case Days:
		return KeyDay
	case Months:
		return KeyMonth
	case Semester:
		return KeySemester
	case Years:
		return KeyYear
	}
	return ""
}

// MetadataKey returns the metadata field a track type writes its period into.
func MetadataKey(t TrackType) string { return metadataKey(t) }

// Encode maps a track type and period identifier to its Encoding. Numeric
// track types require a positive integer identifier; semester accepts any
// non-empty label.
func Encode(t TrackType, identifier string) (Encoding, error) {
	id := strings.TrimSpace(identifier)
	if !t.Valid() {
		return Encoding{}, apperr.Newf(apperr.KindInvalidInput, "unknown track type %q", t)
	}
	if id == "" {
		return Encoding{}, apperr.Newf(apperr.KindPeriodOutOfRange, "%s period identifier is required", t)
	}

	enc := Encoding{
		Type:            t,
		Identifier:      id,
		MetadataKey:     metadataKey(t),
		OrderMultiplier: Multiplier(t),
	}

	if t == Semester {
		enc.Number = semesterNumber(id)
		if err := checkMax(t, enc.Number); err != nil {
			return Encoding{}, err
		}
		enc.SemesterName = id
		enc.Label = id
		enc.NamePrefix = fmt.Sprintf("semester%d_", enc.Number)
		return enc, nil
	}

	n, err := strconv.Atoi(id)
	if err != nil {
		return Encoding{}, apperr.Newf(apperr.KindPeriodOutOfRange, "%s period %q is not a number", t, identifier)
	}
	if n <= 0 {
		return Encoding{}, apperr.Newf(apperr.KindPeriodOutOfRange, "%s period must be positive, got %d", t, n)
	}
	if err := checkMax(t, n); err != nil {
		return Encoding{}, err
	}
	enc.Number = n

	switch t {
	case Weeks:
		enc.Label = fmt.Sprintf("Week %d", n)
		enc.NamePrefix = fmt.Sprintf("week%d_", n)
	case Days:
		enc.Label = fmt.Sprintf("Day %d", n)
		enc.NamePrefix = fmt.Sprintf("day%d_", n)
	case Months:
		enc.Label = monthLabel(n)
		enc.NamePrefix = fmt.Sprintf("month%d_", n)
	case Years:
		enc.Label = strconv.Itoa(n)
		enc.NamePrefix = fmt.Sprintf("year%d_", n)
	}
	return enc, nil
}

// MaxYear is the largest accepted years period.
const MaxYear = 9999

// MaxNumber is the largest period number of a track type whose order indices
// still fit in an int64.
func MaxNumber(t TrackType) int64 {
	if t == Years {
		return MaxYear
	}
	m := Multiplier(t)
	if m == 0 {
		return 0
	}
	return (math.MaxInt64 - int64(Capacity(t))) / m
}

func checkMax(t TrackType, n int) error {
	if limit := MaxNumber(t); int64(n) > limit {
		return apperr.New(apperr.KindPeriodOutOfRange,
			fmt.Sprintf("%s period %d exceeds the largest supported value %d", t, n, limit),
			map[string]any{"period": n, "max": limit})
	}
	return nil
}

// EncodeNumber encodes a numeric period.
func EncodeNumber(t TrackType, n int) (Encoding, error) {
	return Encode(t, strconv.Itoa(n))
}

func monthLabel(n int) string {
	if n >= 1 && n <= 12 {
		return time.Month(n).String()
	}
	return fmt.Sprintf("Month %d", n)
}

// semesterNumber returns the leading integer of a semester label, or 1 when
// the label has none ("First Semester" → 1, "2nd Semester" → 2).
func semesterNumber(label string) int {
	n, ok := leadingInt(label)
	if !ok || n == 0 {
		return 1
	}
	return n
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CheckRange validates the period against a track's declared duration.
// Years periods are not bounded by duration.
func (e Encoding) CheckRange(duration int) error {
	if e.Number <= 0 {
		return apperr.Newf(apperr.KindPeriodOutOfRange, "%s period must be positive, got %d", e.Type, e.Number)
	}
	if e.Type == Years || duration <= 0 {
		return nil
	}
	if e.Number > duration {
		return apperr.New(apperr.KindPeriodOutOfRange,
			fmt.Sprintf("%s %d exceeds track duration %d", e.MetadataKey, e.Number, duration),
			map[string]any{"period": e.Number, "duration": duration})
	}
	return nil
}

// OrderIndex returns the ordering index of the item at itemIndex within the period.
func (e Encoding) OrderIndex(itemIndex int) int64 {
	return int64(e.Number)*e.OrderMultiplier + int64(itemIndex)
}

// CheckCapacity fails when n items do not fit into one period.
func (e Encoding) CheckCapacity(n int) error {
	if c := Capacity(e.Type); n > c {
		return apperr.New(apperr.KindCapacityExceeded,
			fmt.Sprintf("%s holds at most %d items, got %d", e.Label, c, n),
			map[string]any{"capacity": c, "count": n})
	}
	return nil
}

// DisplayPrefix is prepended to display names of items in the period.
func (e Encoding) DisplayPrefix() string { return e.Label + " - " }

// Key is the canonical period key, e.g. "weeks:5" or "semester:1".
func (e Encoding) Key() string {
	return fmt.Sprintf("%s:%d", e.Type, e.Number)
}

// Fields returns the metadata fields identifying the period.
func (e Encoding) Fields() map[string]any {
	m := map[string]any{e.MetadataKey: e.Number}
	if e.Type == Semester {
		m[KeySemesterName] = e.SemesterName
	}
	return m
}

// Matches reports whether a record's metadata belongs to this period.
// Semester periods match on either the raw label or the derived number.
func (e Encoding) Matches(meta map[string]any) bool {
	if meta == nil {
		return false
	}
	if e.Type == Semester {
		if name, ok := meta[KeySemesterName].(string); ok && name == e.SemesterName {
			return true
		}
	}
	n, ok := AsInt(meta[e.MetadataKey])
	return ok && n == e.Number
}

// AsInt converts a metadata value to int. Values decoded from JSON arrive as
// float64 or json.Number; numeric strings are accepted as well.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Package period encodes track periods (week, day, month, semester, year) into
// the metadata fields, labels, name prefixes and ordering multipliers used to
// store and sort period-keyed content.
package period

import (
	"fmt"
	"strings"
)

// TrackType is the period granularity a track is declared with. It never
// changes after the track is created.
type TrackType string

const (
	Weeks    TrackType = "weeks"
	Days     TrackType = "days"
	Months   TrackType = "months"
	Semester TrackType = "semester"
	Years    TrackType = "years"
)

// TrackTypes lists every track type in ascending multiplier order.
var TrackTypes = []TrackType{Days, Weeks, Months, Semester, Years}

// ParseTrackType parses a track type name. Matching is case-insensitive.
func ParseTrackType(s string) (TrackType, error) {
	t := TrackType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown track type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the declared track types.
func (t TrackType) Valid() bool {
	switch t {
	case Weeks, Days, Months, Semester, Years:
		return true
	}
	return false
}

func (t TrackType) String() string { return string(t) }

// Access is how a track's period relates to its question content.
type Access int

const (
	// Direct tracks store content keyed by the period itself.
	Direct Access = iota
	// Indirect tracks store an ordered topic assignment list per period;
	// questions are aggregated from the assigned topics at read time.
	Indirect
)

func (a Access) String() string {
	if a == Indirect {
		return "indirect"
	}
	return "direct"
}

// Access returns the content access model of the track type.
func (t TrackType) Access() Access {
	switch t {
	case Weeks, Days, Semester:
		return Indirect
	default:
		return Direct
	}
}

// TimePeriod is the period vocabulary of topic assignments.
type TimePeriod string

const (
	Week         TimePeriod = "week"
	Day          TimePeriod = "day"
	SemesterTerm TimePeriod = "semester"
)

// TimePeriod returns the assignment vocabulary for an indirect track type.
// ok is false for direct track types.
func (t TrackType) TimePeriod() (TimePeriod, bool) {
	switch t {
	case Weeks:
		return Week, true
	case Days:
		return Day, true
	case Semester:
		return SemesterTerm, true
	}
	return "", false
}

// ParseTimePeriod parses an assignment time period, also accepting the plural
// track type spelling ("weeks" → week).
func ParseTimePeriod(s string) (TimePeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "weeks":
		return Week, nil
	case "day", "days":
		return Day, nil
	case "semester", "semesters":
		return SemesterTerm, nil
	}
	return "", fmt.Errorf("unknown time period %q", s)
}

// TrackType maps the assignment vocabulary back to its track type.
func (p TimePeriod) TrackType() TrackType {
	switch p {
	case Week:
		return Weeks
	case Day:
		return Days
	default:
		return Semester
	}
}

// GroupBy is a Grouping View dimension.
type GroupBy string

const (
	ByTopic    GroupBy = "topic"
	ByWeek     GroupBy = "week"
	ByDay      GroupBy = "day"
	ByMonth    GroupBy = "month"
	BySemester GroupBy = "semester"
	ByYear     GroupBy = "year"
)

// ParseGroupBy parses a grouping dimension.
func ParseGroupBy(s string) (GroupBy, error) {
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case ByTopic, ByWeek, ByDay, ByMonth, BySemester, ByYear:
		return g, nil
	}
	return "", fmt.Errorf("unknown group by %q", s)
}

// TrackType returns the track type whose metadata key the dimension groups on.
// ok is false for ByTopic.
func (g GroupBy) TrackType() (TrackType, bool) {
	switch g {
	case ByWeek:
		return Weeks, true
	case ByDay:
		return Days, true
	case ByMonth:
		return Months, true
	case BySemester:
		return Semester, true
	case ByYear:
		return Years, true
	}
	return "", false
}

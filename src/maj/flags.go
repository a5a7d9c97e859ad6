package maj

import "strings"

// Flags routes a coop into leaderboard sections. A coop may carry several.
type Flags uint8

// Coop flags
const (
	SpeedRun Flags = 1 << iota
	FastRun
	AnyGrade
	Carry
)

// AllFlags is every known flag.
const AllFlags = SpeedRun | FastRun | AnyGrade | Carry

// DefaultFlags is used when no section is requested.
const DefaultFlags = SpeedRun | FastRun

var flagNames = []struct {
	flag Flags
	name string
}{
	{SpeedRun, "SpeedRun"},
	{FastRun, "FastRun"},
	{AnyGrade, "AnyGrade"},
	{Carry, "Carry"},
}

// Has reports whether every flag in o is set.
func (f Flags) Has(o Flags) bool {
	return f&o == o && o != 0
}

// Intersects reports whether f and o share a flag.
func (f Flags) Intersects(o Flags) bool {
	return f&o != 0
}

// Each calls fn for every set flag in display order.
func (f Flags) Each(fn func(Flags)) {
	for _, n := range flagNames {
		if f&n.flag != 0 {
			fn(n.flag)
		}
	}
}

func (f Flags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses a comma or pipe separated list of flag names.
func ParseFlags(s string) (Flags, bool) {
	var f Flags
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' }) {
		found := false
		for _, n := range flagNames {
			if strings.EqualFold(part, n.name) {
				f |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return f, true
}

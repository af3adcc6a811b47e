// Package shift buckets scan timestamps into the three fixed 8-hour work shifts.
package shift

import (
	"fmt"
	"time"
)

// Shift is one of the three reporting windows of a day.
type Shift int

const (
	Morning Shift = iota // 08:00-16:00
	Evening              // 16:00-24:00
	Night                // 00:00-08:00
)

// All lists the shifts in report order.
var All = [...]Shift{Morning, Evening, Night}

// Of returns the shift containing t, using the hour of t in its own location.
// Callers convert t with In(loc) first when a specific zone is wanted.
func Of(t time.Time) Shift {
	h := t.Hour()
	switch {
	case h >= 8 && h < 16:
		return Morning
	case h >= 16:
		return Evening
	default:
		return Night
	}
}

// In is Of after converting t to loc. A nil loc means time.Local.
func In(t time.Time, loc *time.Location) Shift {
	if loc == nil {
		loc = time.Local
	}
	return Of(t.In(loc))
}

func (s Shift) String() string {
	switch s {
	case Morning:
		return "morning"
	case Evening:
		return "evening"
	case Night:
		return "night"
	}
	return fmt.Sprintf("Shift(%d)", int(s))
}

// Label is the human readable hour range shown in reports and exports.
func (s Shift) Label() string {
	switch s {
	case Morning:
		return "08:00 - 16:00"
	case Evening:
		return "16:00 - 24:00"
	case Night:
		return "00:00 - 08:00"
	}
	return ""
}

// Valid reports whether s is one of Morning, Evening or Night.
func (s Shift) Valid() bool {
	return s >= Morning && s <= Night
}

func (s Shift) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid shift %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Shift) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Parse accepts the names produced by String.
func Parse(name string) (Shift, error) {
	for _, s := range All {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown shift %q", name)
}

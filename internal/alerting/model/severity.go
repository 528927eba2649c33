package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the ranked impact of an incident. The zero value is SeverityNone.
// Ordering is by rank only; labels are for display.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMajor
	SeverityCritical
)

// Levels lists every alerting severity from most to least severe.
var Levels = []Severity{SeverityCritical, SeverityMajor, SeverityLow}

func (s Severity) Valid() bool { return s >= SeverityNone && s <= SeverityCritical }

// Above reports whether s strictly outranks other.
func (s Severity) Above(other Severity) bool { return s > other }

// Name is the lowercase identifier used in config and JSON.
func (s Severity) Name() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Code returns the paging level code (P0..P2); empty for SeverityNone.
func (s Severity) Code() string {
	switch s {
	case SeverityLow:
		return "P2"
	case SeverityMajor:
		return "P1"
	case SeverityCritical:
		return "P0"
	default:
		return ""
	}
}

// Label is the human readable form used in notifications and logs.
func (s Severity) Label() string {
	switch s {
	case SeverityNone:
		return "No Alert"
	case SeverityLow:
		return "P2 (Minor)"
	case SeverityMajor:
		return "P1 (Major)"
	case SeverityCritical:
		return "P0 (Critical)"
	default:
		return s.Name()
	}
}

func (s Severity) String() string { return s.Name() }

// ParseSeverity accepts names (none, low, major, critical) and codes (P0, P1, P2).
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "no_alert", "":
		return SeverityNone, nil
	case "low", "minor", "p2":
		return SeverityLow, nil
	case "major", "p1":
		return SeverityMajor, nil
	case "critical", "p0":
		return SeverityCritical, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity %q", raw)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.Name()) }

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

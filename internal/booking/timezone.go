package booking

import (
	"strings"
	"time"
	_ "time/tzdata"
)

var stateTimezones = map[string]string{
	// Eastern
	"CT": "America/New_York", "DE": "America/New_York", "DC": "America/New_York", "FL": "America/New_York",
	"GA": "America/New_York", "ME": "America/New_York", "MD": "America/New_York", "MA": "America/New_York",
	"NH": "America/New_York", "NJ": "America/New_York", "NY": "America/New_York", "NC": "America/New_York",
	"OH": "America/New_York", "PA": "America/New_York", "RI": "America/New_York", "SC": "America/New_York",
	"VT": "America/New_York", "VA": "America/New_York", "WV": "America/New_York", "MI": "America/New_York",
	"IN": "America/New_York", "KY": "America/New_York",
	// Central
	"AL": "America/Chicago", "AR": "America/Chicago", "IL": "America/Chicago", "IA": "America/Chicago",
	"LA": "America/Chicago", "MN": "America/Chicago", "MS": "America/Chicago", "MO": "America/Chicago",
	"OK": "America/Chicago", "WI": "America/Chicago", "TX": "America/Chicago", "TN": "America/Chicago",
	"KS": "America/Chicago", "NE": "America/Chicago", "SD": "America/Chicago", "ND": "America/Chicago",
	// Mountain
	"AZ": "America/Phoenix", "CO": "America/Denver", "ID": "America/Denver", "MT": "America/Denver",
	"NM": "America/Denver", "UT": "America/Denver", "WY": "America/Denver",
	// Pacific
	"CA": "America/Los_Angeles", "NV": "America/Los_Angeles", "OR": "America/Los_Angeles", "WA": "America/Los_Angeles",
	"AK": "America/Anchorage", "HI": "Pacific/Honolulu",
}

// TimezoneForState returns the IANA zone for a US state code, or "".
func TimezoneForState(state string) string {
	return stateTimezones[strings.ToUpper(strings.TrimSpace(state))]
}

// ResolveLocation picks the zone a wall-clock time was chosen in: the
// browser-reported IANA name, else the client's state, else fallback, else UTC.
func ResolveLocation(name, state string, fallback *time.Location) *time.Location {
	if name = strings.TrimSpace(name); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if tz := TimezoneForState(state); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}

package recon

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/openfreight/linehaul/internal/loads"
)

// Cadence is how often a paying entity settles.
type Cadence string

const (
	CadenceWeekly Cadence = "weekly"
	CadenceDaily  Cadence = "daily"
)

// Schedule describes a paying entity's settlement pattern.
type Schedule struct {
	Cadence    Cadence
	Cycle      string
	FeePercent float64
	Method     loads.PaymentMethod
}

// carrierSchedules is intentionally small and hardcoded; per-carrier
// configuration would replace it if the carrier list ever grows.
var carrierSchedules = map[string]Schedule{
	"CanAmex": {
		Cadence:    CadenceWeekly,
		Cycle:      "Sunday-Saturday",
		FeePercent: 12.0,
		Method:     loads.MethodDirectPay,
	},
	"Treadstone Capital": {
		Cadence:    CadenceDaily,
		Cycle:      "next-day",
		FeePercent: 3.0,
		Method:     loads.MethodFactored,
	},
}

// ScheduleFor looks up the settlement schedule for a paying entity. Unknown
// entities return ok=false; callers must fall back to generic behaviour, not
// assume presence.
func ScheduleFor(entity string) (Schedule, bool) {
	s, ok := carrierSchedules[entity]
	return s, ok
}

// SuggestEntity returns the closest known entity name for a lookup miss, or
// empty when nothing is plausibly close. Helps operators catch typos like
// "CanAmx" without guessing on their behalf.
func SuggestEntity(entity string) string {
	const maxDistance = 3
	best := ""
	bestDist := maxDistance + 1
	needle := strings.ToLower(entity)
	for name := range carrierSchedules {
		dist := levenshtein.ComputeDistance(needle, strings.ToLower(name))
		if dist < bestDist {
			bestDist = dist
			best = name
		}
	}
	if bestDist > maxDistance {
		return ""
	}
	return best
}

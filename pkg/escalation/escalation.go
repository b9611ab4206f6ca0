// Package escalation implements the severity- and time-driven escalation
// engine: a periodic sweep promotes open alerts through escalation levels,
// resolving the recipient tier by priority and enforcing three independent
// cooldown layers before dispatching SMS (spec §4.6).
package escalation

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/frostguard/core/internal/db"
)

// Result is what one escalate call reports back to its caller (scheduler
// tick or manual HTTP trigger), mirroring the spec's `{success, newLevel,
// smsQueued, skipReason?}` contract.
type Result struct {
	Success    bool
	NewLevel   int32
	SMSQueued  int
	SkipReason string
}

func skip(reason string) Result { return Result{Success: false, SkipReason: reason} }

// Options controls manual-vs-automatic escalate behavior (spec §4.6 "Manual
// escalate").
type Options struct {
	Manual      bool
	TargetLevel int32 // only consulted when Manual is true
	Actor       string
}

// priorityThresholdFor resolves rule.priorityThresholdFor(severity, level)
// from the policy's PriorityThresholds JSON map (keyed by level as a
// string). If no entry exists for the exact level, the nearest lower level's
// threshold applies (a policy need not define every level individually); if
// none is defined at all, every active contact is notified (MaxInt32) —
// an Open Question resolved this way so a policy missing thresholds entirely
// degrades to "notify everyone" rather than silently notifying no one.
func priorityThresholdFor(policy db.EscalationPolicy, level int32) int32 {
	var thresholds map[string]int32
	if len(policy.PriorityThresholds) == 0 {
		return math.MaxInt32
	}
	if err := json.Unmarshal(policy.PriorityThresholds, &thresholds); err != nil || len(thresholds) == 0 {
		return math.MaxInt32
	}

	best := int32(-1)
	bestLevel := int32(-1)
	for key, threshold := range thresholds {
		lvl, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			continue
		}
		l := int32(lvl)
		if l <= level && l > bestLevel {
			bestLevel = l
			best = threshold
		}
	}
	if best < 0 {
		return math.MaxInt32
	}
	return best
}

package escalation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/frostguard/core/internal/db"
)

func policyWithThresholds(t *testing.T, m map[string]int32) db.EscalationPolicy {
	t.Helper()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling thresholds: %v", err)
	}
	return db.EscalationPolicy{PriorityThresholds: raw}
}

func TestPriorityThresholdForExactLevel(t *testing.T) {
	p := policyWithThresholds(t, map[string]int32{"1": 50, "2": 100})
	if got := priorityThresholdFor(p, 2); got != 100 {
		t.Fatalf("threshold for level 2 = %d, want 100", got)
	}
}

func TestPriorityThresholdForFallsBackToLowerLevel(t *testing.T) {
	p := policyWithThresholds(t, map[string]int32{"1": 50, "3": 200})
	if got := priorityThresholdFor(p, 2); got != 50 {
		t.Fatalf("threshold for level 2 = %d, want 50 (nearest lower defined level)", got)
	}
}

func TestPriorityThresholdForNoMatchingLevelNotifiesEveryone(t *testing.T) {
	p := policyWithThresholds(t, map[string]int32{"5": 10})
	if got := priorityThresholdFor(p, 1); got != math.MaxInt32 {
		t.Fatalf("threshold for level 1 with only a level-5 entry = %d, want MaxInt32", got)
	}
}

func TestPriorityThresholdForEmptyPolicyNotifiesEveryone(t *testing.T) {
	p := db.EscalationPolicy{}
	if got := priorityThresholdFor(p, 1); got != math.MaxInt32 {
		t.Fatalf("threshold for an empty policy = %d, want MaxInt32", got)
	}
}

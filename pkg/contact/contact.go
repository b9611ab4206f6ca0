// Package contact wraps the EscalationContact store with the validation and
// ordering rules the Escalation Engine depends on (spec §4.6 step 6).
package contact

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
)

type Store struct {
	Queries *db.Queries
}

func New(q *db.Queries) *Store {
	return &Store{Queries: q}
}

// Create validates the phone is E.164 before persisting (spec §4.6 step 6
// rejects non-E.164 numbers at dispatch time; validating at creation time
// catches the mistake earlier).
func (s *Store) Create(ctx context.Context, p db.CreateEscalationContactParams) (db.EscalationContact, error) {
	if !IsE164(p.Phone) {
		return db.EscalationContact{}, apperr.InvalidInput("phone is not in E.164 format", map[string]string{"phone": p.Phone})
	}
	return s.Queries.CreateEscalationContact(ctx, p)
}

// TierFor returns the active contacts eligible for a given priority
// threshold, ascending by priority (spec §4.6 step 5).
func (s *Store) TierFor(ctx context.Context, tenantID uuid.UUID, priorityThreshold int32) ([]db.EscalationContact, error) {
	return s.Queries.ListActiveContactsByPriority(ctx, tenantID, priorityThreshold)
}

// IsE164 reports whether phone looks like an E.164 number: a leading '+'
// followed by 1 to 15 digits.
func IsE164(phone string) bool {
	if !strings.HasPrefix(phone, "+") || len(phone) < 2 {
		return false
	}
	digits := phone[1:]
	if len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

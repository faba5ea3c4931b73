package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glucoguard/glucoguard/internal/datastore/repository"
)

// DedupGate enforces per-(patient, rule type) cooldowns by consulting the
// notification log. The most recent record anchors the cooldown regardless
// of its outcome: a failed or mock attempt suppresses re-firing the same as
// a delivered one, which prevents notification storms when the channel is
// broken.
//
// The check-then-act sequence is not atomic against a concurrent run for the
// same rule. At-least-once firing is accepted; cooldowns are large relative
// to scheduling cadences, so duplicates are rare rather than impossible.
type DedupGate struct {
	notifications repository.NotificationRepository
}

// NewDedupGate creates a gate over the given notification log.
func NewDedupGate(notifications repository.NotificationRepository) *DedupGate {
	return &DedupGate{notifications: notifications}
}

// Admit reports whether the candidate may proceed: true when no record
// exists for the (patient, rule type) pair or the cooldown has elapsed.
func (g *DedupGate) Admit(ctx context.Context, candidate Candidate, cooldown time.Duration, now time.Time) (bool, error) {
	record, err := g.notifications.MostRecent(ctx, candidate.PatientID, candidate.RuleType)
	if err != nil {
		if errors.Is(err, repository.ErrNoNotifications) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check cooldown for patient %s rule %s: %w",
			candidate.PatientID, candidate.RuleType, err)
	}
	return now.Sub(record.FiredAt) >= cooldown, nil
}

package alerting

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
	"github.com/glucoguard/glucoguard/internal/datastore/repository"
	"github.com/glucoguard/glucoguard/internal/logger"
	"github.com/glucoguard/glucoguard/internal/push"
)

// dispatchStripes is the number of mutex stripes serializing audit writes
// for the same (patient, rule type) key.
const dispatchStripes = 64

// keyedMutex serializes work per string key using a fixed set of stripes.
type keyedMutex struct {
	stripes [dispatchStripes]sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // fnv Write never fails
	m := &k.stripes[h.Sum32()%dispatchStripes]
	m.Lock()
	return m
}

// Dispatcher sends rendered content through the push channel and appends
// exactly one notification record per attempt, whatever the outcome. The
// record is what makes the dedup gate's most-recent lookup correct even when
// delivery fails.
type Dispatcher struct {
	sender        push.Sender // nil means no channel configured: mock mode
	notifications repository.NotificationRepository
	log           logger.Logger
	keys          keyedMutex
}

// NewDispatcher creates a dispatcher. A nil sender puts the dispatcher in
// mock mode: every dispatch is recorded with the mock outcome and nothing
// leaves the process.
func NewDispatcher(sender push.Sender, notifications repository.NotificationRepository, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender:        sender,
		notifications: notifications,
		log:           log,
	}
}

// Dispatch attempts delivery and records the outcome. Writes for the same
// (patient, rule type) pair are serialized so concurrent runs cannot
// interleave their check-then-append sequences for one key.
func (d *Dispatcher) Dispatch(ctx context.Context, candidate Candidate, resolution *Resolution, content Content) (string, error) {
	mu := d.keys.lock(candidate.PatientID + "\x00" + candidate.RuleType)
	defer mu.Unlock()

	outcome := OutcomeMock
	metadata := map[string]string{}

	if d.sender == nil {
		metadata["mock"] = "true"
	} else {
		messageID, err := d.sender.Send(ctx, resolution.Token, content.Title, content.Body)
		if err != nil {
			outcome = OutcomeFailed
			metadata["error"] = err.Error()
			d.log.Warn("push delivery failed",
				logger.String("user_id", candidate.PatientID),
				logger.String("rule_type", candidate.RuleType),
				logger.Error(err))
		} else {
			outcome = OutcomeSent
			metadata["message_id"] = messageID
		}
	}

	record := &entities.NotificationRecord{
		UserID:   candidate.PatientID,
		RuleType: candidate.RuleType,
		FiredAt:  time.Now().UTC(),
		Outcome:  outcome,
		Title:    content.Title,
		Body:     content.Body,
		Metadata: metadata,
	}
	if err := d.notifications.Append(ctx, record); err != nil {
		return outcome, fmt.Errorf("failed to record notification outcome %s: %w", outcome, err)
	}
	return outcome, nil
}

package alerting

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glucoguard/glucoguard/internal/datastore/repository"
	"github.com/glucoguard/glucoguard/internal/logger"
	"github.com/glucoguard/glucoguard/internal/metrics"
)

const (
	// cleanupTimeout is the context deadline for the periodic record pruning.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the retention cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour
)

// CandidateResult reports the terminal status of one candidate's pipeline.
// Status is one of the dispatch outcomes (sent/failed/mock) or
// suppressed/rejected/error; Reason carries the rejection reason or error
// text where applicable.
type CandidateResult struct {
	Candidate Candidate
	Status    string
	Reason    string
}

// Engine runs the candidate pipeline for each rule: evaluate, admit through
// the dedup gate, resolve preferences, render content, dispatch, record.
type Engine struct {
	catalog       *Catalog
	signals       SignalSource
	notifications repository.NotificationRepository
	gate          *DedupGate
	preferences   *PreferenceResolver
	content       *ContentResolver
	dispatcher    *Dispatcher
	log           logger.Logger
	workers       int

	cleanupStop chan struct{}
	cleanupMu   sync.Mutex
}

// NewEngine wires the pipeline components.
func NewEngine(
	catalog *Catalog,
	signals SignalSource,
	notifications repository.NotificationRepository,
	preferences *PreferenceResolver,
	content *ContentResolver,
	dispatcher *Dispatcher,
	workers int,
	log logger.Logger,
) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		catalog:       catalog,
		signals:       signals,
		notifications: notifications,
		gate:          NewDedupGate(notifications),
		preferences:   preferences,
		content:       content,
		dispatcher:    dispatcher,
		workers:       workers,
		log:           log,
	}
}

// Catalog returns the engine's rule catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// RunRule runs one full evaluation tick for the rule against all active
// patients. An evaluation error abandons the tick; errors inside a single
// candidate's pipeline are logged and reported in the result, never aborting
// the batch for other patients.
func (e *Engine) RunRule(ctx context.Context, ruleType string) ([]CandidateResult, error) {
	return e.run(ctx, ruleType, "")
}

// RunRuleForUser runs the rule for a single patient through the exact same
// pipeline. This is the operator entrypoint for testing one rule without
// waiting for the scheduler.
func (e *Engine) RunRuleForUser(ctx context.Context, ruleType, userID string) ([]CandidateResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID must not be empty")
	}
	return e.run(ctx, ruleType, userID)
}

func (e *Engine) run(ctx context.Context, ruleType, onlyUser string) ([]CandidateResult, error) {
	rule, ok := e.catalog.Get(ruleType)
	if !ok {
		return nil, fmt.Errorf("unknown alert rule type %q", ruleType)
	}

	now := time.Now().UTC()
	start := now
	defer func() {
		metrics.TickDuration.WithLabelValues(rule.Type).Observe(time.Since(start).Seconds())
	}()

	patients, err := e.patientScope(ctx, rule, onlyUser, now)
	if err != nil {
		metrics.EvaluationErrors.WithLabelValues(rule.Type).Inc()
		return nil, err
	}
	if len(patients) == 0 {
		return nil, nil
	}

	candidates, err := rule.Evaluate(ctx, e.signals, patients, now)
	if err != nil {
		metrics.EvaluationErrors.WithLabelValues(rule.Type).Inc()
		return nil, fmt.Errorf("evaluation of rule %s failed: %w", rule.Type, err)
	}
	metrics.CandidatesEvaluated.WithLabelValues(rule.Type).Add(float64(len(candidates)))

	results := make([]CandidateResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range candidates {
		g.Go(func() error {
			results[i] = e.processCandidate(ctx, rule, candidates[i], now)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	return results, nil
}

// patientScope returns the patients a tick evaluates. For a full tick this
// is every active patient minus those with a notification for this rule
// inside its cooldown; that exclusion is a query-level fast path only, the
// dedup gate stays authoritative for each admitted candidate.
func (e *Engine) patientScope(ctx context.Context, rule *AlertRule, onlyUser string, now time.Time) ([]string, error) {
	if onlyUser != "" {
		return []string{onlyUser}, nil
	}
	patients, err := e.signals.ActivePatientIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active patients: %w", err)
	}
	recent, err := e.notifications.RecentlyNotifiedSince(ctx, rule.Type, now.Add(-rule.Cooldown))
	if err != nil {
		return nil, fmt.Errorf("failed to query recently notified patients: %w", err)
	}
	if len(recent) == 0 {
		return patients, nil
	}
	skip := make(map[string]struct{}, len(recent))
	for _, id := range recent {
		skip[id] = struct{}{}
	}
	return slices.DeleteFunc(patients, func(id string) bool {
		_, ok := skip[id]
		return ok
	}), nil
}

// processCandidate runs one candidate through admit → resolve → render →
// dispatch. Suppressed and rejected candidates terminate without an audit
// record; every dispatch attempt terminates with exactly one.
func (e *Engine) processCandidate(ctx context.Context, rule *AlertRule, candidate Candidate, now time.Time) CandidateResult {
	admitted, err := e.gate.Admit(ctx, candidate, rule.Cooldown, now)
	if err != nil {
		e.log.Error("dedup gate check failed",
			logger.String("user_id", candidate.PatientID),
			logger.String("rule_type", candidate.RuleType),
			logger.Error(err))
		return CandidateResult{Candidate: candidate, Status: StatusError, Reason: err.Error()}
	}
	if !admitted {
		metrics.CandidatesSuppressed.WithLabelValues(rule.Type).Inc()
		return CandidateResult{Candidate: candidate, Status: StatusSuppressed}
	}

	resolution, reason, err := e.preferences.Resolve(ctx, candidate.PatientID, rule.Category)
	if err != nil {
		e.log.Error("preference resolution failed",
			logger.String("user_id", candidate.PatientID),
			logger.String("rule_type", candidate.RuleType),
			logger.Error(err))
		return CandidateResult{Candidate: candidate, Status: StatusError, Reason: err.Error()}
	}
	if reason != "" {
		metrics.CandidatesRejected.WithLabelValues(rule.Type, reason).Inc()
		return CandidateResult{Candidate: candidate, Status: StatusRejected, Reason: reason}
	}

	content := e.content.Render(rule.Type, resolution.Locale, candidate.Params)

	outcome, err := e.dispatcher.Dispatch(ctx, candidate, resolution, content)
	if err != nil {
		// Delivery may have happened but the record write failed; the next
		// tick will re-propose the candidate.
		e.log.Error("dispatch record write failed",
			logger.String("user_id", candidate.PatientID),
			logger.String("rule_type", candidate.RuleType),
			logger.String("outcome", outcome),
			logger.Error(err))
		return CandidateResult{Candidate: candidate, Status: StatusError, Reason: err.Error()}
	}
	metrics.DispatchOutcomes.WithLabelValues(rule.Type, outcome).Inc()
	e.log.Info("notification dispatched",
		logger.String("user_id", candidate.PatientID),
		logger.String("rule_type", candidate.RuleType),
		logger.String("outcome", outcome))
	return CandidateResult{Candidate: candidate, Status: outcome}
}

// StartRetentionCleanup starts a background goroutine pruning notification
// records older than retention. A zero retention disables pruning, which is
// the safe default since the notification log doubles as cooldown state.
func (e *Engine) StartRetentionCleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	e.stopCleanup()
	e.cleanupMu.Lock()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	e.cleanupMu.Unlock()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
				deleted, err := e.notifications.DeleteBefore(cleanupCtx, cutoff)
				cancel()
				if err != nil {
					e.log.Error("notification record cleanup failed", logger.Error(err))
				} else if deleted > 0 {
					metrics.RecordsPruned.Add(float64(deleted))
					e.log.Info("notification record cleanup completed",
						logger.Int64("deleted", deleted),
						logger.Duration("retention", retention))
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// stopCleanup signals the cleanup goroutine to exit. The mutex makes the
// nil-check-then-close atomic so Stop and StartRetentionCleanup cannot race
// into a double close.
func (e *Engine) stopCleanup() {
	e.cleanupMu.Lock()
	ch := e.cleanupStop
	e.cleanupStop = nil
	e.cleanupMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopCleanup()
}

package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// SignalSource is read-only access to patient health signals. Satisfied by
// repository.SignalRepository; abstracted here so evaluators are testable
// against fixture data.
type SignalSource interface {
	RecentReadings(ctx context.Context, patientID string, since time.Time) ([]entities.GlucoseReading, error)
	RecentMeals(ctx context.Context, patientID string, since time.Time) ([]entities.MealEntry, error)
	LatestRiskScore(ctx context.Context, patientID string) (*entities.RiskScore, error)
	ActivePatientIDs(ctx context.Context) ([]string, error)
}

// Candidate is a proposed, not-yet-admitted notification trigger for one
// patient and one rule. It lives for a single evaluation cycle.
type Candidate struct {
	PatientID string
	RuleType  string
	Params    map[string]any
}

// EvaluateFunc computes the candidates satisfying a rule's trigger condition
// at the evaluation instant. It must be a pure function of the signal source
// and now; the dedup gate, not the evaluator, is authoritative for cooldown.
type EvaluateFunc func(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error)

// AlertRule is one static entry in the rule catalog, immutable for the
// process lifetime.
type AlertRule struct {
	Type     string
	Category string
	Cooldown time.Duration
	Evaluate EvaluateFunc
}

// Catalog is the fixed registry of alert rules the engine evaluates.
type Catalog struct {
	rules map[string]*AlertRule
	order []string
}

// NewCatalog builds a catalog from the given rules. Duplicate or incomplete
// rule definitions are programming errors and panic at startup.
func NewCatalog(rules ...*AlertRule) *Catalog {
	c := &Catalog{rules: make(map[string]*AlertRule, len(rules))}
	for _, r := range rules {
		if r.Type == "" || r.Category == "" || r.Cooldown <= 0 || r.Evaluate == nil {
			panic(fmt.Sprintf("incomplete alert rule definition: %+v", r))
		}
		if _, exists := c.rules[r.Type]; exists {
			panic(fmt.Sprintf("duplicate alert rule type %q", r.Type))
		}
		c.rules[r.Type] = r
		c.order = append(c.order, r.Type)
	}
	return c
}

// Get returns the rule for the given type.
func (c *Catalog) Get(ruleType string) (*AlertRule, bool) {
	r, ok := c.rules[ruleType]
	return r, ok
}

// All returns the rules in registration order.
func (c *Catalog) All() []*AlertRule {
	out := make([]*AlertRule, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.rules[t])
	}
	return out
}

// MaxCooldown returns the longest cooldown in the catalog.
func (c *Catalog) MaxCooldown() time.Duration {
	var maxCd time.Duration
	for _, r := range c.rules {
		if r.Cooldown > maxCd {
			maxCd = r.Cooldown
		}
	}
	return maxCd
}

package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/glucoguard/glucoguard/internal/logger"
)

// CadenceFunc returns the evaluation interval for a rule type. Cadence is
// operational configuration, not part of rule identity: the same rule can
// run hourly or daily depending on deployment.
type CadenceFunc func(ruleType string) time.Duration

// Scheduler runs each catalog rule on its own independent periodic timer.
// One rule's tick never blocks another rule's timer, and a slow or failing
// rule only delays itself.
type Scheduler struct {
	engine  *Engine
	cadence CadenceFunc
	log     logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler over the engine's rule catalog.
func NewScheduler(engine *Engine, cadence CadenceFunc, log logger.Logger) *Scheduler {
	return &Scheduler{engine: engine, cadence: cadence, log: log}
}

// Start launches one timer goroutine per rule. Each rule runs once
// immediately, then on its cadence.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, rule := range s.engine.Catalog().All() {
		s.wg.Add(1)
		go s.loop(ctx, rule.Type, s.cadence(rule.Type))
	}
}

// Stop prevents new ticks and waits for in-flight runs to finish, so no
// candidate ends up evaluated but unrecorded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, ruleType string, cadence time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	s.tick(ctx, ruleType)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, ruleType)
		}
	}
}

// tick runs one evaluation cycle. The run itself is detached from the loop
// context so cancellation stops future ticks without interrupting a dispatch
// already in flight.
func (s *Scheduler) tick(ctx context.Context, ruleType string) {
	if ctx.Err() != nil {
		return
	}
	results, err := s.engine.RunRule(context.WithoutCancel(ctx), ruleType)
	if err != nil {
		s.log.Error("rule tick abandoned",
			logger.String("rule_type", ruleType),
			logger.Error(err))
		return
	}
	if len(results) > 0 {
		s.log.Debug("rule tick completed",
			logger.String("rule_type", ruleType),
			logger.Int("candidates", len(results)))
	}
}

package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iraqaf/assurance/internal/catalog"
	"github.com/iraqaf/assurance/internal/changedetect"
	"github.com/iraqaf/assurance/internal/config"
	"github.com/iraqaf/assurance/internal/eventbus"
	"github.com/iraqaf/assurance/internal/evidence"
	"github.com/iraqaf/assurance/internal/gap"
	"github.com/iraqaf/assurance/internal/impact"
	"github.com/iraqaf/assurance/internal/models"
	"github.com/iraqaf/assurance/internal/notify"
	"github.com/iraqaf/assurance/internal/scorer"
	"github.com/iraqaf/assurance/internal/store"
)

// ErrCycleInProgress is returned when RunCycle is called while a cycle is
// already executing. Cycles never overlap; the caller retries next tick.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Catalog is the requirement source the engine consumes plus the mutations
// the change-detection stage applies to it.
type Catalog interface {
	catalog.Source
	Publish(req *models.Requirement) error
	Retire(requirementID string) error
}

// Engine drives the monitoring cycle: detect changes, assess impact,
// re-score, analyze gaps, notify, report. One cycle runs at a time.
type Engine struct {
	cfg *config.Config

	catalog  Catalog
	evidence evidence.Source
	store    store.Store

	scorer   *scorer.Scorer
	pool     *scorer.Pool
	analyzer *gap.Analyzer
	detector *changedetect.Detector
	assessor *impact.Assessor
	router   *notify.Router

	// publisher and subscriber are optional; standalone runs work without
	// an event bus
	publisher  *eventbus.Publisher
	subscriber *eventbus.Subscriber

	Now func() time.Time

	// cycleMu serializes cycles; TryLock gives ErrCycleInProgress
	cycleMu sync.Mutex

	stateMu sync.RWMutex
	state   models.CycleState

	// pending buffers updates submitted directly, outside the event bus
	pendingMu sync.Mutex
	pending   []*eventbus.RegulatoryUpdateEvent

	stopCh chan struct{}
	doneCh chan struct{}
}

// Deps carries the engine's collaborators. Catalog, Evidence and Store are
// required; Publisher and Subscriber may be nil.
type Deps struct {
	Catalog    Catalog
	Evidence   evidence.Source
	Store      store.Store
	Registry   changedetect.Registry
	Router     *notify.Router
	Publisher  *eventbus.Publisher
	Subscriber *eventbus.Subscriber
}

// New assembles the engine from configuration. The scorer, impact assessor
// and scoring pool share one keyed lock set so forced re-scoring serializes
// with the parallel scoring run per requirement.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	analyzer, err := gap.NewAnalyzer(cfg.GapThreshold, cfg.TargetScore)
	if err != nil {
		return nil, err
	}

	s := scorer.NewScorer()
	locks := scorer.NewKeyedLock()

	registry := deps.Registry
	if registry == nil {
		registry = changedetect.NewMemoryRegistry()
	}

	return &Engine{
		cfg:        cfg,
		catalog:    deps.Catalog,
		evidence:   deps.Evidence,
		store:      deps.Store,
		scorer:     s,
		pool:       scorer.NewPool(s, locks, cfg.MaxConcurrentScores),
		analyzer:   analyzer,
		detector:   changedetect.NewDetector(registry, cfg.ClarificationMinSim),
		assessor:   impact.NewAssessor(s, locks),
		router:     deps.Router,
		publisher:  deps.Publisher,
		subscriber: deps.Subscriber,
		Now:        time.Now,
		state:      models.StateIdle,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// State reports the engine's position in the current cycle.
func (e *Engine) State() models.CycleState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s models.CycleState) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// SubmitUpdate queues a regulatory update for the next cycle. Used by
// intake paths that bypass the event bus.
func (e *Engine) SubmitUpdate(update *eventbus.RegulatoryUpdateEvent) {
	e.pendingMu.Lock()
	e.pending = append(e.pending, update)
	e.pendingMu.Unlock()
}

// drainUpdates collects buffered updates from every intake path.
func (e *Engine) drainUpdates() []*eventbus.RegulatoryUpdateEvent {
	e.pendingMu.Lock()
	updates := e.pending
	e.pending = nil
	e.pendingMu.Unlock()

	if e.subscriber != nil {
		updates = append(updates, e.subscriber.Drain()...)
	}
	return updates
}

// Start runs monitoring cycles on the configured interval until Stop.
// An immediate first cycle runs before the ticker takes over.
func (e *Engine) Start(ctx context.Context) {
	interval := time.Duration(e.cfg.CycleIntervalSeconds) * time.Second
	log.Printf("[Engine] Starting monitoring loop (interval %v)", interval)

	defer close(e.doneCh)

	if _, err := e.RunCycle(ctx); err != nil {
		log.Printf("[Engine] Cycle failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Engine] Context cancelled, stopping monitoring loop")
			return
		case <-e.stopCh:
			log.Printf("[Engine] Stop requested, stopping monitoring loop")
			return
		case <-ticker.C:
			if _, err := e.RunCycle(ctx); err != nil {
				log.Printf("[Engine] Cycle failed: %v", err)
			}
		}
	}
}

// Stop signals the monitoring loop to exit and waits for it.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

// PortfolioSummary aggregates the latest persisted scores. IncompleteCount
// comes from the latest cycle report when one exists.
func (e *Engine) PortfolioSummary(ctx context.Context) (*scorer.PortfolioSummary, error) {
	latest, err := e.store.LatestScores(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]*models.RequirementScore, 0, len(latest))
	for _, score := range latest {
		scores = append(scores, score)
	}

	incomplete := 0
	if report, err := e.store.LatestReport(ctx); err == nil && report != nil {
		incomplete = report.IncompleteCount
	}

	summary := scorer.Summarize(scores, incomplete)

	if len(e.cfg.CategoryWeights) > 0 {
		if reqs, err := e.catalog.AllRequirements(ctx); err == nil {
			reqMap := make(map[string]*models.Requirement, len(reqs))
			for _, req := range reqs {
				reqMap[req.ID] = req
			}
			summary.CategoryScore = scorer.CategoryWeightedScore(scores, reqMap, e.cfg.CategoryWeights)
		}
	}

	return summary, nil
}

// OpenGaps returns open gaps at or above minSeverity, or all open gaps
// when minSeverity is empty.
func (e *Engine) OpenGaps(ctx context.Context, minSeverity models.Severity) ([]*models.ComplianceGap, error) {
	gaps, err := e.store.OpenGaps(ctx)
	if err != nil {
		return nil, err
	}
	if minSeverity == "" {
		return gaps, nil
	}

	filtered := gaps[:0]
	for _, g := range gaps {
		if g.Severity.AtLeast(minSeverity) {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// ActionPlan returns the prioritized, dependency-ordered remediation plan
// across all open gaps plus the actions generated for the latest cycle's
// regulatory changes, truncated to maxActions (0 = unlimited).
func (e *Engine) ActionPlan(ctx context.Context, maxActions int) ([]*models.RemediationAction, error) {
	gaps, err := e.store.OpenGaps(ctx)
	if err != nil {
		return nil, err
	}

	// Change-driven actions ride on the latest report's drift records,
	// ranked by the severity of the change that produced them
	var changeActions []gap.ChangeAction
	if report, err := e.store.LatestReport(ctx); err == nil && report != nil {
		severityByChange := make(map[string]models.Severity, len(report.Changes))
		for _, change := range report.Changes {
			severityByChange[change.ChangeID] = change.Severity
		}
		for _, drift := range report.DriftRecords {
			for _, action := range drift.Actions {
				changeActions = append(changeActions, gap.ChangeAction{
					Action:   action,
					Severity: severityByChange[action.ChangeID],
				})
			}
		}
	}

	return gap.PrioritizedActionPlan(gaps, changeActions, maxActions)
}

// RecentChanges returns regulatory changes detected at or after since.
func (e *Engine) RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error) {
	return e.store.RecentChanges(ctx, since)
}

// LatestReport returns the most recent completed cycle report, nil if the
// engine has never completed a cycle.
func (e *Engine) LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error) {
	return e.store.LatestReport(ctx)
}

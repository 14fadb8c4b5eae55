package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/iraqaf/assurance/internal/changedetect"
	"github.com/iraqaf/assurance/internal/eventbus"
	"github.com/iraqaf/assurance/internal/models"
	"github.com/iraqaf/assurance/internal/notify"
	"github.com/iraqaf/assurance/internal/scorer"
)

// changeContext pairs a detected change with the requirement versions on
// each side of it, captured before the catalog mutation landed.
type changeContext struct {
	change *models.RegulatoryChange
	oldReq *models.Requirement
	newReq *models.Requirement
}

// RunCycle executes one full monitoring cycle and returns its report.
//
// Change detection and re-scoring are data-integrity critical: any error
// there aborts the cycle, no report is saved, and the previous report stays
// latest. Every other stage records per-item failures in the report and
// keeps going.
//
// A second concurrent call returns ErrCycleInProgress.
func (e *Engine) RunCycle(ctx context.Context) (*models.MonitoringCycleReport, error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.cycleMu.Unlock()
	defer e.setState(models.StateIdle)

	cycleStart := e.Now()
	report := &models.MonitoringCycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: cycleStart,
	}

	// Pin component clocks to cycle start so every artifact from this run
	// carries one timestamp and re-running the cycle stays idempotent.
	e.pinClocks(cycleStart)
	defer e.unpinClocks()

	log.Printf("[Engine] Cycle %s started", report.CycleID)

	// One evidence snapshot for the whole cycle. Evidence landing mid-cycle
	// is picked up next cycle, never as a partial view.
	snapshot, err := e.evidence.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("evidence snapshot: %w", err)
	}

	// Stage 1: change detection
	e.setState(models.StateDetectingChanges)
	contexts, err := e.detectChanges(ctx, report, cycleStart)
	if err != nil {
		return nil, fmt.Errorf("change detection: %w", err)
	}

	// Stage 2: impact assessment
	e.setState(models.StateAssessingImpact)
	priorScores, err := e.store.LatestScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading prior scores: %w", err)
	}
	e.assessImpact(ctx, report, contexts, snapshot, priorScores)

	// Stage 3: re-scoring
	e.setState(models.StateRescoring)
	scores, err := e.rescorePortfolio(ctx, report, snapshot)
	if err != nil {
		return nil, fmt.Errorf("rescoring: %w", err)
	}

	// Stage 4: gap analysis
	e.setState(models.StateAnalyzingGaps)
	gaps := e.analyzeGaps(ctx, report, scores)

	// Stage 5: notification
	e.setState(models.StateNotifying)
	e.notifyAll(ctx, report, gaps, contexts)

	// Stage 6: reporting
	e.setState(models.StateReporting)
	e.summarize(ctx, report, scores)
	report.CompletedAt = e.Now()

	if err := e.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("persisting cycle report: %w", err)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishCycleReport(report); err != nil {
			log.Printf("[Engine] Failed to publish cycle report: %v", err)
		}
	}

	log.Printf("[Engine] Cycle %s completed: %d changes, %d gaps opened, %d closed, portfolio %.1f (%d incomplete)",
		report.CycleID, len(report.Changes), len(report.GapsOpened), len(report.GapsClosed),
		report.PortfolioScore, report.IncompleteCount)

	return report, nil
}

func (e *Engine) pinClocks(t time.Time) {
	pinned := func() time.Time { return t }
	e.scorer.Now = pinned
	e.analyzer.Now = pinned
	e.detector.Now = pinned
	e.assessor.Now = pinned
}

func (e *Engine) unpinClocks() {
	e.scorer.Now = time.Now
	e.analyzer.Now = time.Now
	e.detector.Now = time.Now
	e.assessor.Now = time.Now
}

// detectChanges drains buffered regulatory updates, diffs each against the
// catalog's current text and applies the resulting catalog mutation. The
// pre-mutation requirement is captured for impact assessment.
func (e *Engine) detectChanges(ctx context.Context, report *models.MonitoringCycleReport, cycleStart time.Time) ([]*changeContext, error) {
	updates := e.drainUpdates()
	if len(updates) == 0 {
		return nil, nil
	}

	log.Printf("[Engine] Processing %d regulatory updates", len(updates))

	var contexts []*changeContext
	for _, update := range updates {
		cc, err := e.detectOne(ctx, update, cycleStart)
		if err != nil {
			return nil, err
		}
		if cc == nil {
			continue
		}

		if err := e.store.SaveChange(ctx, cc.change); err != nil {
			return nil, err
		}
		if e.publisher != nil {
			if err := e.publisher.PublishChange(cc.change); err != nil {
				log.Printf("[Engine] Failed to publish change %s: %v", cc.change.ChangeID, err)
			}
		}

		report.Changes = append(report.Changes, cc.change)
		contexts = append(contexts, cc)
	}

	return contexts, nil
}

func (e *Engine) detectOne(ctx context.Context, update *eventbus.RegulatoryUpdateEvent, cycleStart time.Time) (*changeContext, error) {
	oldReq, err := e.catalog.Get(ctx, update.UnitID)
	if err != nil && !models.IsDataError(err) {
		return nil, err
	}

	var oldVersion, newVersion *changedetect.ContentVersion
	if oldReq != nil && !oldReq.Retired {
		oldVersion = &changedetect.ContentVersion{
			UnitID:    oldReq.ID,
			Framework: oldReq.Framework,
			Text:      oldReq.Text,
		}
	} else {
		oldReq = nil
	}
	if update.Text != "" {
		newVersion = &changedetect.ContentVersion{
			UnitID:    update.UnitID,
			Framework: update.Framework,
			Text:      update.Text,
			Retrieved: time.Unix(update.Timestamp, 0),
		}
	}

	change, err := e.detector.Detect(ctx, oldVersion, newVersion)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, nil
	}

	newReq, err := e.applyCatalogMutation(ctx, change, oldReq, update, cycleStart)
	if err != nil {
		return nil, err
	}

	return &changeContext{change: change, oldReq: oldReq, newReq: newReq}, nil
}

// applyCatalogMutation publishes or retires the requirement version the
// change describes and returns the post-change record.
func (e *Engine) applyCatalogMutation(ctx context.Context, change *models.RegulatoryChange, oldReq *models.Requirement, update *eventbus.RegulatoryUpdateEvent, cycleStart time.Time) (*models.Requirement, error) {
	switch change.ChangeType {
	case models.ChangeRemovedRequirement:
		if err := e.catalog.Retire(change.UnitID); err != nil {
			return nil, err
		}
		return nil, nil

	case models.ChangeNewRequirement:
		// New units arrive unclassified; they default to a mandatory
		// medium-tier implementation requirement until curated
		req := &models.Requirement{
			Framework:   update.Framework,
			ID:          update.UnitID,
			Text:        update.Text,
			Category:    models.CategoryImplementation,
			Mandatory:   true,
			RiskTier:    models.RiskMedium,
			PublishedAt: cycleStart,
		}
		if err := e.catalog.Publish(req); err != nil {
			return nil, err
		}
		return e.catalog.Get(ctx, update.UnitID)

	default:
		revised := *oldReq
		revised.Text = update.Text
		revised.PublishedAt = cycleStart
		if err := e.catalog.Publish(&revised); err != nil {
			return nil, err
		}
		return e.catalog.Get(ctx, update.UnitID)
	}
}

// assessImpact computes drift per change. Failures here are per-item: one
// unassessable change never blocks the rest of the cycle.
func (e *Engine) assessImpact(ctx context.Context, report *models.MonitoringCycleReport, contexts []*changeContext, snapshot map[string][]*models.Evidence, priorScores map[string]*models.RequirementScore) {
	portfolio := make([]*models.RequirementScore, 0, len(priorScores))
	for _, score := range priorScores {
		portfolio = append(portfolio, score)
	}

	for _, cc := range contexts {
		drift, err := e.assessor.Assess(cc.change, cc.oldReq, cc.newReq,
			snapshot[cc.change.UnitID], priorScores[cc.change.UnitID], portfolio)
		if err != nil {
			report.Failures = append(report.Failures, models.CycleFailure{
				Stage:         models.StateAssessingImpact,
				RequirementID: cc.change.UnitID,
				Message:       err.Error(),
			})
			continue
		}

		// The change's remediation plan rides on the drift record so it is
		// persisted and reaches Engine.ActionPlan
		drift.Actions = e.assessor.GenerateActionPlan(cc.change, cc.newReq)
		if len(drift.Actions) > 0 {
			log.Printf("[Engine] Change %s generated %d remediation actions", cc.change.ChangeID, len(drift.Actions))
		}

		if err := e.store.SaveDrift(ctx, drift); err != nil {
			report.Failures = append(report.Failures, models.CycleFailure{
				Stage:         models.StateAssessingImpact,
				RequirementID: cc.change.UnitID,
				Message:       err.Error(),
			})
			continue
		}

		report.DriftRecords = append(report.DriftRecords, drift)
	}
}

// rescorePortfolio scores every active requirement against the cycle's
// evidence snapshot. Per-requirement scoring failures are isolated;
// catalog or persistence errors abort.
func (e *Engine) rescorePortfolio(ctx context.Context, report *models.MonitoringCycleReport, snapshot map[string][]*models.Evidence) ([]*models.RequirementScore, error) {
	reqs, err := e.catalog.AllRequirements(ctx)
	if err != nil {
		return nil, err
	}

	scores, failures := e.pool.ScoreAll(ctx, reqs, snapshot)
	for _, failure := range failures {
		report.Failures = append(report.Failures, models.CycleFailure{
			Stage:         models.StateRescoring,
			RequirementID: failure.RequirementID,
			Message:       failure.Err.Error(),
		})
	}
	report.IncompleteCount = len(failures)

	for _, score := range scores {
		if err := e.store.SaveScore(ctx, score); err != nil {
			return nil, err
		}
	}

	return scores, nil
}

// analyzeGaps opens gaps for below-threshold scores and closes gaps whose
// requirement has recovered.
func (e *Engine) analyzeGaps(ctx context.Context, report *models.MonitoringCycleReport, scores []*models.RequirementScore) []*models.ComplianceGap {
	reqMap := make(map[string]*models.Requirement)
	if reqs, err := e.catalog.AllRequirements(ctx); err == nil {
		for _, req := range reqs {
			reqMap[req.ID] = req
		}
	}

	scoreByReq := make(map[string]*models.RequirementScore, len(scores))
	for _, score := range scores {
		scoreByReq[score.RequirementID] = score
	}

	// Close recovered gaps before opening new ones so a requirement that
	// crossed the threshold this cycle is never both opened and closed
	openBefore, err := e.store.OpenGaps(ctx)
	if err != nil {
		report.Failures = append(report.Failures, models.CycleFailure{
			Stage:   models.StateAnalyzingGaps,
			Message: err.Error(),
		})
		openBefore = nil
	}

	// Dedup is by requirement, not gap ID: the gap ID embeds the assessment
	// date, so a deficiency persisting across days would otherwise open a
	// fresh gap every day while the original stays open
	openReqs := make(map[string]bool, len(openBefore))
	for _, g := range openBefore {
		score, ok := scoreByReq[g.RequirementID]
		if ok && score.ComplianceScore >= e.cfg.GapThreshold {
			if err := e.store.CloseGap(ctx, g.GapID, e.analyzer.Now()); err != nil {
				report.Failures = append(report.Failures, models.CycleFailure{
					Stage:         models.StateAnalyzingGaps,
					RequirementID: g.RequirementID,
					Message:       err.Error(),
				})
				continue
			}
			report.GapsClosed = append(report.GapsClosed, g.GapID)
			continue
		}
		openReqs[g.RequirementID] = true
	}

	gaps := e.analyzer.IdentifyGaps(scores, reqMap)

	var opened []*models.ComplianceGap
	for _, g := range gaps {
		if openReqs[g.RequirementID] {
			// Deficiency already tracked by an open gap, not re-reported
			continue
		}
		if err := e.store.SaveGap(ctx, g); err != nil {
			report.Failures = append(report.Failures, models.CycleFailure{
				Stage:         models.StateAnalyzingGaps,
				RequirementID: g.RequirementID,
				Message:       err.Error(),
			})
			continue
		}
		opened = append(opened, g)
	}

	report.GapsOpened = opened
	return opened
}

// notifyAll routes every notable event from this cycle, builds the digest,
// waits for in-flight sends and records final delivery state.
func (e *Engine) notifyAll(ctx context.Context, report *models.MonitoringCycleReport, gaps []*models.ComplianceGap, contexts []*changeContext) {
	if e.router == nil {
		return
	}

	var routed []*models.Notification
	for _, g := range gaps {
		routed = append(routed, e.router.Route(ctx, notify.GapEvent{Gap: g})...)
	}

	severityByChange := make(map[string]models.Severity, len(contexts))
	for _, cc := range contexts {
		severityByChange[cc.change.ChangeID] = cc.change.Severity
		routed = append(routed, e.router.Route(ctx, notify.ChangeEvent{Change: cc.change})...)
	}
	for _, drift := range report.DriftRecords {
		if drift.Direction != models.DriftDegraded && !drift.ReEvidenceRequired {
			continue
		}
		routed = append(routed, e.router.Route(ctx, notify.DriftEvent{
			Drift:          drift,
			ChangeSeverity: severityByChange[drift.ChangeID],
		})...)
	}

	if digest := e.router.CreateDailyDigest(ctx); digest != nil {
		routed = append(routed, digest)
	}

	flushCtx, cancel := context.WithTimeout(ctx, e.flushBudget())
	e.router.Flush(flushCtx)
	cancel()

	report.Notifications = e.router.Snapshot(routed)
	for _, n := range report.Notifications {
		if err := e.store.SaveNotification(ctx, n); err != nil {
			report.Failures = append(report.Failures, models.CycleFailure{
				Stage:   models.StateNotifying,
				Message: err.Error(),
			})
		}
	}
}

// flushBudget bounds the notification flush: worst-case retries plus the
// final send timeout.
func (e *Engine) flushBudget() time.Duration {
	timeout := time.Duration(e.cfg.NotifyTimeoutSeconds) * time.Second
	backoff := time.Duration(e.cfg.NotifyBackoffMS) * time.Millisecond

	budget := timeout
	for attempt := 2; attempt <= e.cfg.NotifyMaxAttempts; attempt++ {
		budget += timeout + backoff*time.Duration(1<<(attempt-2))
	}
	return budget
}

func (e *Engine) summarize(ctx context.Context, report *models.MonitoringCycleReport, scores []*models.RequirementScore) {
	summary := scorer.Summarize(scores, report.IncompleteCount)
	report.PortfolioScore = summary.OverallScore
	report.WeightedScore = summary.WeightedScore

	if len(e.cfg.CategoryWeights) == 0 {
		return
	}
	reqs, err := e.catalog.AllRequirements(ctx)
	if err != nil {
		report.Failures = append(report.Failures, models.CycleFailure{
			Stage:   models.StateReporting,
			Message: err.Error(),
		})
		return
	}
	reqMap := make(map[string]*models.Requirement, len(reqs))
	for _, req := range reqs {
		reqMap[req.ID] = req
	}
	report.CategoryScore = scorer.CategoryWeightedScore(scores, reqMap, e.cfg.CategoryWeights)
}

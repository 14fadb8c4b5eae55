package scorer

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/iraqaf/assurance/internal/models"
)

// ScoreFailure records a requirement whose scoring was aborted.
// Failed requirements are excluded from the portfolio average and counted
// as incomplete - never silently treated as score 0.
type ScoreFailure struct {
	RequirementID string
	Err           error
}

// Pool scores independent requirements in parallel. Scoring shares no
// mutable state across requirements, so the only bound is the configured
// concurrency limit protecting the evidence datastore.
type Pool struct {
	scorer      *Scorer
	locks       *KeyedLock
	concurrency int
}

// NewPool creates a scoring pool. locks may be shared with the impact
// assessor so re-scoring serializes per requirement.
func NewPool(s *Scorer, locks *KeyedLock, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		scorer:      s,
		locks:       locks,
		concurrency: concurrency,
	}
}

// ScoreAll scores every requirement against the evidence snapshot.
// Per-requirement failures are isolated and returned alongside the scores.
// Results are ordered by requirement ID for deterministic reports.
func (p *Pool) ScoreAll(ctx context.Context, reqs []*models.Requirement, evidence map[string][]*models.Evidence) ([]*models.RequirementScore, []ScoreFailure) {
	jobs := make(chan *models.Requirement)

	var mu sync.Mutex
	var scores []*models.RequirementScore
	var failures []ScoreFailure

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				score, err := p.scoreOne(req, evidence[req.ID])

				mu.Lock()
				if err != nil {
					failures = append(failures, ScoreFailure{RequirementID: req.ID, Err: err})
				} else {
					scores = append(scores, score)
				}
				mu.Unlock()
			}
		}()
	}

	for _, req := range reqs {
		select {
		case <-ctx.Done():
			log.Printf("[Scorer] Scoring cancelled: %v", ctx.Err())
			close(jobs)
			wg.Wait()
			return scores, failures
		case jobs <- req:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(scores, func(i, j int) bool { return scores[i].RequirementID < scores[j].RequirementID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].RequirementID < failures[j].RequirementID })

	return scores, failures
}

func (p *Pool) scoreOne(req *models.Requirement, evidence []*models.Evidence) (*models.RequirementScore, error) {
	if p.locks != nil {
		p.locks.Lock(req.ID)
		defer p.locks.Unlock(req.ID)
	}
	return p.scorer.Score(req, evidence)
}

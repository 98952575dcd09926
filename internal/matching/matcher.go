package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/gateway"
	"github.com/heartmatch/heartmatch/internal/profile"
)

// ErrNoCandidates is returned when the candidate family list is empty.
var ErrNoCandidates = errors.New("no candidate families")

const (
	// DefaultTopK is how many ranked results a match call returns by default.
	DefaultTopK = 10

	defaultWorkers = 4
)

// unavailableRationale explains a neutral-default result caused by the whole
// model chain being down.
const unavailableRationale = "No model was available to score this family; neutral default applied."

// Options tune a single match call.
type Options struct {
	// Models is the fallback chain passed to the gateway. Empty means the
	// gateway's default chain.
	Models []string
	// TopK caps how many ranked results are returned (default DefaultTopK).
	TopK int
	// Workers bounds concurrent per-family scoring (default 4).
	Workers int
}

// MatchResult is one scored child/family pairing. Created once per match call
// and never mutated afterwards.
type MatchResult struct {
	ChildID     string    `json:"child_id"`
	FamilyID    string    `json:"family_id"`
	Score       int       `json:"score"`
	Rationale   string    `json:"rationale"`
	Model       string    `json:"model,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	WellFormed  bool      `json:"well_formed"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

// Matcher orchestrates anonymization, prompt building, gateway calls and
// response parsing for a batch of candidate families.
type Matcher struct {
	generator gateway.Generator
	rubric    Rubric
	logger    *zap.Logger
	now       func() time.Time
}

// NewMatcher creates a matching orchestrator on top of the given generator.
func NewMatcher(generator gateway.Generator, rubric Rubric, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		generator: generator,
		rubric:    rubric,
		logger:    logger,
		now:       time.Now,
	}
}

// Match scores the child against every candidate family and returns the top
// results ordered by score descending, family identifier ascending on ties.
// A single family's model failure degrades that family to the neutral default
// score; it never aborts the batch. The call itself fails only for an invalid
// child profile, an empty candidate list, or caller cancellation.
func (m *Matcher) Match(ctx context.Context, child *profile.ChildProfile, families []*profile.FamilyProfile, opts Options) ([]MatchResult, error) {
	if err := child.Validate(); err != nil {
		return nil, err
	}
	if len(families) == 0 {
		return nil, ErrNoCandidates
	}

	candidates := make([]*profile.FamilyProfile, 0, len(families))
	for _, family := range families {
		if err := family.Validate(); err != nil {
			m.logger.Warn("skipping unscorable candidate", zap.Error(err))
			continue
		}
		candidates = append(candidates, family)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: every candidate failed validation", ErrNoCandidates)
	}

	// The child is anonymized once; families independently per worker.
	childAnon := child.Anonymize()

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	results := make([]MatchResult, len(candidates))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = m.scoreFamily(ctx, child.ID, childAnon, candidates[idx], opts.Models)
			}
		}()
	}

	// Cancellation is honored between iterations; in-flight gateway calls
	// run to completion or per-attempt timeout.
	cancelled := false
	for i := range candidates {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FamilyID < results[j].FamilyID
	})

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > len(results) {
		topK = len(results)
	}

	m.logger.Info("matching completed",
		zap.String("child_ref", childAnon.Ref),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", topK),
	)

	return results[:topK], nil
}

func (m *Matcher) scoreFamily(ctx context.Context, childID string, childAnon profile.AnonymizedProfile, family *profile.FamilyProfile, models []string) MatchResult {
	result := MatchResult{
		ChildID:   childID,
		FamilyID:  family.ID,
		Timestamp: m.now().UTC(),
	}

	familyAnon := family.Anonymize()
	prompt, truncated := BuildPrompt(childAnon, familyAnon, m.rubric)
	if truncated {
		m.logger.Debug("prompt exceeded character budget, notes truncated",
			zap.String("family_id", family.ID),
		)
	}

	generated, err := m.generator.GenerateWithFallback(ctx, prompt, models)
	if err != nil {
		result.Score = NeutralScore
		result.Rationale = unavailableRationale
		result.Unavailable = true

		m.logger.Warn("scoring degraded to neutral default",
			zap.String("family_id", family.ID),
			zap.Error(err),
		)
		return result
	}

	assessment := ParseResponse(generated.Text)
	result.Score = assessment.Score
	result.Rationale = assessment.Rationale
	result.WellFormed = assessment.WellFormed
	result.Model = generated.Model

	if !assessment.WellFormed {
		m.logger.Warn("response carried no parsable score, neutral default recorded",
			zap.String("family_id", family.ID),
			zap.String("model", generated.Model),
		)
	}

	return result
}

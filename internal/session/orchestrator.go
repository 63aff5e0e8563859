package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/compass-dev/career-compass/internal/analyst"
	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/scout"
	"go.uber.org/zap"
)

const defaultAbortThreshold = 5

type profiler interface {
	Accumulate(ctx context.Context, question, rawInput string, current *profile.TraitProfile, turn int) (*profile.TraitProfile, []profile.TraitEstimate, error)
}

type searcher interface {
	Sufficient(p *profile.TraitProfile, turns int) bool
	Queries(p *profile.TraitProfile, location string) []string
	Fetch(ctx context.Context, queries []string, location string) (*scout.FetchResult, error)
	Merge(existing, fetched *jobsearch.Postings) *jobsearch.Postings
}

type scorer interface {
	Score(ctx context.Context, p *profile.TraitProfile, postings *jobsearch.Postings) (*analyst.Result, error)
}

// Deps are the pipeline components the orchestrator drives.
type Deps struct {
	Profiler profiler
	Searcher searcher
	Scorer   scorer
	Logger   *zap.Logger
}

// Config tunes the orchestrator.
type Config struct {
	Location string
	// AbortThreshold is the number of consecutively recorded failures after
	// which the session aborts. Zero means the default.
	AbortThreshold int
}

// Orchestrator owns the session lifecycle. It is safe for concurrent use;
// operations on the same session are serialized by the session's mutex.
type Orchestrator struct {
	deps           Deps
	store          Store
	location       string
	abortThreshold int
	logger         *zap.Logger
	now            func() time.Time
}

func NewOrchestrator(deps Deps, store Store, cfg Config) *Orchestrator {
	if cfg.AbortThreshold <= 0 {
		cfg.AbortThreshold = defaultAbortThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		deps:           deps,
		store:          store,
		location:       cfg.Location,
		abortThreshold: cfg.AbortThreshold,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewSession creates a session in the awaiting-input state and returns its id.
func (o *Orchestrator) NewSession() (string, error) {
	state, err := o.store.Create(o.location)
	if err != nil {
		return "", err
	}

	o.logger.Info("session created",
		zap.String("session_id", state.ID),
		zap.String("location", state.Location),
	)
	return state.ID, nil
}

// SubmitTurn runs one full turn: profile the answer, and if the profile is
// sufficient, search and score. It returns the state the session settled in.
// Recoverable failures are recorded on the session and degrade the turn;
// cancellation discards the turn's partial work and leaves state untouched.
func (o *Orchestrator) SubmitTurn(ctx context.Context, id, question, input string) (WorkflowState, error) {
	s, err := o.store.Get(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case StateAwaitingInput:
	case StateAborted:
		return s.State, ErrSessionAborted
	default:
		return s.State, fmt.Errorf("%w: submit_turn in %s", ErrInvalidTransition, s.State)
	}

	turn := len(s.Turns) + 1
	failed := 0

	s.State = StateProfiling
	updated, estimates, err := o.deps.Profiler.Accumulate(ctx, question, input, s.Profile, turn)
	if err != nil {
		if ctx.Err() != nil {
			s.State = StateAwaitingInput
			return s.State, err
		}
		s.recordFailure(FailureExtraction, turn, err, o.now())
		failed++
	}
	s.Profile = updated
	s.Turns = append(s.Turns, Turn{Number: turn, Question: question, Input: input, Estimates: estimates})

	if !o.deps.Searcher.Sufficient(s.Profile, turn) {
		s.State = StateAwaitingInput
		return o.settle(s, turn, failed)
	}

	s.State = StateSearching
	queries := o.deps.Searcher.Queries(s.Profile, s.Location)
	fetched, err := o.deps.Searcher.Fetch(ctx, queries, s.Location)
	if err != nil {
		// Cancelled mid-round: partial results were discarded by the scout.
		s.State = StateAwaitingInput
		return s.State, err
	}
	for _, queryErr := range fetched.Failures {
		s.recordFailure(FailureSearch, turn, queryErr, o.now())
		failed++
	}
	s.Postings = o.deps.Searcher.Merge(s.Postings, fetched.Postings)

	if s.Postings.Len() == 0 {
		// Nothing to analyze. The session still completes; the summary and
		// an empty match list tell the story.
		s.State = StateComplete
		o.logger.Warn("search produced no postings",
			zap.String("session_id", s.ID),
			zap.Int("queries", len(queries)),
		)
		return o.settle(s, turn, failed)
	}

	s.State = StateAnalyzing
	result, err := o.deps.Scorer.Score(ctx, s.Profile, s.Postings)
	if err != nil {
		s.State = StateAwaitingInput
		return s.State, err
	}
	for _, scoreErr := range result.Failures {
		s.recordFailure(FailureScoring, turn, scoreErr, o.now())
		failed++
	}
	s.Cards = result.Cards

	s.State = StateComplete
	return o.settle(s, turn, failed)
}

// settle applies the consecutive-failure accounting and the abort threshold
// at the end of a turn. Caller holds s.mu.
func (o *Orchestrator) settle(s *SessionState, turn, failed int) (WorkflowState, error) {
	s.UpdatedAt = o.now()

	if failed == 0 {
		s.ConsecutiveFailures = 0
		return s.State, nil
	}

	s.ConsecutiveFailures += failed
	if s.ConsecutiveFailures >= o.abortThreshold {
		s.State = StateAborted
		o.logger.Error("session aborted after repeated failures",
			zap.String("session_id", s.ID),
			zap.Int("turn", turn),
			zap.Int("consecutive_failures", s.ConsecutiveFailures),
		)
		return s.State, ErrSessionAborted
	}

	o.logger.Warn("turn completed with degraded capabilities",
		zap.String("session_id", s.ID),
		zap.Int("turn", turn),
		zap.Int("failures", failed),
	)
	return s.State, nil
}

// State reports the session's current workflow state.
func (o *Orchestrator) State(id string) (WorkflowState, error) {
	s, err := o.store.Get(id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, nil
}

// Snapshot returns a deep copy of the session for inspection.
func (o *Orchestrator) Snapshot(id string) (*Snapshot, error) {
	s, err := o.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// TopMatches returns the best n cards. Valid once the session is complete,
// and also after an abort, where it surfaces whatever was scored before the
// session gave up.
func (o *Orchestrator) TopMatches(id string, n int) ([]*analyst.MatchCard, error) {
	s, err := o.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateComplete && s.State != StateAborted {
		return nil, fmt.Errorf("%w: top_matches in %s", ErrInvalidTransition, s.State)
	}

	cards := copyCards(s.Cards)
	if n > 0 && n < len(cards) {
		cards = cards[:n]
	}
	return cards, nil
}

// Abort moves the session to the absorbing aborted state. Already-aborted
// sessions stay aborted.
func (o *Orchestrator) Abort(id string) error {
	s, err := o.store.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateAborted {
		s.State = StateAborted
		s.UpdatedAt = o.now()
		o.logger.Info("session aborted by caller", zap.String("session_id", s.ID))
	}
	return nil
}

// Summary renders a human-readable recap of the session.
func (o *Orchestrator) Summary(id string) (string, error) {
	snap, err := o.Snapshot(id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s)\n", snap.ID, snap.State)
	fmt.Fprintf(&b, "Turns: %d, traits profiled: %d, postings considered: %d\n",
		len(snap.Turns), len(snap.Traits), snap.Postings)

	for _, trait := range snap.Traits {
		fmt.Fprintf(&b, "  - %s: %s (confidence %.2f, %s)\n",
			strings.ReplaceAll(trait.Name, "_", " "), trait.Level, trait.Confidence, trait.Source)
	}

	if len(snap.Cards) > 0 {
		top := snap.Cards[0]
		fmt.Fprintf(&b, "Top match: %s at %s (%d%%, %s)\n",
			top.Posting.Title, top.Posting.Company, top.Score, top.Recommendation)
	} else {
		b.WriteString("No matches produced.\n")
	}

	if len(snap.Errors) > 0 {
		fmt.Fprintf(&b, "Degraded operations: %d\n", len(snap.Errors))
		for kind, count := range snap.RetryCounts {
			fmt.Fprintf(&b, "  - %s: %d\n", kind, count)
		}
	}

	return b.String(), nil
}

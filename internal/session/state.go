// Package session orchestrates the conversational workflow: it owns the
// state machine that moves a candidate from quiz turns through search and
// analysis to a ranked result set, and records every degradation along the
// way.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/compass-dev/career-compass/internal/analyst"
	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
)

// WorkflowState is the session's position in the pipeline.
type WorkflowState string

const (
	StateAwaitingInput WorkflowState = "awaiting_input"
	StateProfiling     WorkflowState = "profiling"
	StateSearching     WorkflowState = "searching"
	StateAnalyzing     WorkflowState = "analyzing"
	StateComplete      WorkflowState = "complete"
	// StateAborted is absorbing: no operation leaves it.
	StateAborted WorkflowState = "aborted"
)

// Failure kinds recorded on the session. Each maps to one degraded
// capability, never to a crash.
const (
	FailureExtraction = "extraction_failure"
	FailureSearch     = "search_failure"
	FailureScoring    = "scoring_failure"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("operation not valid in current state")
	ErrSessionAborted    = errors.New("session aborted after repeated failures")
)

// ErrorRecord is one recoverable failure the session absorbed.
type ErrorRecord struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Turn    int       `json:"turn"`
	At      time.Time `json:"at"`
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Number    int                     `json:"number"`
	Question  string                  `json:"question"`
	Input     string                  `json:"input"`
	Estimates []profile.TraitEstimate `json:"estimates"`
}

// SessionState is the full mutable state of one session. All access goes
// through the orchestrator, which holds mu for the duration of an operation.
type SessionState struct {
	mu sync.Mutex

	ID       string
	State    WorkflowState
	Location string

	Profile  *profile.TraitProfile
	Postings *jobsearch.Postings
	Cards    []*analyst.MatchCard

	Turns  []Turn
	Errors []ErrorRecord

	// RetryCounts tallies recorded failures per kind across the whole
	// session; ConsecutiveFailures resets whenever a turn finishes without
	// recording any.
	RetryCounts         map[string]int
	ConsecutiveFailures int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func newSessionState(id, location string, now time.Time) *SessionState {
	return &SessionState{
		ID:          id,
		State:       StateAwaitingInput,
		Location:    location,
		Profile:     profile.New(),
		Postings:    &jobsearch.Postings{},
		RetryCounts: map[string]int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *SessionState) recordFailure(kind string, turn int, err error, now time.Time) {
	s.Errors = append(s.Errors, ErrorRecord{
		Kind:    kind,
		Message: err.Error(),
		Turn:    turn,
		At:      now,
	})
	s.RetryCounts[kind]++
}

// Snapshot is an immutable copy of session state for callers outside the
// orchestrator. Mutating it never touches the live session.
type Snapshot struct {
	ID                  string
	State               WorkflowState
	Location            string
	Traits              []profile.TraitEstimate
	Postings            int
	Cards               []*analyst.MatchCard
	Turns               []Turn
	Errors              []ErrorRecord
	RetryCounts         map[string]int
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// snapshotLocked deep-copies the session. Caller holds mu.
func (s *SessionState) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:                  s.ID,
		State:               s.State,
		Location:            s.Location,
		Traits:              s.Profile.Traits(),
		Postings:            s.Postings.Len(),
		Cards:               copyCards(s.Cards),
		Turns:               make([]Turn, len(s.Turns)),
		Errors:              make([]ErrorRecord, len(s.Errors)),
		RetryCounts:         make(map[string]int, len(s.RetryCounts)),
		ConsecutiveFailures: s.ConsecutiveFailures,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
	copy(snap.Turns, s.Turns)
	copy(snap.Errors, s.Errors)
	for kind, count := range s.RetryCounts {
		snap.RetryCounts[kind] = count
	}
	return snap
}

func copyCards(cards []*analyst.MatchCard) []*analyst.MatchCard {
	out := make([]*analyst.MatchCard, len(cards))
	for i, card := range cards {
		clone := *card
		if card.Posting != nil {
			posting := *card.Posting
			clone.Posting = &posting
		}
		clone.MatchedTraits = append([]string(nil), card.MatchedTraits...)
		clone.UnmatchedTraits = append([]string(nil), card.UnmatchedTraits...)
		out[i] = &clone
	}
	return out
}

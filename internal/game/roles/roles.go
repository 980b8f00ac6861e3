// Package roles implements the four-role deduction game as a pure state
// machine: every operation takes a State value and returns the next one.
package roles

import (
	"math/rand"
	"slices"

	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
)

// Role is one of the four fixed roles dealt each round.
type Role string

const (
	Raja   Role = "Raja"
	Mantri Role = "Mantri"
	Sipahi Role = "Sipahi"
	Chor   Role = "Chor"
)

// All lists the roles in deal order.
var All = []Role{Raja, Mantri, Sipahi, Chor}

// RequiredPlayers is the exact participant count a round needs.
const RequiredPlayers = 4

// Phase is the position inside a round.
type Phase string

const (
	PhaseAwaitingShuffle Phase = "awaiting_shuffle"
	PhaseAwaitingGuess   Phase = "awaiting_guess"
	PhaseRevealed        Phase = "revealed"
	PhaseFinished        Phase = "finished"
)

// Points is what a role earns for each accusation outcome.
type Points struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Config is the single source of truth for scoring.
type Config struct {
	TotalRounds int
	Guesser     Role
	Target      Role
	Table       map[Role]Points
}

// DefaultConfig: Raja and Mantri always score, Sipahi scores only for a
// correct accusation, Chor only when not caught.
func DefaultConfig() Config {
	return Config{
		TotalRounds: 5,
		Guesser:     Sipahi,
		Target:      Chor,
		Table: map[Role]Points{
			Raja:   {Correct: 1000, Wrong: 1000},
			Mantri: {Correct: 800, Wrong: 800},
			Sipahi: {Correct: 500, Wrong: 0},
			Chor:   {Correct: 0, Wrong: 500},
		},
	}
}

// State is one match. Maps are never shared between returned values.
type State struct {
	Round       int             `json:"round" bson:"round"`
	TotalRounds int             `json:"totalRounds" bson:"totalRounds"`
	Players     []string        `json:"players" bson:"players"`
	Phase       Phase           `json:"phase" bson:"phase"`
	Roles       map[string]Role `json:"-" bson:"roles,omitempty"`
	Scores      map[string]int  `json:"scores" bson:"scores"`
	Shuffler    string          `json:"shuffler" bson:"shuffler"`
	Accused     string          `json:"accused,omitempty" bson:"accused,omitempty"`
	Correct     *bool           `json:"correct,omitempty" bson:"correct,omitempty"`
}

// RoundResult is the outcome of one accusation.
type RoundResult struct {
	Round   int             `json:"round"`
	Guesser string          `json:"guesser"`
	Accused string          `json:"accused"`
	Correct bool            `json:"correct"`
	Roles   map[string]Role `json:"roles"`
	Points  map[string]int  `json:"points"`
	Scores  map[string]int  `json:"scores"`
}

// Engine deals and scores rounds. rng must not be shared across goroutines.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

// New creates an engine.
func New(cfg Config, rng *rand.Rand) *Engine {
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine's scoring configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (s State) clone() State {
	out := s
	out.Players = slices.Clone(s.Players)
	out.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v
	}
	if s.Roles != nil {
		out.Roles = make(map[string]Role, len(s.Roles))
		for k, v := range s.Roles {
			out.Roles[k] = v
		}
	}
	if s.Correct != nil {
		c := *s.Correct
		out.Correct = &c
	}
	return out
}

// NewMatch starts round one for players, with a random shuffler.
func (e *Engine) NewMatch(players []string) (State, error) {
	if len(players) != RequiredPlayers {
		return State{}, apperrors.New(apperrors.CodeNotEnoughPlayers, "This game needs exactly 4 players")
	}
	s := State{
		Round:       1,
		TotalRounds: e.cfg.TotalRounds,
		Players:     slices.Clone(players),
		Phase:       PhaseAwaitingShuffle,
		Scores:      make(map[string]int, len(players)),
	}
	for _, p := range players {
		s.Scores[p] = 0
	}
	s.Shuffler = s.Players[e.rng.Intn(len(s.Players))]
	return s, nil
}

// Shuffle deals a permutation of the four roles across the players. Only
// the current shuffler may trigger it, once per round.
func (e *Engine) Shuffle(s State, actor string) (State, error) {
	switch s.Phase {
	case PhaseFinished:
		return s, apperrors.New(apperrors.CodeGameNotActive, "The match is over")
	case PhaseAwaitingGuess, PhaseRevealed:
		return s, apperrors.New(apperrors.CodeRolesDealt, "Roles were already dealt this round")
	}
	if actor != s.Shuffler {
		return s, apperrors.New(apperrors.CodeNotShuffler, "Only the shuffler can deal roles")
	}
	if len(s.Players) != RequiredPlayers {
		return s, apperrors.New(apperrors.CodeNotEnoughPlayers, "This game needs exactly 4 players")
	}

	next := s.clone()
	perm := e.rng.Perm(len(All))
	next.Roles = make(map[string]Role, len(All))
	for i, p := range next.Players {
		next.Roles[p] = All[perm[i]]
	}
	next.Phase = PhaseAwaitingGuess
	next.Accused = ""
	next.Correct = nil
	return next, nil
}

// HolderOf returns the player holding role this round.
func (s State) HolderOf(role Role) string {
	for _, p := range s.Players {
		if s.Roles[p] == role {
			return p
		}
	}
	return ""
}

// Guess records the guesser's single accusation and scores the round.
func (e *Engine) Guess(s State, actor, accused string) (State, RoundResult, error) {
	switch s.Phase {
	case PhaseFinished:
		return s, RoundResult{}, apperrors.New(apperrors.CodeGameNotActive, "The match is over")
	case PhaseAwaitingShuffle:
		return s, RoundResult{}, apperrors.New(apperrors.CodeRolesNotDealt, "Roles have not been dealt yet")
	case PhaseRevealed:
		return s, RoundResult{}, apperrors.New(apperrors.CodeAlreadyGuessed, "A guess was already made this round")
	}
	if s.Roles[actor] != e.cfg.Guesser {
		return s, RoundResult{}, apperrors.New(apperrors.CodeNotGuesser, "Only the "+string(e.cfg.Guesser)+" can guess")
	}
	if accused == actor || !slices.Contains(s.Players, accused) {
		return s, RoundResult{}, apperrors.New(apperrors.CodeInvalidTarget, "Pick another player in this room")
	}

	next := s.clone()
	correct := next.Roles[accused] == e.cfg.Target
	points := make(map[string]int, len(next.Players))
	for _, p := range next.Players {
		pts := e.cfg.Table[next.Roles[p]]
		if correct {
			points[p] = pts.Correct
		} else {
			points[p] = pts.Wrong
		}
		next.Scores[p] += points[p]
	}
	next.Accused = accused
	next.Correct = &correct
	next.Phase = PhaseRevealed

	res := RoundResult{
		Round:   next.Round,
		Guesser: actor,
		Accused: accused,
		Correct: correct,
		Roles:   make(map[string]Role, len(next.Roles)),
		Points:  points,
		Scores:  make(map[string]int, len(next.Scores)),
	}
	for k, v := range next.Roles {
		res.Roles[k] = v
	}
	for k, v := range next.Scores {
		res.Scores[k] = v
	}
	return next, res, nil
}

// NextRound clears the round and picks a new shuffler, or finishes the match
// once the configured round count is reached.
func (e *Engine) NextRound(s State) (State, error) {
	if s.Phase != PhaseRevealed {
		return s, apperrors.New(apperrors.CodeGameNotActive, "The round is not over")
	}
	next := s.clone()
	next.Roles = nil
	next.Accused = ""
	next.Correct = nil
	if next.Round >= next.TotalRounds {
		next.Phase = PhaseFinished
		return next, nil
	}
	next.Round++
	next.Phase = PhaseAwaitingShuffle
	next.Shuffler = next.Players[e.rng.Intn(len(next.Players))]
	return next, nil
}

// Finished reports whether the match is over.
func (s State) Finished() bool {
	return s.Phase == PhaseFinished
}

// Ranking orders players by cumulative score, highest first. Ties keep
// participant order, so the earlier joiner ranks higher.
func (s State) Ranking() []string {
	out := slices.Clone(s.Players)
	slices.SortStableFunc(out, func(a, b string) int {
		return s.Scores[b] - s.Scores[a]
	})
	return out
}

// Winner returns the highest scorer.
func (s State) Winner() string {
	r := s.Ranking()
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

package cards

import (
	"math/rand"
	"slices"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
)

// DefaultHandSize is dealt to each player.
const DefaultHandSize = 7

// State is one game. The top of the draw pile and of the discard pile are
// the last elements of Deck and Discard.
type State struct {
	Players         []string          `bson:"players"`
	Deck            []Card            `bson:"deck"`
	Discard         []Card            `bson:"discard"`
	Hands           map[string][]Card `bson:"hands"`
	Current         int               `bson:"current"`
	Direction       int               `bson:"direction"`
	ActiveColor     Color             `bson:"activeColor"`
	PendingDraw     int               `bson:"pendingDraw"`
	PendingKind     Value             `bson:"pendingKind,omitempty"`
	ColorBeforeWild Color             `bson:"colorBeforeWild,omitempty"`
	Wild4By         string            `bson:"wild4By,omitempty"`
	LastCard        map[string]bool   `bson:"lastCard"`
	Placements      []string          `bson:"placements"`
	Finished        bool              `bson:"finished"`
}

// PlayOutcome describes a successful play.
type PlayOutcome struct {
	Card     Card   `json:"card"`
	PlayerID string `json:"playerId"`
	Placed   int    `json:"placed,omitempty"`
}

// ChallengeOutcome describes a resolved wild4 challenge.
type ChallengeOutcome struct {
	Challenger string `json:"challenger"`
	Accused    string `json:"accused"`
	Guilty     bool   `json:"guilty"`
	Penalized  string `json:"penalized"`
	Drawn      int    `json:"drawn"`
}

// Engine deals and runs games. rng must not be shared across goroutines.
type Engine struct {
	rng      *rand.Rand
	handSize int
}

// New creates an engine.
func New(rng *rand.Rand, handSize int) *Engine {
	if handSize <= 0 {
		handSize = DefaultHandSize
	}
	return &Engine{rng: rng, handSize: handSize}
}

func (s State) clone() State {
	out := s
	out.Players = slices.Clone(s.Players)
	out.Deck = slices.Clone(s.Deck)
	out.Discard = slices.Clone(s.Discard)
	out.Placements = slices.Clone(s.Placements)
	out.Hands = make(map[string][]Card, len(s.Hands))
	for k, v := range s.Hands {
		out.Hands[k] = slices.Clone(v)
	}
	out.LastCard = make(map[string]bool, len(s.LastCard))
	for k, v := range s.LastCard {
		out.LastCard[k] = v
	}
	return out
}

// NewGame shuffles a fresh deck, deals every player a hand and seeds the
// discard pile with a non-wild card.
func (e *Engine) NewGame(players []string) (State, error) {
	if len(players) < 2 {
		return State{}, apperrors.New(apperrors.CodeNotEnoughPlayers, "This game needs at least 2 players")
	}
	deck := CreateDeck()
	Shuffle(e.rng, deck)

	s := State{
		Players:   slices.Clone(players),
		Deck:      deck,
		Hands:     make(map[string][]Card, len(players)),
		Direction: 1,
		LastCard:  make(map[string]bool, len(players)),
	}
	for i := 0; i < e.handSize; i++ {
		for _, p := range s.Players {
			s.Hands[p] = append(s.Hands[p], s.pop())
		}
	}
	for {
		c := s.pop()
		if !c.IsWild() {
			s.Discard = append(s.Discard, c)
			s.ActiveColor = c.Color
			break
		}
		s.Deck = append([]Card{c}, s.Deck...)
	}
	return s, nil
}

func (s *State) pop() Card {
	c := s.Deck[len(s.Deck)-1]
	s.Deck = s.Deck[:len(s.Deck)-1]
	return c
}

// Top returns the visible discard.
func (s State) Top() Card {
	return s.Discard[len(s.Discard)-1]
}

// CurrentPlayer returns whose turn it is.
func (s State) CurrentPlayer() string {
	if s.Finished || len(s.Players) == 0 {
		return ""
	}
	return s.Players[s.Current]
}

// CardCount is the total number of cards in play, constant for a game.
func (s State) CardCount() int {
	n := len(s.Deck) + len(s.Discard)
	for _, h := range s.Hands {
		n += len(h)
	}
	return n
}

func (s State) active(playerID string) bool {
	return !slices.Contains(s.Placements, playerID)
}

// ActiveCount returns how many players still hold cards.
func (s State) ActiveCount() int {
	return len(s.Players) - len(s.Placements)
}

// advance moves the turn steps active players along the current direction.
// Finished players keep their index but are stepped over.
func (s *State) advance(steps int) {
	n := len(s.Players)
	if s.ActiveCount() == 0 {
		return
	}
	for ; steps > 0; steps-- {
		for {
			s.Current = ((s.Current+s.Direction)%n + n) % n
			if s.active(s.Players[s.Current]) {
				break
			}
		}
	}
}

// draw moves up to n cards to playerID's hand, recycling the discard pile
// (all but the top) into the deck when it runs out. It returns the drawn cards.
func (e *Engine) draw(s *State, playerID string, n int) []Card {
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		if len(s.Deck) == 0 {
			if len(s.Discard) <= 1 {
				break
			}
			top := s.Discard[len(s.Discard)-1]
			s.Deck = slices.Clone(s.Discard[:len(s.Discard)-1])
			s.Discard = []Card{top}
			Shuffle(e.rng, s.Deck)
		}
		c := s.pop()
		s.Hands[playerID] = append(s.Hands[playerID], c)
		drawn = append(drawn, c)
	}
	if len(s.Hands[playerID]) != 1 {
		s.LastCard[playerID] = false
	}
	return drawn
}

// CanPlay reports whether c may be played on the current state.
func (s State) CanPlay(c Card) bool {
	if s.PendingDraw > 0 {
		if s.PendingKind == WildDrawFour {
			return c.Value == WildDrawFour
		}
		return c.Stacks()
	}
	if c.IsWild() {
		return true
	}
	return c.Color == s.ActiveColor || c.Value == s.Top().Value
}

func (s State) checkTurn(actor string) error {
	if s.Finished {
		return apperrors.New(apperrors.CodeGameNotActive, "The game is over")
	}
	if s.CurrentPlayer() != actor {
		return apperrors.New(apperrors.CodeNotYourTurn, "It is not your turn")
	}
	return nil
}

// Play plays cardID from actor's hand. declared is required for wild cards.
func (e *Engine) Play(s State, actor string, cardID int, declared Color) (State, PlayOutcome, error) {
	if err := s.checkTurn(actor); err != nil {
		return s, PlayOutcome{}, err
	}
	idx := slices.IndexFunc(s.Hands[actor], func(c Card) bool { return c.ID == cardID })
	if idx < 0 {
		return s, PlayOutcome{}, apperrors.New(apperrors.CodeCardNotInHand, "You do not hold that card")
	}
	card := s.Hands[actor][idx]
	if !s.CanPlay(card) {
		if s.PendingDraw > 0 {
			return s, PlayOutcome{}, apperrors.New(apperrors.CodeIllegalCard, "Stack a draw card or draw the penalty")
		}
		return s, PlayOutcome{}, apperrors.New(apperrors.CodeIllegalCard, "That card does not match")
	}
	if card.IsWild() && !declared.Valid() {
		return s, PlayOutcome{}, apperrors.New(apperrors.CodeInvalidColor, "Choose red, yellow, green or blue")
	}

	next := s.clone()
	next.Hands[actor] = slices.Delete(next.Hands[actor], idx, idx+1)
	next.Discard = append(next.Discard, card)
	next.Wild4By = ""
	if len(next.Hands[actor]) != 1 {
		next.LastCard[actor] = false
	}
	out := PlayOutcome{Card: card, PlayerID: actor}

	if len(next.Hands[actor]) == 0 {
		next.Placements = append(next.Placements, actor)
		out.Placed = len(next.Placements)
		if next.ActiveCount() <= 1 {
			next.finish()
			return next, out, nil
		}
	}

	prevColor := next.ActiveColor
	switch card.Value {
	case Wild:
		next.ActiveColor = declared
		next.advance(1)
	case WildDrawFour:
		next.ColorBeforeWild = prevColor
		next.ActiveColor = declared
		next.PendingDraw += 4
		next.PendingKind = WildDrawFour
		next.Wild4By = actor
		next.advance(1)
	case DrawTwo:
		next.ActiveColor = card.Color
		next.PendingDraw += 2
		next.PendingKind = DrawTwo
		next.advance(1)
	case Skip:
		next.ActiveColor = card.Color
		next.advance(2)
	case Reverse:
		next.ActiveColor = card.Color
		next.Direction = -next.Direction
		if next.ActiveCount() == 2 {
			next.advance(2)
		} else {
			next.advance(1)
		}
	default:
		next.ActiveColor = card.Color
		next.advance(1)
	}
	return next, out, nil
}

// finish assigns the last active player the final placement.
func (s *State) finish() {
	for _, p := range s.Players {
		if s.active(p) {
			s.Placements = append(s.Placements, p)
		}
	}
	s.Finished = true
	s.PendingDraw = 0
	s.PendingKind = ""
	s.Wild4By = ""
}

// Draw resolves any pending stack by drawing it (or one card when nothing
// is pending) and passes the turn.
func (e *Engine) Draw(s State, actor string) (State, []Card, error) {
	if err := s.checkTurn(actor); err != nil {
		return s, nil, err
	}
	next := s.clone()
	n := 1
	if next.PendingDraw > 0 {
		n = next.PendingDraw
	}
	drawn := e.draw(&next, actor, n)
	next.resolveStack()
	next.advance(1)
	return next, drawn, nil
}

func (s *State) resolveStack() {
	s.PendingDraw = 0
	s.PendingKind = ""
	s.Wild4By = ""
}

// Challenge contests a pending wild4. If its player held a card of the color
// active before the wild4, they draw the stack and the challenger keeps the
// turn; otherwise the challenger draws the stack plus two and loses the turn.
func (e *Engine) Challenge(s State, actor string) (State, ChallengeOutcome, error) {
	if err := s.checkTurn(actor); err != nil {
		return s, ChallengeOutcome{}, err
	}
	if s.PendingKind != WildDrawFour || s.PendingDraw == 0 || s.Wild4By == "" || s.Top().Value != WildDrawFour {
		return s, ChallengeOutcome{}, apperrors.New(apperrors.CodeNoChallenge, "There is no wild draw four to challenge")
	}

	next := s.clone()
	accused := next.Wild4By
	guilty := slices.ContainsFunc(next.Hands[accused], func(c Card) bool {
		return c.Color == next.ColorBeforeWild
	})
	out := ChallengeOutcome{Challenger: actor, Accused: accused, Guilty: guilty}

	if guilty {
		out.Penalized = accused
		out.Drawn = len(e.draw(&next, accused, next.PendingDraw))
		next.resolveStack()
		return next, out, nil
	}
	out.Penalized = actor
	out.Drawn = len(e.draw(&next, actor, next.PendingDraw+2))
	next.resolveStack()
	next.advance(1)
	return next, out, nil
}

// CallLastCard records actor's declaration. It is accepted while holding one
// card, or two cards when about to play one of them.
func (e *Engine) CallLastCard(s State, actor string) (State, error) {
	if s.Finished {
		return s, apperrors.New(apperrors.CodeGameNotActive, "The game is over")
	}
	n := len(s.Hands[actor])
	if !slices.Contains(s.Players, actor) || !s.active(actor) || n == 0 || n > 2 {
		return s, apperrors.New(apperrors.CodeCannotCallLast, "You can only call with one or two cards left")
	}
	next := s.clone()
	next.LastCard[actor] = true
	return next, nil
}

// Catch penalizes target with two cards for holding one card undeclared.
func (e *Engine) Catch(s State, actor, target string) (State, []Card, error) {
	if s.Finished {
		return s, nil, apperrors.New(apperrors.CodeGameNotActive, "The game is over")
	}
	if actor == target || !slices.Contains(s.Players, actor) || !slices.Contains(s.Players, target) {
		return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "Pick another player in this game")
	}
	if !s.active(target) || len(s.Hands[target]) != 1 || s.LastCard[target] {
		return s, nil, apperrors.New(apperrors.CodeNothingToCatch, "That player is safe")
	}
	next := s.clone()
	drawn := e.draw(&next, target, 2)
	return next, drawn, nil
}

// Standings ranks finished players by placement, then remaining players by
// fewest cards held, ties in seat order.
func (s State) Standings() []model.Standing {
	order := slices.Clone(s.Placements)
	rest := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		if s.active(p) {
			rest = append(rest, p)
		}
	}
	slices.SortStableFunc(rest, func(a, b string) int {
		return len(s.Hands[a]) - len(s.Hands[b])
	})
	order = append(order, rest...)

	out := make([]model.Standing, len(order))
	for i, p := range order {
		out[i] = model.Standing{
			PlayerID: p,
			Place:    i + 1,
			Score:    len(order) - i,
		}
	}
	return out
}

// View is the public projection broadcast to the room.
type View struct {
	TopCard       Card            `json:"topCard"`
	ActiveColor   Color           `json:"activeColor"`
	Direction     int             `json:"direction"`
	CurrentPlayer string          `json:"currentPlayer"`
	PendingDraw   int             `json:"pendingDraw"`
	ChallengeOpen bool            `json:"challengeOpen"`
	DeckCount     int             `json:"deckCount"`
	HandCounts    map[string]int  `json:"handCounts"`
	LastCard      map[string]bool `json:"lastCard"`
	Placements    []string        `json:"placements"`
	Finished      bool            `json:"finished"`
}

// Public projects s without revealing hands.
func (s State) Public() View {
	v := View{
		TopCard:       s.Top(),
		ActiveColor:   s.ActiveColor,
		Direction:     s.Direction,
		CurrentPlayer: s.CurrentPlayer(),
		PendingDraw:   s.PendingDraw,
		ChallengeOpen: s.Wild4By != "",
		DeckCount:     len(s.Deck),
		HandCounts:    make(map[string]int, len(s.Hands)),
		LastCard:      make(map[string]bool, len(s.LastCard)),
		Placements:    slices.Clone(s.Placements),
		Finished:      s.Finished,
	}
	for p, h := range s.Hands {
		v.HandCounts[p] = len(h)
	}
	for p, ok := range s.LastCard {
		v.LastCard[p] = ok
	}
	return v
}

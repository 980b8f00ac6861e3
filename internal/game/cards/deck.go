// Package cards implements the stacking card game as a pure state machine.
package cards

import (
	"math/rand"
	"strconv"
)

// Color of a card. Wild cards carry ColorWild until played.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"

	ColorWild Color = "wild"
)

// Colors lists the four playable colors.
var Colors = []Color{Red, Yellow, Green, Blue}

// Valid reports whether c is a color a player may declare.
func (c Color) Valid() bool {
	switch c {
	case Red, Yellow, Green, Blue:
		return true
	}
	return false
}

// Value is a card's symbol.
type Value string

const (
	Skip         Value = "skip"
	Reverse      Value = "reverse"
	DrawTwo      Value = "draw2"
	Wild         Value = "wild"
	WildDrawFour Value = "wild4"
)

// Card is one physical card. IDs are unique within a deck.
type Card struct {
	ID    int   `json:"id" bson:"id"`
	Color Color `json:"color" bson:"color"`
	Value Value `json:"value" bson:"value"`
}

// IsWild reports whether the card can be played on anything.
func (c Card) IsWild() bool {
	return c.Value == Wild || c.Value == WildDrawFour
}

// Stacks reports whether the card adds to a pending draw.
func (c Card) Stacks() bool {
	return c.Value == DrawTwo || c.Value == WildDrawFour
}

// DeckSize is the number of cards CreateDeck returns.
const DeckSize = 108

// CreateDeck builds the fixed composition: per color one 0, two each of 1-9
// and two each of skip, reverse and draw2; plus four wild and four wild4.
func CreateDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	add := func(c Color, v Value) {
		deck = append(deck, Card{ID: len(deck), Color: c, Value: v})
	}
	for _, c := range Colors {
		add(c, "0")
		for n := 1; n <= 9; n++ {
			v := Value(strconv.Itoa(n))
			add(c, v)
			add(c, v)
		}
		for _, v := range []Value{Skip, Reverse, DrawTwo} {
			add(c, v)
			add(c, v)
		}
	}
	for i := 0; i < 4; i++ {
		add(ColorWild, Wild)
		add(ColorWild, WildDrawFour)
	}
	return deck
}

// Shuffle permutes cards uniformly in place.
func Shuffle(rng *rand.Rand, cards []Card) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

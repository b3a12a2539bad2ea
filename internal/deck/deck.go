package deck

import rand "math/rand/v2"

// ReshuffleThreshold is the number of remaining cards at or below which the
// deck is rebuilt and reshuffled before the next draw.
const ReshuffleThreshold = 10

// Deck represents a shoe of playing cards owned by a single room
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a new shuffled 52-card deck using the provided RNG
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	d.rebuild()
	return d
}

// rebuild restores the deck to a full 52-card sequence and shuffles it
func (d *Deck) rebuild() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Ace; rank <= King; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	d.Shuffle()
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the last card. When the deck has run down to the
// reshuffle threshold it is rebuilt to 52 cards and reshuffled first, so
// Draw never fails.
func (d *Deck) Draw() Card {
	if len(d.cards) <= ReshuffleThreshold {
		d.rebuild()
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card
}

// Peek returns the card the next Draw would return, without removing it.
// The dealer house rule inspects this to avoid drawing into a bust.
func (d *Deck) Peek() Card {
	if len(d.cards) <= ReshuffleThreshold {
		d.rebuild()
	}
	return d.cards[len(d.cards)-1]
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Stack places cards on top of the deck so they come off in the given
// order. Tests use this to rig deals.
func (d *Deck) Stack(cards ...Card) {
	for i := len(cards) - 1; i >= 0; i-- {
		d.cards = append(d.cards, cards[i])
	}
}

// Reset restores the deck to a full shuffled 52-card sequence
func (d *Deck) Reset() {
	d.rebuild()
}

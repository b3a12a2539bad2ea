package deck

import "strings"

// Hand is an ordered sequence of cards belonging to one seat or the dealer
type Hand []Card

// Score computes the best blackjack total for the hand. Aces count 11 and
// are reduced to 1 one at a time while the total exceeds 21. An empty hand
// scores 0. The result does not depend on card order.
func (h Hand) Score() int {
	score := 0
	aces := 0
	for _, c := range h {
		if c.IsAce() {
			aces++
		}
		score += c.Value()
	}
	for score > 21 && aces > 0 {
		score -= 10
		aces--
	}
	return score
}

// IsBlackjack reports whether the hand is a natural: exactly two cards
// totalling 21.
func (h Hand) IsBlackjack() bool {
	return len(h) == 2 && h.Score() == 21
}

// IsFiveCardCharlie reports whether the hand qualifies for the five-card
// charlie automatic win: five or more cards without busting.
func (h Hand) IsFiveCardCharlie() bool {
	return len(h) >= 5 && h.Score() <= 21
}

// IsBust reports whether the hand total exceeds 21
func (h Hand) IsBust() bool {
	return h.Score() > 21
}

// String renders the hand as space-separated cards, e.g. "A♠ K♥"
func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

package game

import "github.com/lox/blackjackroom/internal/deck"

// SeatState is the per-seat lifecycle state
type SeatState string

const (
	SeatWaiting    SeatState = "waiting"
	SeatReady      SeatState = "ready"
	SeatBetting    SeatState = "betting"
	SeatPlaying    SeatState = "playing"
	SeatStand      SeatState = "stand"
	SeatBusted     SeatState = "busted"
	SeatBlackjack  SeatState = "blackjack"
	SeatFiveDragon SeatState = "five_dragon"
	SeatSpectating SeatState = "spectating"
)

// Terminal reports whether the state ends a seat's turn for the round
func (s SeatState) Terminal() bool {
	switch s {
	case SeatStand, SeatBusted, SeatBlackjack, SeatFiveDragon:
		return true
	}
	return false
}

// DefaultFunds is the bankroll a freshly created seat starts with
const DefaultFunds = 1000

// Seat is the per-participant state at a room. The seat ID is stable across
// reconnects; transport churn is absorbed by the session mapper.
type Seat struct {
	ID         string
	Name       string
	Hand       deck.Hand
	Funds      int
	Wager      int
	State      SeatState
	Automated  bool
	Difficulty string
	Connected  bool
}

// NewSeat creates a human seat with the default bankroll
func NewSeat(id, name string) *Seat {
	return &Seat{
		ID:        id,
		Name:      name,
		Funds:     DefaultFunds,
		State:     SeatWaiting,
		Connected: true,
	}
}

// NewAutomatedSeat creates an automated seat with the default bankroll
func NewAutomatedSeat(id, name, difficulty string) *Seat {
	return &Seat{
		ID:         id,
		Name:       name,
		Funds:      DefaultFunds,
		State:      SeatWaiting,
		Automated:  true,
		Difficulty: difficulty,
		Connected:  true,
	}
}

// Score returns the seat's current hand total
func (s *Seat) Score() int {
	return s.Hand.Score()
}

// Funded reports whether the seat can take part in the next round
func (s *Seat) Funded() bool {
	return s.Funds > 0
}

// InRound reports whether the seat has money on the current round
func (s *Seat) InRound() bool {
	return s.Wager > 0
}

// resetForNewRound clears round state while preserving the bankroll
func (s *Seat) resetForNewRound() {
	s.Hand = nil
	s.Wager = 0
	if s.Funds <= 0 {
		s.State = SeatSpectating
	} else {
		s.State = SeatWaiting
	}
}

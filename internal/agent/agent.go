package agent

import (
	"fmt"
	rand "math/rand/v2"
	"strings"

	"github.com/lox/blackjackroom/internal/game"
)

// Difficulty selects the decision table an automated seat plays with
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Expert Difficulty = "expert"
)

// ParseDifficulty normalises a difficulty string, falling back to Medium
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(s)) {
	case Easy, Medium, Hard, Expert:
		return Difficulty(strings.ToLower(s))
	default:
		return Medium
	}
}

var namePrefixes = map[Difficulty]string{
	Easy:   "Beginner",
	Medium: "Casual",
	Hard:   "Sharp",
	Expert: "Master",
}

var namePool = []string{
	"Alex", "Emma", "Jack", "Olivia", "James",
	"Alpha", "Beta", "Gamma", "Delta", "Epsilon",
	"Lucky", "Ace", "Dealer", "Shark", "Whale",
}

// Name generates a display name for an automated seat
func Name(d Difficulty, rng *rand.Rand) string {
	prefix, ok := namePrefixes[d]
	if !ok {
		prefix = "Player"
	}
	return fmt.Sprintf("%s-%s", prefix, namePool[rng.IntN(len(namePool))])
}

type playAction int

const (
	actStand playAction = iota
	actHit
	actDouble
)

// Agent drives automated seats through ready, wager and play decisions.
// Each room owns its own agent and the room service calls Act while holding
// that room's lock, so Act never needs its own synchronization.
type Agent struct {
	rng *rand.Rand
}

// New creates an agent using rng for every randomised decision
func New(rng *rand.Rand) *Agent {
	return &Agent{rng: rng}
}

// Act performs exactly one action for the automated seat, chosen by the
// room's phase. Off-turn calls during play are a no-op rather than an
// error so the caller can poll without bookkeeping.
func (a *Agent) Act(room *game.Room, seatID string) error {
	seat := room.Seat(seatID)
	if seat == nil {
		return nil
	}
	switch room.Phase() {
	case game.PhaseWaiting:
		if seat.State != game.SeatWaiting {
			return nil
		}
		return room.SetReady(seatID)
	case game.PhaseBetting:
		if seat.State != game.SeatBetting {
			return nil
		}
		return room.PlaceBet(seatID, a.Wager(Difficulty(seat.Difficulty), seat.Funds, room.MinWager()))
	case game.PhasePlaying:
		current := room.CurrentSeat()
		if current == nil || current.ID != seatID {
			return nil
		}
		canDouble := len(seat.Hand) == 2 && seat.Funds >= seat.Wager
		switch a.playDecision(Difficulty(seat.Difficulty), seat.Score(), room.DealerUpcardValue(), canDouble) {
		case actDouble:
			return room.DoubleDown(seatID)
		case actHit:
			return room.Hit(seatID)
		default:
			return room.Stand(seatID)
		}
	}
	return nil
}

// Wager picks a bet for the seat. Stronger tiers size against their
// bankroll; every tier respects the table minimum and never bets more
// than the seat holds.
func (a *Agent) Wager(d Difficulty, funds, minWager int) int {
	var amount int
	switch d {
	case Easy:
		amount = minWager
	case Hard:
		amount = a.randRange(minWager, min(5*minWager, funds/5))
	case Expert:
		base := funds / 10
		amount = a.randRange(max(base, minWager), min(6*minWager, funds*3/10))
	default: // Medium
		amount = a.randRange(minWager, min(3*minWager, funds))
	}
	if amount < minWager {
		amount = minWager
	}
	if amount > funds {
		amount = funds
	}
	return amount
}

// playDecision implements the per-tier hit/stand tables. Hard and expert
// tiers may upgrade a two-card 9-11 to a double down.
func (a *Agent) playDecision(d Difficulty, score, dealerUp int, canDouble bool) playAction {
	decision := actStand
	switch d {
	case Easy:
		if score < 17 {
			decision = actHit
		}
	case Hard:
		switch {
		case score < 12:
			decision = actHit
		case score < 17 && dealerUp >= 7:
			decision = actHit
		}
	case Expert:
		switch {
		case score <= 11:
			decision = actHit
		case score == 12:
			if dealerUp == 2 || dealerUp == 3 || dealerUp >= 7 {
				decision = actHit
			}
		case score <= 16:
			if dealerUp >= 7 {
				decision = actHit
			}
		}
	default: // Medium
		switch {
		case score < 12:
			decision = actHit
		case score < 17:
			if dealerUp >= 7 {
				decision = actHit
			} else if a.rng.Float64() < 0.3 {
				decision = actHit
			}
		}
	}

	if canDouble && (d == Hard || d == Expert) && score >= 9 && score <= 11 {
		chance := 0.5
		if d == Expert {
			chance = 0.8
		}
		if a.rng.Float64() < chance {
			decision = actDouble
		}
	}
	return decision
}

// randRange returns a uniform value in [lo, hi], collapsing to lo when the
// range is empty.
func (a *Agent) randRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + a.rng.IntN(hi-lo+1)
}

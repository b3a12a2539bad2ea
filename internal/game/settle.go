package game

import "fmt"

// playDealer runs the dealer's turn and settles the round. The dealer hits
// while under 17, except that holding four cards with a live total it will
// peek rather than draw into a bust, keeping its own five-card charlie
// chance intact only when the next card is safe.
func (r *Room) playDealer() {
	r.phase = PhaseDealerTurn
	r.message = "Dealer's turn"

	for r.dealer.Score() < 17 {
		if len(r.dealer) == 4 && r.dealer.Score() <= 21 {
			next := r.shoe.Peek()
			if r.dealer.Score()+next.HardValue() > 21 {
				break
			}
		}
		r.dealer = append(r.dealer, r.shoe.Draw())
	}

	r.logger.Debug("Dealer done", "hand", r.dealer.String(), "score", r.dealer.Score())
	r.settle()
}

// roundOutcome is the settlement result for one seat
type roundOutcome string

const (
	outcomeWin  roundOutcome = "win"
	outcomeLose roundOutcome = "lose"
	outcomePush roundOutcome = "push"
)

// settle applies payouts with the precedence five-card-charlie > natural
// blackjack > high score > dealer bust > push, records the round, and moves
// the room to the settled phase. Wagers were deducted at bet time, so a win
// credits 2x (3x for a charlie, 2.5x for a natural) and a push credits 1x.
func (r *Room) settle() {
	r.phase = PhaseSettled

	dealerScore := r.dealer.Score()
	dealerBust := dealerScore > 21
	dealerCharlie := r.dealer.IsFiveCardCharlie()
	dealerNatural := r.dealer.IsBlackjack()

	for _, id := range r.order {
		seat := r.seats[id]
		if !seat.InRound() || seat.State == SeatSpectating || seat.State == SeatWaiting {
			continue
		}
		if seat.State == SeatBusted {
			// Wager already forfeited at bet time.
			continue
		}

		outcome, credit := settleSeat(seat, dealerScore, dealerBust, dealerCharlie, dealerNatural)
		seat.Funds += credit
		r.logger.Debug("Seat settled",
			"seat", seat.ID,
			"outcome", string(outcome),
			"credit", credit,
			"funds", seat.Funds)
	}

	r.message = fmt.Sprintf("Round over, dealer has %d", dealerScore)
	if dealerBust {
		r.message = "Round over, dealer busts"
	}

	if !r.checkFunds() {
		// checkFunds already force-settled; the voided round is not recorded.
		return
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRound(r.ID, r.snapshot(true)); err != nil {
			r.logger.Error("Failed to record round", "error", err)
		}
	}
}

// settleSeat computes one seat's outcome and the amount credited back
func settleSeat(seat *Seat, dealerScore int, dealerBust, dealerCharlie, dealerNatural bool) (roundOutcome, int) {
	score := seat.Score()
	charlie := seat.State == SeatFiveDragon
	natural := seat.State == SeatBlackjack

	switch {
	case charlie && dealerCharlie:
		if score > dealerScore {
			return outcomeWin, seat.Wager * 3
		}
		if score < dealerScore {
			return outcomeLose, 0
		}
		return outcomePush, seat.Wager
	case charlie:
		return outcomeWin, seat.Wager * 3
	case dealerCharlie:
		return outcomeLose, 0
	case natural && dealerNatural:
		return outcomePush, seat.Wager
	case natural:
		// 3:2 payout, floored: wager back plus 1.5x winnings.
		return outcomeWin, seat.Wager * 5 / 2
	case dealerNatural:
		return outcomeLose, 0
	case dealerBust:
		return outcomeWin, seat.Wager * 2
	case score > dealerScore:
		return outcomeWin, seat.Wager * 2
	case score < dealerScore:
		return outcomeLose, 0
	default:
		return outcomePush, seat.Wager
	}
}

// checkFunds guards the funds-never-negative invariant and reports whether
// it held. A violation is fatal to the round, not the process: the round
// force-settles as a push for every seat still in it, the anomaly is
// logged, and the repaired state is still a valid room state to broadcast.
func (r *Room) checkFunds() bool {
	for _, seat := range r.seats {
		if seat.Funds < 0 {
			r.logger.Error("Funds invariant violated, force-settling round as push",
				"seat", seat.ID, "funds", seat.Funds, "wager", seat.Wager)
			r.forceSettlePush()
			return false
		}
	}
	return true
}

// forceSettlePush refunds every outstanding wager and settles the round
// immediately. Used as the safe recovery from an internal inconsistency.
func (r *Room) forceSettlePush() {
	for _, seat := range r.seats {
		if seat.Wager > 0 {
			seat.Funds += seat.Wager
			seat.Wager = 0
		}
		if seat.Funds < 0 {
			seat.Funds = 0
		}
		if seat.State.Terminal() || seat.State == SeatPlaying || seat.State == SeatBetting || seat.State == SeatReady {
			seat.State = SeatStand
		}
	}
	r.phase = PhaseSettled
	r.message = "Round voided, wagers returned"
}

// VoidRound abandons a round that cannot make progress, refunding every
// outstanding wager. A no-op outside an active round.
func (r *Room) VoidRound() {
	if r.phase == PhaseWaiting || r.phase == PhaseSettled {
		return
	}
	r.logger.Warn("Voiding stalled round", "phase", r.phase)
	r.forceSettlePush()
}

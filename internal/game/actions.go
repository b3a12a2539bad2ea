package game

import "fmt"

// SetReady toggles a waiting seat to ready (and back), or brings a funded
// spectator into the next round. When every funded seat is ready the room
// enters the betting phase.
func (r *Room) SetReady(seatID string) error {
	if r.phase != PhaseWaiting {
		return rejectf(RejectWrongPhase, "cannot ready up during %s", r.phase)
	}
	seat := r.seats[seatID]
	if seat == nil {
		return rejectf(RejectSeatNotFound, "seat %s not in room", seatID)
	}

	switch seat.State {
	case SeatWaiting:
		seat.State = SeatReady
	case SeatReady:
		seat.State = SeatWaiting
	case SeatSpectating:
		if !seat.Funded() {
			return rejectf(RejectInsufficientFunds, "%s has no funds", seat.Name)
		}
		seat.State = SeatReady
	default:
		return rejectf(RejectInvalidState, "seat %s cannot ready from %s", seatID, seat.State)
	}

	r.maybeStartBetting()
	return nil
}

// maybeStartBetting transitions to the betting phase once every funded,
// non-spectating seat is ready.
func (r *Room) maybeStartBetting() {
	funded := r.fundedSeats()
	if len(funded) == 0 {
		r.message = "Waiting for funded players"
		return
	}
	for _, seat := range funded {
		if seat.State != SeatReady {
			return
		}
	}

	r.phase = PhaseBetting
	r.message = "Place your bets"
	for _, id := range r.order {
		seat := r.seats[id]
		seat.resetForNewRound()
		if seat.Funded() {
			seat.State = SeatBetting
		} else {
			seat.State = SeatSpectating
		}
	}
	r.dealer = nil
	r.logger.Info("Betting open", "seats", len(funded))
}

// PlaceBet records a wager for a seat. Funds are deducted immediately. When
// the last outstanding bettor clears, the initial deal happens and the room
// enters the playing phase.
func (r *Room) PlaceBet(seatID string, amount int) error {
	if r.phase != PhaseBetting {
		return rejectf(RejectWrongPhase, "cannot bet during %s", r.phase)
	}
	seat := r.seats[seatID]
	if seat == nil {
		return rejectf(RejectSeatNotFound, "seat %s not in room", seatID)
	}
	if seat.State != SeatBetting {
		return rejectf(RejectInvalidState, "seat %s is not betting", seatID)
	}
	if amount <= 0 {
		return rejectf(RejectInvalidWager, "wager must be positive")
	}
	if amount > seat.Funds {
		return rejectf(RejectInsufficientFunds, "%s has %d, cannot wager %d", seat.Name, seat.Funds, amount)
	}

	seat.Funds -= amount
	seat.Wager = amount
	seat.State = SeatReady
	r.message = fmt.Sprintf("%s wagers %d", seat.Name, amount)
	r.logger.Debug("Wager placed", "seat", seatID, "amount", amount, "funds", seat.Funds)

	r.maybeDeal()
	// A failed check has already force-settled the round into a valid
	// state; the command itself succeeded, so the caller broadcasts it.
	r.checkFunds()
	return nil
}

// maybeDeal starts the round once no seat is still betting
func (r *Room) maybeDeal() {
	anyWagered := false
	for _, id := range r.order {
		seat := r.seats[id]
		if seat.State == SeatBetting {
			return
		}
		if seat.Wager > 0 {
			anyWagered = true
		}
	}
	if !anyWagered {
		return
	}
	r.deal()
}

// deal gives two cards to every wagering seat and the dealer, resolves
// immediate naturals, and opens play with the first seat still in the hand.
func (r *Room) deal() {
	r.phase = PhasePlaying

	for _, id := range r.order {
		seat := r.seats[id]
		if seat.State != SeatReady || seat.Wager == 0 {
			continue
		}
		seat.Hand = append(seat.Hand[:0], r.shoe.Draw(), r.shoe.Draw())
		if seat.Hand.IsBlackjack() {
			seat.State = SeatBlackjack
		} else {
			seat.State = SeatPlaying
		}
	}

	r.dealer = append(r.dealer[:0], r.shoe.Draw(), r.shoe.Draw())
	r.message = "Cards dealt"
	r.logger.Info("Round dealt", "deckRemaining", r.shoe.Remaining())

	r.activeSeatIndex = 0
	r.seekPlayingSeat()
}

// Hit draws one card for the acting seat
func (r *Room) Hit(seatID string) error {
	seat, err := r.actingSeat(seatID)
	if err != nil {
		return err
	}

	seat.Hand = append(seat.Hand, r.shoe.Draw())
	score := seat.Score()

	switch {
	case score > 21:
		seat.State = SeatBusted
		r.message = fmt.Sprintf("%s busts with %d", seat.Name, score)
		r.advanceTurn()
	case score == 21:
		seat.State = SeatStand
		r.message = fmt.Sprintf("%s hits 21", seat.Name)
		r.advanceTurn()
	case len(seat.Hand) >= 5:
		seat.State = SeatFiveDragon
		r.message = fmt.Sprintf("%s draws a five-card charlie", seat.Name)
		r.advanceTurn()
	default:
		r.message = fmt.Sprintf("%s hits to %d", seat.Name, score)
	}
	return nil
}

// Stand ends the acting seat's turn
func (r *Room) Stand(seatID string) error {
	seat, err := r.actingSeat(seatID)
	if err != nil {
		return err
	}
	seat.State = SeatStand
	r.message = fmt.Sprintf("%s stands on %d", seat.Name, seat.Score())
	r.advanceTurn()
	return nil
}

// DoubleDown doubles the acting seat's wager, draws exactly one card, and
// ends the turn. Requires exactly two cards and funds covering the wager.
func (r *Room) DoubleDown(seatID string) error {
	seat, err := r.actingSeat(seatID)
	if err != nil {
		return err
	}
	if len(seat.Hand) != 2 {
		return rejectf(RejectInvalidState, "double down requires exactly two cards")
	}
	if seat.Funds < seat.Wager {
		return rejectf(RejectInsufficientFunds, "%s cannot cover a doubled wager", seat.Name)
	}

	seat.Funds -= seat.Wager
	seat.Wager *= 2
	seat.Hand = append(seat.Hand, r.shoe.Draw())

	if seat.Hand.IsBust() {
		seat.State = SeatBusted
		r.message = fmt.Sprintf("%s doubles down and busts", seat.Name)
	} else {
		seat.State = SeatStand
		r.message = fmt.Sprintf("%s doubles down and stands on %d", seat.Name, seat.Score())
	}
	r.advanceTurn()
	// As with PlaceBet, a funds repair is a state change to broadcast,
	// not a rejection of the command that exposed it.
	r.checkFunds()
	return nil
}

// actingSeat validates phase, seat identity and turn ownership for a play
// action and returns the seat.
func (r *Room) actingSeat(seatID string) (*Seat, error) {
	if r.phase != PhasePlaying {
		return nil, rejectf(RejectWrongPhase, "cannot act during %s", r.phase)
	}
	seat := r.seats[seatID]
	if seat == nil {
		return nil, rejectf(RejectSeatNotFound, "seat %s not in room", seatID)
	}
	if seat.State != SeatPlaying {
		return nil, rejectf(RejectInvalidState, "seat %s is not in the hand", seatID)
	}
	if r.activeSeatIndex >= len(r.order) || r.order[r.activeSeatIndex] != seatID {
		return nil, rejectf(RejectNotYourTurn, "it is not %s's turn", seat.Name)
	}
	return seat, nil
}

// PrepareNextRound resets a settled room back to waiting. Seats that went
// broke become spectators; the shoe is rebuilt.
func (r *Room) PrepareNextRound() error {
	if r.phase != PhaseSettled {
		return rejectf(RejectWrongPhase, "round is not settled")
	}
	for _, seat := range r.seats {
		seat.resetForNewRound()
	}
	r.dealer = nil
	r.shoe.Reset()
	r.activeSeatIndex = 0
	r.phase = PhaseWaiting
	r.message = "Ready up for the next round"
	r.logger.Info("Next round prepared")
	return nil
}

// RemoveSeat takes a seat out of the room, repairing turn order so no seat
// is skipped or repeated. Removing the last seat leaves the room empty; the
// registry destroys it.
func (r *Room) RemoveSeat(seatID string) error {
	seat := r.seats[seatID]
	if seat == nil {
		return rejectf(RejectSeatNotFound, "seat %s not in room", seatID)
	}

	idx := -1
	for i, id := range r.order {
		if id == seatID {
			idx = i
			break
		}
	}
	delete(r.seats, seatID)
	if idx >= 0 {
		r.order = append(r.order[:idx], r.order[idx+1:]...)
	}
	r.logger.Info("Seat removed", "seat", seatID, "name", seat.Name, "remaining", len(r.seats))

	if len(r.order) == 0 {
		return nil
	}

	switch r.phase {
	case PhasePlaying:
		if idx >= 0 && r.activeSeatIndex > idx {
			// A seat before the active one left; shift down so the
			// active seat is neither skipped nor repeated.
			r.activeSeatIndex--
		}
		if r.activeSeatIndex >= len(r.order) {
			r.activeSeatIndex = 0
		}
		r.seekPlayingSeat()
	case PhaseBetting:
		// The departed seat may have been the last outstanding bettor.
		r.maybeDeal()
	case PhaseWaiting:
		r.maybeStartBetting()
	}
	return nil
}

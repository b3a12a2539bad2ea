package game

import "github.com/lox/blackjackroom/internal/deck"

// CardView is the wire form of a card. The dealer's hidden card is masked
// as "?"/"?" until the dealer turn reveals it.
type CardView struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

func cardView(c deck.Card) CardView {
	return CardView{Suit: c.Suit.String(), Rank: c.Rank.String()}
}

var hiddenCard = CardView{Suit: "?", Rank: "?"}

// SeatView is the wire form of a seat
type SeatView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Hand       []CardView `json:"hand"`
	Score      int        `json:"score"`
	Funds      int        `json:"funds"`
	Wager      int        `json:"wager"`
	State      SeatState  `json:"state"`
	Automated  bool       `json:"automated"`
	Difficulty string     `json:"difficulty,omitempty"`
	Connected  bool       `json:"connected"`
}

// DealerView is the wire form of the dealer's hand
type DealerView struct {
	Hand  []CardView `json:"hand"`
	Score int        `json:"score"`
}

// Snapshot is a complete, fully-settled view of a room. Broadcasts only
// ever carry snapshots; partially applied mutations are never observable.
type Snapshot struct {
	RoomID          string     `json:"roomId"`
	Name            string     `json:"name"`
	Phase           Phase      `json:"phase"`
	Message         string     `json:"message"`
	Seats           []SeatView `json:"seats"`
	SeatOrder       []string   `json:"seatOrder"`
	ActiveSeatIndex int        `json:"activeSeatIndex"`
	Dealer          DealerView `json:"dealer"`
	DeckRemaining   int        `json:"deckRemaining"`
}

// Snapshot returns the room state for broadcast. The dealer's second card
// stays masked until the room reaches the dealer turn.
func (r *Room) Snapshot() Snapshot {
	revealed := r.phase == PhaseDealerTurn || r.phase == PhaseSettled
	return r.snapshot(revealed)
}

func (r *Room) snapshot(includeHidden bool) Snapshot {
	seats := make([]SeatView, 0, len(r.order))
	for _, id := range r.order {
		seat := r.seats[id]
		hand := make([]CardView, len(seat.Hand))
		for i, c := range seat.Hand {
			hand[i] = cardView(c)
		}
		seats = append(seats, SeatView{
			ID:         seat.ID,
			Name:       seat.Name,
			Hand:       hand,
			Score:      seat.Score(),
			Funds:      seat.Funds,
			Wager:      seat.Wager,
			State:      seat.State,
			Automated:  seat.Automated,
			Difficulty: seat.Difficulty,
			Connected:  seat.Connected,
		})
	}

	dealer := DealerView{Hand: make([]CardView, len(r.dealer))}
	for i, c := range r.dealer {
		dealer.Hand[i] = cardView(c)
	}
	dealer.Score = r.dealer.Score()
	if !includeHidden && len(r.dealer) > 1 {
		dealer.Hand[1] = hiddenCard
		dealer.Score = deck.Hand{r.dealer[0]}.Score()
	}

	order := make([]string, len(r.order))
	copy(order, r.order)

	return Snapshot{
		RoomID:          r.ID,
		Name:            r.Name,
		Phase:           r.phase,
		Message:         r.message,
		Seats:           seats,
		SeatOrder:       order,
		ActiveSeatIndex: r.activeSeatIndex,
		Dealer:          dealer,
		DeckRemaining:   r.shoe.Remaining(),
	}
}

// DealerUpcardValue returns the value of the dealer's visible card, 0 when
// no cards have been dealt. Automated seats condition on this.
func (r *Room) DealerUpcardValue() int {
	if len(r.dealer) == 0 {
		return 0
	}
	return r.dealer[0].Value()
}

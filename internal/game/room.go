package game

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjackroom/internal/deck"
	"github.com/lox/blackjackroom/internal/randutil"
)

// Phase is the room-level game phase
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseBetting    Phase = "betting"
	PhasePlaying    Phase = "playing"
	PhaseDealerTurn Phase = "dealer_turn"
	PhaseSettled    Phase = "settled"
)

// Recorder receives settled round snapshots for append-only persistence.
// Failures are logged by the room and never affect settlement.
type Recorder interface {
	RecordRound(roomID string, snap Snapshot) error
}

// Options configures a new room
type Options struct {
	MaxSeats int
	MinWager int
	Seed     int64
	Recorder Recorder
	Logger   *log.Logger
}

// Room is the authoritative per-room state machine. It owns the deck, the
// dealer hand, the seated players and every state transition. Rooms are not
// safe for concurrent use; the room service serializes all mutations.
type Room struct {
	ID   string
	Name string

	maxSeats int
	minWager int

	seats map[string]*Seat
	order []string // seat IDs in join order; this is the turn order

	dealer deck.Hand
	shoe   *deck.Deck

	phase           Phase
	activeSeatIndex int
	message         string

	recorder Recorder
	logger   *log.Logger
}

// NewRoom creates an empty room in the waiting phase
func NewRoom(id, name string, opts Options) *Room {
	if opts.MaxSeats <= 0 {
		opts.MaxSeats = 5
	}
	if opts.MinWager <= 0 {
		opts.MinWager = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Room{
		ID:       id,
		Name:     name,
		maxSeats: opts.MaxSeats,
		minWager: opts.MinWager,
		seats:    make(map[string]*Seat),
		shoe:     deck.NewDeck(randutil.New(opts.Seed)),
		phase:    PhaseWaiting,
		message:  "Waiting for players to join",
		recorder: opts.Recorder,
		logger:   logger.WithPrefix("room").With("room", id),
	}
}

// Phase returns the current room phase
func (r *Room) Phase() Phase {
	return r.phase
}

// Message returns the current table message
func (r *Room) Message() string {
	return r.message
}

// MinWager returns the table minimum wager
func (r *Room) MinWager() int {
	return r.minWager
}

// MaxSeats returns the room's seat capacity
func (r *Room) MaxSeats() int {
	return r.maxSeats
}

// Seat returns the seat with the given ID, or nil
func (r *Room) Seat(seatID string) *Seat {
	return r.seats[seatID]
}

// SeatCount returns the number of occupied seats
func (r *Room) SeatCount() int {
	return len(r.seats)
}

// Empty reports whether the room has no seats left
func (r *Room) Empty() bool {
	return len(r.seats) == 0
}

// Seats returns the seats in turn order
func (r *Room) Seats() []*Seat {
	out := make([]*Seat, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seats[id])
	}
	return out
}

// ActiveSeatIndex returns the index into turn order of the acting seat
func (r *Room) ActiveSeatIndex() int {
	return r.activeSeatIndex
}

// AddSeat seats a participant at the room, preserving join order as turn
// order. Rejected when the room is at capacity.
func (r *Room) AddSeat(seat *Seat) error {
	if len(r.seats) >= r.maxSeats {
		return rejectf(RejectRoomFull, "room %s is full", r.ID)
	}
	if _, exists := r.seats[seat.ID]; exists {
		return rejectf(RejectInvalidState, "seat %s already present", seat.ID)
	}
	r.seats[seat.ID] = seat
	r.order = append(r.order, seat.ID)
	r.logger.Info("Seat joined", "seat", seat.ID, "name", seat.Name, "automated", seat.Automated, "seats", len(r.seats))
	return nil
}

// CurrentSeat returns the seat whose turn it is, or nil when the room is not
// in the playing phase or no seat owes an action.
func (r *Room) CurrentSeat() *Seat {
	if r.phase != PhasePlaying || len(r.order) == 0 {
		return nil
	}
	if r.activeSeatIndex < 0 || r.activeSeatIndex >= len(r.order) {
		return nil
	}
	seat := r.seats[r.order[r.activeSeatIndex]]
	if seat == nil || seat.State != SeatPlaying {
		return nil
	}
	return seat
}

// PendingAutomated returns an automated seat that owes an action in the
// current phase, or nil. The orchestrator polls this after every mutation.
func (r *Room) PendingAutomated() *Seat {
	switch r.phase {
	case PhaseWaiting:
		for _, id := range r.order {
			seat := r.seats[id]
			if seat.Automated && seat.State == SeatWaiting && seat.Funded() {
				return seat
			}
		}
	case PhaseBetting:
		for _, id := range r.order {
			seat := r.seats[id]
			if seat.Automated && seat.State == SeatBetting {
				return seat
			}
		}
	case PhasePlaying:
		if seat := r.CurrentSeat(); seat != nil && seat.Automated {
			return seat
		}
	}
	return nil
}

// ProgressKey identifies the room's position for stall detection: the
// watchdog considers the room stuck when this does not change.
func (r *Room) ProgressKey() (Phase, int) {
	return r.phase, r.activeSeatIndex
}

// fundedSeats returns seats that can take part in readiness/betting checks
func (r *Room) fundedSeats() []*Seat {
	var out []*Seat
	for _, id := range r.order {
		seat := r.seats[id]
		if seat.Funded() && seat.State != SeatSpectating {
			out = append(out, seat)
		}
	}
	return out
}

// advanceTurn moves the active index to the next seat still playing,
// wrapping modulo seat count. When none remain the dealer plays out and the
// round settles.
func (r *Room) advanceTurn() {
	if len(r.order) == 0 {
		r.playDealer()
		return
	}
	r.activeSeatIndex = (r.activeSeatIndex + 1) % len(r.order)
	r.seekPlayingSeat()
}

// seekPlayingSeat scans from the active index for a seat in the playing
// state without advancing past one that is already there.
func (r *Room) seekPlayingSeat() {
	for i := 0; i < len(r.order); i++ {
		idx := (r.activeSeatIndex + i) % len(r.order)
		seat := r.seats[r.order[idx]]
		if seat.State == SeatPlaying {
			r.activeSeatIndex = idx
			r.message = fmt.Sprintf("%s to act", seat.Name)
			return
		}
	}
	r.playDealer()
}

package game

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackroom/internal/deck"
)

func testRoom(t *testing.T, seatNames ...string) *Room {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	room := NewRoom("room-1", "Test Room", Options{
		MaxSeats: 5,
		MinWager: 100,
		Seed:     42,
		Logger:   logger,
	})
	for i, name := range seatNames {
		seat := NewSeat(seatID(i), name)
		require.NoError(t, room.AddSeat(seat))
	}
	return room
}

func seatID(i int) string {
	return string(rune('a' + i))
}

// toBetting readies every seat so the room enters the betting phase
func toBetting(t *testing.T, room *Room) {
	t.Helper()
	for _, seat := range room.Seats() {
		require.NoError(t, room.SetReady(seat.ID))
	}
	require.Equal(t, PhaseBetting, room.Phase())
}

func card(suit deck.Suit, rank deck.Rank) deck.Card {
	return deck.NewCard(suit, rank)
}

func TestReadyFlowEntersBetting(t *testing.T) {
	room := testRoom(t, "alice", "bob")

	require.NoError(t, room.SetReady("a"))
	assert.Equal(t, PhaseWaiting, room.Phase(), "one ready seat should not start betting")

	require.NoError(t, room.SetReady("b"))
	assert.Equal(t, PhaseBetting, room.Phase())
	for _, seat := range room.Seats() {
		assert.Equal(t, SeatBetting, seat.State)
	}
}

func TestReadyToggles(t *testing.T) {
	room := testRoom(t, "alice", "bob")

	require.NoError(t, room.SetReady("a"))
	assert.Equal(t, SeatReady, room.Seat("a").State)
	require.NoError(t, room.SetReady("a"))
	assert.Equal(t, SeatWaiting, room.Seat("a").State)
}

func TestDealOnLastBet(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)

	require.NoError(t, room.PlaceBet("a", 100))
	assert.Equal(t, PhaseBetting, room.Phase(), "deal must wait for the last bettor")

	require.NoError(t, room.PlaceBet("b", 200))
	assert.Equal(t, PhasePlaying, room.Phase())

	for _, seat := range room.Seats() {
		assert.Len(t, seat.Hand, 2)
	}
	assert.Equal(t, 900, room.Seat("a").Funds)
	assert.Equal(t, 800, room.Seat("b").Funds)
	assert.Len(t, room.dealer, 2)
}

func TestNaturalBlackjackSettlesImmediately(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)

	// Seat draws A,K (natural); dealer shows 9 with hidden 8.
	room.shoe.Stack(
		card(deck.Spades, deck.Ace), card(deck.Hearts, deck.King),
		card(deck.Clubs, deck.Nine), card(deck.Diamonds, deck.Eight),
	)
	require.NoError(t, room.PlaceBet("a", 100))

	// The lone seat's natural ends the hand: dealer plays and settles.
	require.Equal(t, PhaseSettled, room.Phase())
	assert.Equal(t, SeatBlackjack, room.Seat("a").State)
	assert.Equal(t, 1150, room.Seat("a").Funds, "natural pays 3:2 on a 100 wager")
}

func TestNaturalPushesAgainstDealerNatural(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)

	room.shoe.Stack(
		card(deck.Spades, deck.Ace), card(deck.Hearts, deck.King),
		card(deck.Clubs, deck.Ace), card(deck.Diamonds, deck.Queen),
	)
	require.NoError(t, room.PlaceBet("a", 100))

	require.Equal(t, PhaseSettled, room.Phase())
	assert.Equal(t, 1000, room.Seat("a").Funds, "both naturals push")
}

func TestTurnAdvancementOnlyVisitsPlayingSeats(t *testing.T) {
	room := testRoom(t, "alice", "bob", "carol")
	toBetting(t, room)

	// All low cards: nobody is dealt a natural.
	room.shoe.Stack(
		card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
		card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
		card(deck.Spades, deck.Six), card(deck.Hearts, deck.Two),
		card(deck.Clubs, deck.Three), card(deck.Diamonds, deck.Four),
	)
	for _, seat := range room.Seats() {
		require.NoError(t, room.PlaceBet(seat.ID, 100))
	}
	require.Equal(t, PhasePlaying, room.Phase())

	for room.Phase() == PhasePlaying {
		seat := room.CurrentSeat()
		require.NotNil(t, seat, "active index must always point at a playing seat")
		require.Equal(t, SeatPlaying, seat.State)
		require.NoError(t, room.Stand(seat.ID))
	}
	assert.Equal(t, PhaseSettled, room.Phase())
}

func TestHitOutcomes(t *testing.T) {
	t.Run("bust ends the turn", func(t *testing.T) {
		room := testRoom(t, "alice")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.King), card(deck.Hearts, deck.Queen),
			card(deck.Clubs, deck.Nine), card(deck.Diamonds, deck.Eight),
			card(deck.Spades, deck.Five),
		)
		require.NoError(t, room.PlaceBet("a", 100))
		require.NoError(t, room.Hit("a"))

		assert.Equal(t, SeatBusted, room.Seat("a").State)
		assert.Equal(t, PhaseSettled, room.Phase())
		assert.Equal(t, 900, room.Seat("a").Funds, "bust forfeits the wager")
	})

	t.Run("drawing to 21 stands automatically", func(t *testing.T) {
		room := testRoom(t, "alice")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.King), card(deck.Hearts, deck.Five),
			card(deck.Clubs, deck.Ten), card(deck.Diamonds, deck.Ten),
			card(deck.Spades, deck.Six),
		)
		require.NoError(t, room.PlaceBet("a", 100))
		require.NoError(t, room.Hit("a"))

		assert.Equal(t, SeatStand, room.Seat("a").State)
	})

	t.Run("five card charlie pays 2:1", func(t *testing.T) {
		room := testRoom(t, "alice")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
			card(deck.Clubs, deck.Ten), card(deck.Diamonds, deck.Seven), // dealer 17
			card(deck.Spades, deck.Two), card(deck.Hearts, deck.Four), card(deck.Clubs, deck.Five),
		)
		require.NoError(t, room.PlaceBet("a", 100))
		require.NoError(t, room.Hit("a"))
		require.NoError(t, room.Hit("a"))
		require.NoError(t, room.Hit("a"))

		assert.Equal(t, SeatFiveDragon, room.Seat("a").State)
		assert.Equal(t, PhaseSettled, room.Phase())
		assert.Equal(t, 1200, room.Seat("a").Funds, "charlie credits 3x the 100 wager")
	})
}

func TestDoubleDown(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.Five), card(deck.Hearts, deck.Six), // 11
		card(deck.Clubs, deck.Ten), card(deck.Diamonds, deck.Seven), // dealer 17
		card(deck.Spades, deck.Nine), // doubles to 20
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.DoubleDown("a"))

	seat := room.Seat("a")
	assert.Equal(t, SeatStand, seat.State)
	assert.Len(t, seat.Hand, 3)
	assert.Equal(t, 200, seat.Wager)
	// 1000 - 100 - 100 doubled in, then 20 beats 17 for 2x the doubled wager.
	assert.Equal(t, PhaseSettled, room.Phase())
	assert.Equal(t, 1200, seat.Funds)
}

func TestDoubleDownRejectedAfterHitting(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
		card(deck.Clubs, deck.Ten), card(deck.Diamonds, deck.Seven),
		card(deck.Spades, deck.Four),
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.Hit("a"))

	err := room.DoubleDown("a")
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidState, re.Code)
}

func TestRejectedCommandsLeaveStateUnchanged(t *testing.T) {
	room := testRoom(t, "alice", "bob")

	// Wrong phase: betting before anyone is ready.
	err := room.PlaceBet("a", 100)
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectWrongPhase, re.Code)
	assert.Equal(t, 1000, room.Seat("a").Funds)

	toBetting(t, room)

	// Over-funds wager.
	err = room.PlaceBet("a", 5000)
	re, ok = AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectInsufficientFunds, re.Code)
	assert.Equal(t, 1000, room.Seat("a").Funds)
	assert.Equal(t, SeatBetting, room.Seat("a").State)

	// Non-positive wager.
	err = room.PlaceBet("a", 0)
	re, ok = AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidWager, re.Code)
}

func TestHitOutOfTurnRejected(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
		card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
		card(deck.Spades, deck.Six), card(deck.Hearts, deck.Seven),
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.PlaceBet("b", 100))
	require.Equal(t, "a", room.CurrentSeat().ID)

	err := room.Hit("b")
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectNotYourTurn, re.Code)
	assert.Len(t, room.Seat("b").Hand, 2)
}

func TestLeaveRepairsTurnOrder(t *testing.T) {
	t.Run("active seat leaving advances the turn", func(t *testing.T) {
		room := testRoom(t, "alice", "bob", "carol")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
			card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
			card(deck.Spades, deck.Six), card(deck.Hearts, deck.Seven),
			card(deck.Clubs, deck.Two), card(deck.Diamonds, deck.Three),
		)
		for _, seat := range room.Seats() {
			require.NoError(t, room.PlaceBet(seat.ID, 100))
		}
		require.Equal(t, "a", room.CurrentSeat().ID)

		require.NoError(t, room.RemoveSeat("a"))
		require.NotNil(t, room.CurrentSeat())
		assert.Equal(t, "b", room.CurrentSeat().ID)
	})

	t.Run("earlier seat leaving shifts the active index down", func(t *testing.T) {
		room := testRoom(t, "alice", "bob", "carol")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
			card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
			card(deck.Spades, deck.Six), card(deck.Hearts, deck.Seven),
			card(deck.Clubs, deck.Two), card(deck.Diamonds, deck.Three),
		)
		for _, seat := range room.Seats() {
			require.NoError(t, room.PlaceBet(seat.ID, 100))
		}
		require.NoError(t, room.Stand("a"))
		require.Equal(t, "b", room.CurrentSeat().ID)

		require.NoError(t, room.RemoveSeat("a"))
		assert.Equal(t, "b", room.CurrentSeat().ID, "bob must neither be skipped nor repeated")

		require.NoError(t, room.Stand("b"))
		assert.Equal(t, "c", room.CurrentSeat().ID)
	})

	t.Run("last playing seat leaving runs the dealer", func(t *testing.T) {
		room := testRoom(t, "alice", "bob")
		toBetting(t, room)
		room.shoe.Stack(
			card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
			card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
			card(deck.Spades, deck.Six), card(deck.Hearts, deck.Seven),
		)
		require.NoError(t, room.PlaceBet("a", 100))
		require.NoError(t, room.PlaceBet("b", 100))
		require.NoError(t, room.Stand("b"))

		require.NoError(t, room.RemoveSeat("a"))
		assert.Equal(t, PhaseSettled, room.Phase())
	})
}

func TestPrepareNextRoundRoundTrip(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)
	for _, seat := range room.Seats() {
		require.NoError(t, room.PlaceBet(seat.ID, 100))
	}
	for room.Phase() == PhasePlaying {
		require.NoError(t, room.Stand(room.CurrentSeat().ID))
	}
	require.Equal(t, PhaseSettled, room.Phase())

	require.NoError(t, room.PrepareNextRound())
	assert.Equal(t, PhaseWaiting, room.Phase())
	for _, seat := range room.Seats() {
		assert.Empty(t, seat.Hand)
		assert.Zero(t, seat.Wager)
	}
	assert.Empty(t, room.dealer)
	assert.Equal(t, 52, room.shoe.Remaining())

	// A full second round reaches playing with fresh cards all round.
	toBetting(t, room)
	for _, seat := range room.Seats() {
		require.NoError(t, room.PlaceBet(seat.ID, 100))
	}
	if room.Phase() == PhasePlaying || room.Phase() == PhaseSettled {
		for _, seat := range room.Seats() {
			assert.Len(t, seat.Hand, 2)
		}
		assert.Len(t, room.dealer, 2)
		assert.Equal(t, 52-2*2-2, room.shoe.Remaining())
	} else {
		t.Fatalf("unexpected phase %s after betting", room.Phase())
	}
}

func TestBrokeSeatSpectatesNextRound(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.King), card(deck.Hearts, deck.Five), // 15
		card(deck.Clubs, deck.Ten), card(deck.Diamonds, deck.Ten), // dealer 20
	)
	require.NoError(t, room.PlaceBet("a", 1000))
	require.NoError(t, room.Stand("a"))
	require.Equal(t, PhaseSettled, room.Phase())
	require.Equal(t, 0, room.Seat("a").Funds)

	require.NoError(t, room.PrepareNextRound())
	assert.Equal(t, SeatSpectating, room.Seat("a").State)

	err := room.SetReady("a")
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectInsufficientFunds, re.Code)
}

func TestDealerStopsBeforeBustingOffFourCards(t *testing.T) {
	room := testRoom(t, "alice")
	toBetting(t, room)
	// Dealer: 2,3 then draws 4 and 5 (total 14, four cards). The next card
	// would bust a hard count, so the dealer stops short of five cards.
	room.shoe.Stack(
		card(deck.Spades, deck.King), card(deck.Hearts, deck.Nine), // seat 19
		card(deck.Clubs, deck.Two), card(deck.Diamonds, deck.Three),
		card(deck.Spades, deck.Four), card(deck.Hearts, deck.Five),
		card(deck.Clubs, deck.Ten),
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.Stand("a"))

	require.Equal(t, PhaseSettled, room.Phase())
	assert.Len(t, room.dealer, 4)
	assert.Equal(t, 14, room.dealer.Score())
	assert.Equal(t, 1200, room.Seat("a").Funds, "19 beats the dealer's 14")
}

func TestFundsInvariantForcesPush(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)
	require.NoError(t, room.PlaceBet("a", 100))

	// Corrupt a seat to simulate an internal accounting bug.
	room.Seat("a").Funds = -50

	// The bet that exposes the corruption still succeeds; the repair is a
	// state change the caller must broadcast, not a rejection.
	require.NoError(t, room.PlaceBet("b", 100))
	assert.True(t, room.checkFunds(), "repair leaves funds valid")
	assert.Equal(t, PhaseSettled, room.Phase())
	for _, seat := range room.Seats() {
		assert.GreaterOrEqual(t, seat.Funds, 0)
		assert.Zero(t, seat.Wager)
	}
}

func TestVoidRoundRefundsWagers(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
		card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
		card(deck.Spades, deck.Six), card(deck.Hearts, deck.Seven),
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.PlaceBet("b", 200))
	require.Equal(t, PhasePlaying, room.Phase())

	room.VoidRound()
	assert.Equal(t, PhaseSettled, room.Phase())
	assert.Equal(t, 1000, room.Seat("a").Funds)
	assert.Equal(t, 1000, room.Seat("b").Funds)

	// Voiding outside an active round changes nothing.
	room.VoidRound()
	assert.Equal(t, PhaseSettled, room.Phase())
}

func TestSnapshotMasksDealerHoleCard(t *testing.T) {
	room := testRoom(t, "alice", "bob")
	toBetting(t, room)
	room.shoe.Stack(
		card(deck.Spades, deck.Two), card(deck.Hearts, deck.Three),
		card(deck.Clubs, deck.Four), card(deck.Diamonds, deck.Five),
		card(deck.Spades, deck.Nine), card(deck.Hearts, deck.Eight),
	)
	require.NoError(t, room.PlaceBet("a", 100))
	require.NoError(t, room.PlaceBet("b", 100))
	require.Equal(t, PhasePlaying, room.Phase())

	snap := room.Snapshot()
	require.Len(t, snap.Dealer.Hand, 2)
	assert.Equal(t, "9", snap.Dealer.Hand[0].Rank)
	assert.Equal(t, CardView{Suit: "?", Rank: "?"}, snap.Dealer.Hand[1])
	assert.Equal(t, 9, snap.Dealer.Score, "masked score counts only the upcard")

	for room.Phase() == PhasePlaying {
		require.NoError(t, room.Stand(room.CurrentSeat().ID))
	}
	snap = room.Snapshot()
	assert.NotEqual(t, CardView{Suit: "?", Rank: "?"}, snap.Dealer.Hand[1])
}

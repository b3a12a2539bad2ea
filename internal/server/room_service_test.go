package server

import (
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackroom/internal/game"
)

// captureBroadcaster records everything broadcast to rooms
type captureBroadcaster struct {
	mu       sync.Mutex
	messages []*Message
}

func (b *captureBroadcaster) BroadcastToRoom(roomID string, msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *captureBroadcaster) count(mt MessageType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if m.Type == mt {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*RoomService, *SessionMapper, *captureBroadcaster) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	sessions := NewSessionMapper()
	svc := NewRoomService(sessions, RoomServiceOptions{
		Seed:     11,
		MaxSeats: 5,
		MinWager: 100,
		Logger:   logger,
	})
	b := &captureBroadcaster{}
	svc.SetBroadcaster(b)
	return svc, sessions, b
}

func TestCreateAndListRooms(t *testing.T) {
	svc, _, _ := newTestService(t)

	id := svc.CreateRoom("High Rollers", 3, 500)
	require.NotEmpty(t, id)

	rooms := svc.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "High Rollers", rooms[0].Name)
	assert.Equal(t, 3, rooms[0].MaxSeats)
	assert.Equal(t, 500, rooms[0].MinWager)
	assert.Equal(t, "waiting", rooms[0].Phase)
}

func TestJoinBindsSessionToSeat(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	seatID, snap, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)
	require.NotEmpty(t, seatID)
	assert.Equal(t, id, sess.RoomID)
	assert.Equal(t, seatID, sess.SeatID)
	require.Len(t, snap.Seats, 1)
	assert.Equal(t, "alice", snap.Seats[0].Name)
}

func TestJoinWhileSeatedRejected(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	a := svc.CreateRoom("A", 0, 0)
	b := svc.CreateRoom("B", 0, 0)

	sess := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(a, sess)
	require.NoError(t, err)

	_, _, err = svc.JoinRoom(b, sess)
	re, ok := game.AsReject(err)
	require.True(t, ok)
	assert.Equal(t, game.RejectInvalidState, re.Code)
}

func TestJoinFullRoomRejected(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	id := svc.CreateRoom("Tiny", 1, 0)

	_, _, err := svc.JoinRoom(id, sessions.Authenticate("alice", ""))
	require.NoError(t, err)

	_, _, err = svc.JoinRoom(id, sessions.Authenticate("bob", ""))
	re, ok := game.AsReject(err)
	require.True(t, ok)
	assert.Equal(t, game.RejectRoomFull, re.Code)
}

func TestLastLeaverDestroysRoom(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(sess))
	assert.Empty(t, sess.RoomID)
	assert.Empty(t, svc.ListRooms())

	_, err = svc.SnapshotRoom(id)
	re, ok := game.AsReject(err)
	require.True(t, ok)
	assert.Equal(t, game.RejectRoomNotFound, re.Code)
}

func TestBotsPlayWholeRoundWithoutHumans(t *testing.T) {
	svc, sessions, b := newTestService(t)
	id := svc.CreateRoom("Bots", 0, 0)

	// A human must hold the room open; bots alone never create rooms.
	sess := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)

	_, err = svc.AddBot(id, "easy")
	require.NoError(t, err)
	_, err = svc.AddBot(id, "expert")
	require.NoError(t, err)

	// Bots ready themselves the moment they sit. The human readying is the
	// last trigger: betting, dealing and the bots' turns all chain from it.
	require.NoError(t, svc.Ready(id, sess.SeatID))
	require.NoError(t, svc.Bet(id, sess.SeatID, 100))

	// The human is the only non-automated seat, so the round is either
	// waiting on their turn or already settled (a dealt natural skips it).
	snap, err := svc.SnapshotRoom(id)
	require.NoError(t, err)
	if snap.Phase == game.PhasePlaying {
		require.NoError(t, svc.Stand(id, sess.SeatID))
		snap, err = svc.SnapshotRoom(id)
		require.NoError(t, err)
	}
	assert.Equal(t, game.PhaseSettled, snap.Phase)
	assert.Positive(t, b.count(MessageTypeRoomState))
}

func TestReconnectResumesSeat(t *testing.T) {
	svc, sessions, b := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	seatID, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)

	svc.MarkDisconnected(sess)
	snap, err := svc.SnapshotRoom(id)
	require.NoError(t, err)
	require.False(t, snap.Seats[0].Connected)
	assert.Equal(t, 1, b.count(MessageTypeSeatStatus))

	// Same durable token, fresh transport.
	resumed := sessions.Authenticate("alice", sess.Token)
	snap, ok := svc.Resume(resumed)
	require.True(t, ok)
	assert.True(t, snap.Seats[0].Connected)
	assert.Equal(t, seatID, resumed.SeatID)
	assert.Equal(t, 2, b.count(MessageTypeSeatStatus))
}

func TestResumeAfterRoomDestroyed(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)
	require.NoError(t, svc.LeaveRoom(sess))

	_, ok := svc.Resume(sess)
	assert.False(t, ok)
}

func TestKickBotOnlyRemovesBots(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	humanSeat, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)

	botSeat, err := svc.AddBot(id, "medium")
	require.NoError(t, err)

	err = svc.KickBot(id, humanSeat)
	re, ok := game.AsReject(err)
	require.True(t, ok)
	assert.Equal(t, game.RejectInvalidState, re.Code)

	require.NoError(t, svc.KickBot(id, botSeat))
	snap, err := svc.SnapshotRoom(id)
	require.NoError(t, err)
	assert.Len(t, snap.Seats, 1)
}

func TestFundsRepairStateIsBroadcast(t *testing.T) {
	svc, sessions, b := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	alice := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(id, alice)
	require.NoError(t, err)
	bob := sessions.Authenticate("bob", "")
	_, _, err = svc.JoinRoom(id, bob)
	require.NoError(t, err)

	require.NoError(t, svc.Ready(id, alice.SeatID))
	require.NoError(t, svc.Ready(id, bob.SeatID))
	require.NoError(t, svc.Bet(id, alice.SeatID, 100))

	// Corrupt a seat to simulate an internal accounting bug.
	e := svc.entry(id)
	e.mu.Lock()
	e.room.Seat(alice.SeatID).Funds = -50
	e.mu.Unlock()

	// The bet that exposes the corruption still succeeds, and the
	// force-settled recovery state reaches every client.
	before := b.count(MessageTypeRoomState)
	require.NoError(t, svc.Bet(id, bob.SeatID, 100))
	assert.Greater(t, b.count(MessageTypeRoomState), before)

	snap, err := svc.SnapshotRoom(id)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseSettled, snap.Phase)
	for _, seat := range snap.Seats {
		assert.GreaterOrEqual(t, seat.Funds, 0)
		assert.Zero(t, seat.Wager)
	}
}

func TestRejectedCommandBroadcastsNothing(t *testing.T) {
	svc, sessions, b := newTestService(t)
	id := svc.CreateRoom("Test", 0, 0)

	sess := sessions.Authenticate("alice", "")
	_, _, err := svc.JoinRoom(id, sess)
	require.NoError(t, err)
	before := b.count(MessageTypeRoomState)

	err = svc.Bet(id, sess.SeatID, 100)
	re, ok := game.AsReject(err)
	require.True(t, ok)
	assert.Equal(t, game.RejectWrongPhase, re.Code)
	assert.Equal(t, before, b.count(MessageTypeRoomState))
}

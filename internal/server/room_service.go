package server

import (
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/oklog/ulid/v2"

	"github.com/lox/blackjackroom/internal/agent"
	"github.com/lox/blackjackroom/internal/game"
	"github.com/lox/blackjackroom/internal/randutil"
)

// Broadcaster delivers a message to every connection attached to a room
type Broadcaster interface {
	BroadcastToRoom(roomID string, msg *Message)
}

// RoomServiceOptions configures a RoomService
type RoomServiceOptions struct {
	Seed       int64
	MaxSeats   int
	MinWager   int
	ThinkDelay time.Duration
	Recorder   game.Recorder
	Clock      quartz.Clock
	Logger     *log.Logger
}

// RoomService owns every room and serializes all mutations to them. Each
// room has its own lock; a command takes the lock, applies, drives any
// automated seats that now owe actions, and broadcasts the resulting
// snapshot. Rejected commands broadcast nothing.
type RoomService struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	sessions    *SessionMapper
	clock       quartz.Clock
	thinkDelay  time.Duration
	recorder    game.Recorder
	broadcaster Broadcaster
	logger      *log.Logger

	seed     int64
	seedSeq  int64
	maxSeats int
	minWager int
}

type roomEntry struct {
	id string

	mu    sync.Mutex
	room  *game.Room
	agent *agent.Agent
	rng   *rand.Rand

	driveQueued bool
}

// NewRoomService creates a room service
func NewRoomService(sessions *SessionMapper, opts RoomServiceOptions) *RoomService {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RoomService{
		rooms:      make(map[string]*roomEntry),
		sessions:   sessions,
		clock:      opts.Clock,
		thinkDelay: opts.ThinkDelay,
		recorder:   opts.Recorder,
		logger:     logger.WithPrefix("rooms"),
		seed:       opts.Seed,
		maxSeats:   opts.MaxSeats,
		minWager:   opts.MinWager,
	}
}

// SetBroadcaster wires the transport that receives room broadcasts
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateRoom registers a new room and returns its ID. Zero maxSeats or
// minWager fall back to the service defaults.
func (s *RoomService) CreateRoom(name string, maxSeats, minWager int) string {
	if maxSeats <= 0 {
		maxSeats = s.maxSeats
	}
	if minWager <= 0 {
		minWager = s.minWager
	}

	s.mu.Lock()
	s.seedSeq++
	seed := s.seed + s.seedSeq
	id := ulid.Make().String()
	entry := &roomEntry{
		id: id,
		room: game.NewRoom(id, name, game.Options{
			MaxSeats: maxSeats,
			MinWager: minWager,
			Seed:     seed,
			Recorder: s.recorder,
			Logger:   s.logger,
		}),
		rng: randutil.New(seed),
	}
	entry.agent = agent.New(randutil.New(seed + 1))
	s.rooms[id] = entry
	s.mu.Unlock()

	s.logger.Info("Room created", "room", id, "name", name, "maxSeats", maxSeats, "minWager", minWager)
	return id
}

// ListRooms returns summaries of every live room
func (s *RoomService) ListRooms() []RoomInfo {
	s.mu.RLock()
	entries := make([]*roomEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		infos = append(infos, RoomInfo{
			ID:        e.id,
			Name:      e.room.Name,
			SeatCount: e.room.SeatCount(),
			MaxSeats:  e.room.MaxSeats(),
			MinWager:  e.room.MinWager(),
			Phase:     string(e.room.Phase()),
		})
		e.mu.Unlock()
	}
	return infos
}

// RoomIDs returns the IDs of every live room. The watchdog sweeps these.
func (s *RoomService) RoomIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// JoinRoom seats the session in the room and returns the seat ID and a
// snapshot of the joined room.
func (s *RoomService) JoinRoom(roomID string, sess *Session) (string, game.Snapshot, error) {
	if sess.RoomID != "" {
		return "", game.Snapshot{}, &game.RejectError{
			Code: game.RejectInvalidState, Reason: "already seated in a room",
		}
	}
	seatID := NewSeatID()
	var snap game.Snapshot
	err := s.withRoom(roomID, func(e *roomEntry) error {
		if err := e.room.AddSeat(game.NewSeat(seatID, sess.Name)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", game.Snapshot{}, err
	}
	s.sessions.BindSeat(sess.Token, roomID, seatID)
	snap, _ = s.SnapshotRoom(roomID)
	return seatID, snap, nil
}

// Resume reattaches a session to its seat after a reconnect. It returns
// false when the session holds no live seat.
func (s *RoomService) Resume(sess *Session) (game.Snapshot, bool) {
	if sess.RoomID == "" || sess.SeatID == "" {
		return game.Snapshot{}, false
	}
	var snap game.Snapshot
	err := s.withRoom(sess.RoomID, func(e *roomEntry) error {
		seat := e.room.Seat(sess.SeatID)
		if seat == nil {
			return &game.RejectError{Code: game.RejectSeatNotFound, Reason: "seat no longer present"}
		}
		seat.Connected = true
		return nil
	})
	if err != nil {
		s.sessions.ClearSeat(sess.Token)
		return game.Snapshot{}, false
	}
	s.notifySeatStatus(sess.RoomID, sess.SeatID, true)
	snap, _ = s.SnapshotRoom(sess.RoomID)
	return snap, true
}

// LeaveRoom removes the session's seat from its room
func (s *RoomService) LeaveRoom(sess *Session) error {
	roomID, seatID := sess.RoomID, sess.SeatID
	if roomID == "" {
		return &game.RejectError{Code: game.RejectRoomNotFound, Reason: "not seated in a room"}
	}
	err := s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.RemoveSeat(seatID)
	})
	if err != nil {
		return err
	}
	s.sessions.ClearSeat(sess.Token)
	return nil
}

// MarkDisconnected flags a seat as disconnected without vacating it. The
// seat stays in the hand; the watchdog acts for it if its turn stalls.
func (s *RoomService) MarkDisconnected(sess *Session) {
	if sess.RoomID == "" || sess.SeatID == "" {
		return
	}
	err := s.withRoom(sess.RoomID, func(e *roomEntry) error {
		seat := e.room.Seat(sess.SeatID)
		if seat == nil {
			return &game.RejectError{Code: game.RejectSeatNotFound, Reason: "seat gone"}
		}
		seat.Connected = false
		return nil
	})
	if err == nil {
		s.notifySeatStatus(sess.RoomID, sess.SeatID, false)
	}
}

// Ready toggles the seat's readiness
func (s *RoomService) Ready(roomID, seatID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.SetReady(seatID)
	})
}

// Bet places the seat's wager for the round
func (s *RoomService) Bet(roomID, seatID string, amount int) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.PlaceBet(seatID, amount)
	})
}

// Hit draws a card for the seat
func (s *RoomService) Hit(roomID, seatID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.Hit(seatID)
	})
}

// Stand ends the seat's turn
func (s *RoomService) Stand(roomID, seatID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.Stand(seatID)
	})
}

// Double doubles the seat's wager for exactly one more card
func (s *RoomService) Double(roomID, seatID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.DoubleDown(seatID)
	})
}

// NextRound resets a settled room for another round
func (s *RoomService) NextRound(roomID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.PrepareNextRound()
	})
}

// AddBot seats an automated player in the room
func (s *RoomService) AddBot(roomID, difficulty string) (string, error) {
	d := agent.ParseDifficulty(difficulty)
	seatID := ""
	err := s.withRoom(roomID, func(e *roomEntry) error {
		seatID = NewSeatID()
		name := agent.Name(d, e.rng)
		return e.room.AddSeat(game.NewAutomatedSeat(seatID, name, string(d)))
	})
	if err != nil {
		return "", err
	}
	return seatID, nil
}

// KickBot removes an automated seat from the room. Human seats cannot be
// kicked through this path.
func (s *RoomService) KickBot(roomID, seatID string) error {
	return s.withRoom(roomID, func(e *roomEntry) error {
		seat := e.room.Seat(seatID)
		if seat == nil {
			return &game.RejectError{Code: game.RejectSeatNotFound, Reason: "no such seat"}
		}
		if !seat.Automated {
			return &game.RejectError{Code: game.RejectInvalidState, Reason: "seat is not a bot"}
		}
		return e.room.RemoveSeat(seatID)
	})
}

// SnapshotRoom returns the room's current broadcast snapshot
func (s *RoomService) SnapshotRoom(roomID string) (game.Snapshot, error) {
	e := s.entry(roomID)
	if e == nil {
		return game.Snapshot{}, &game.RejectError{Code: game.RejectRoomNotFound, Reason: "no such room"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Snapshot(), nil
}

func (s *RoomService) entry(roomID string) *roomEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

// withRoom runs fn with the room's lock held. An error from fn leaves the
// room untouched and is returned as-is; success drives automation and
// broadcasts the new state. Rooms with no seats left are destroyed.
func (s *RoomService) withRoom(roomID string, fn func(e *roomEntry) error) error {
	e := s.entry(roomID)
	if e == nil {
		return &game.RejectError{Code: game.RejectRoomNotFound, Reason: "no such room"}
	}

	e.mu.Lock()
	if err := fn(e); err != nil {
		e.mu.Unlock()
		return err
	}
	s.driveLocked(e)
	empty := e.room.Empty()
	snap := e.room.Snapshot()
	e.mu.Unlock()

	if empty {
		s.destroyRoom(roomID)
		return nil
	}
	s.broadcastState(roomID, snap)
	return nil
}

func (s *RoomService) destroyRoom(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	s.sessions.ClearRoom(roomID)
	s.logger.Info("Room destroyed", "room", roomID)
}

func (s *RoomService) broadcastState(roomID string, snap game.Snapshot) {
	if s.broadcaster == nil {
		return
	}
	msg, err := NewMessage(MessageTypeRoomState, RoomStateData{RoomID: roomID, State: snap})
	if err != nil {
		s.logger.Error("Failed to encode room state", "error", err)
		return
	}
	s.broadcaster.BroadcastToRoom(roomID, msg)
}

func (s *RoomService) notifySeatStatus(roomID, seatID string, connected bool) {
	if s.broadcaster == nil {
		return
	}
	msg, err := NewMessage(MessageTypeSeatStatus, SeatStatusData{
		RoomID: roomID, SeatID: seatID, Connected: connected,
	})
	if err != nil {
		return
	}
	s.broadcaster.BroadcastToRoom(roomID, msg)
}

func (s *RoomService) notify(roomID, text string) {
	if s.broadcaster == nil {
		return
	}
	msg, err := NewMessage(MessageTypeNotification, NotificationData{RoomID: roomID, Message: text})
	if err != nil {
		return
	}
	s.broadcaster.BroadcastToRoom(roomID, msg)
}

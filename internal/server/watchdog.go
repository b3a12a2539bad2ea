package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjackroom/internal/game"
)

// WatchdogOptions configures the stall watchdog
type WatchdogOptions struct {
	Interval     time.Duration // sweep period
	Grace        time.Duration // how long a room may sit on one progress key
	StallLimit   int           // forced interventions before escalating
	SettledReset time.Duration // idle time before a settled room auto-advances
	Clock        quartz.Clock
	Logger       *log.Logger
}

// Watchdog sweeps every room on a fixed interval and forces progress on
// rooms whose progress key has not moved past the grace period. It acts
// for automated and disconnected seats first; a room that stays stuck
// through StallLimit interventions gets its blocker forced regardless,
// and failing even that, the round is voided. Settled rooms idle past
// SettledReset are advanced to the next round.
type Watchdog struct {
	svc          *RoomService
	clock        quartz.Clock
	interval     time.Duration
	grace        time.Duration
	settledReset time.Duration
	stallLimit   int
	logger       *log.Logger

	mu      sync.Mutex
	watches map[string]*roomWatch
}

type roomWatch struct {
	phase         game.Phase
	seatIdx       int
	since         time.Time
	interventions int
}

// NewWatchdog creates a watchdog over the service's rooms
func NewWatchdog(svc *RoomService, opts WatchdogOptions) *Watchdog {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.StallLimit <= 0 {
		opts.StallLimit = 3
	}
	if opts.SettledReset <= 0 {
		opts.SettledReset = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Watchdog{
		svc:          svc,
		clock:        opts.Clock,
		interval:     opts.Interval,
		grace:        opts.Grace,
		settledReset: opts.SettledReset,
		stallLimit:   opts.StallLimit,
		logger:       logger.WithPrefix("watchdog"),
		watches:      make(map[string]*roomWatch),
	}
}

// Run sweeps until the context is cancelled
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("Watchdog running", "interval", w.interval, "grace", w.grace)
	ticker := w.clock.TickerFunc(ctx, w.interval, func() error {
		w.Tick()
		return nil
	}, "watchdog")
	if err := ticker.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Tick performs one sweep over every room. A panic in a sweep is contained
// so a single bad room cannot kill the watchdog.
func (w *Watchdog) Tick() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Watchdog sweep panicked", "panic", r)
		}
	}()

	now := w.clock.Now()
	live := make(map[string]bool)
	for _, id := range w.svc.RoomIDs() {
		live[id] = true
		w.checkRoom(id, now)
	}

	w.mu.Lock()
	for id := range w.watches {
		if !live[id] {
			delete(w.watches, id)
		}
	}
	w.mu.Unlock()
}

func (w *Watchdog) checkRoom(roomID string, now time.Time) {
	phase, seatIdx, ok := w.svc.ProgressKey(roomID)
	if !ok {
		return
	}

	w.mu.Lock()
	watch := w.watches[roomID]
	if watch == nil || watch.phase != phase || watch.seatIdx != seatIdx {
		w.watches[roomID] = &roomWatch{phase: phase, seatIdx: seatIdx, since: now}
		w.mu.Unlock()
		return
	}
	elapsed := now.Sub(watch.since)
	interventions := watch.interventions
	w.mu.Unlock()

	switch phase {
	case game.PhaseSettled:
		if elapsed >= w.settledReset {
			w.logger.Info("Advancing idle settled room", "room", roomID, "idle", elapsed)
			w.svc.AdvanceStalledRound(roomID)
			w.resetWatch(roomID)
		}

	case game.PhaseWaiting:
		// Nothing is owed; humans ready up in their own time.

	default:
		if elapsed < w.grace {
			return
		}
		if interventions >= w.stallLimit {
			w.logger.Warn("Room stuck past stall limit, forcing blocker", "room", roomID, "phase", phase)
			if !w.svc.ForceStalledAction(roomID, true) {
				w.logger.Error("Room unrecoverable, voiding round", "room", roomID, "phase", phase)
				w.svc.VoidStalledRound(roomID)
			}
			w.resetWatch(roomID)
			return
		}
		if w.svc.ForceStalledAction(roomID, false) {
			w.logger.Warn("Forced action on stalled room", "room", roomID, "phase", phase, "interventions", interventions+1)
		}
		w.bumpInterventions(roomID)
	}
}

func (w *Watchdog) resetWatch(roomID string) {
	w.mu.Lock()
	delete(w.watches, roomID)
	w.mu.Unlock()
}

func (w *Watchdog) bumpInterventions(roomID string) {
	w.mu.Lock()
	if watch := w.watches[roomID]; watch != nil {
		watch.interventions++
	}
	w.mu.Unlock()
}

var errNoForcedAction = errors.New("no action to force")

// ProgressKey exposes a room's stall-detection key to the watchdog
func (s *RoomService) ProgressKey(roomID string) (game.Phase, int, bool) {
	e := s.entry(roomID)
	if e == nil {
		return "", 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	phase, idx := e.room.ProgressKey()
	return phase, idx, true
}

// ForceStalledAction forces the cheapest safe action for whatever is
// blocking the room: the table minimum for outstanding bets, a stand for
// the acting seat. Connected human seats are only touched when
// includeConnected is set. Reports whether anything was forced.
func (s *RoomService) ForceStalledAction(roomID string, includeConnected bool) bool {
	forced := false
	err := s.withRoom(roomID, func(e *roomEntry) error {
		room := e.room
		forcible := func(seat *game.Seat) bool {
			return includeConnected || seat.Automated || !seat.Connected
		}
		switch room.Phase() {
		case game.PhaseBetting:
			for _, seat := range room.Seats() {
				if seat.State != game.SeatBetting || !forcible(seat) {
					continue
				}
				amount := room.MinWager()
				if amount > seat.Funds {
					amount = seat.Funds
				}
				if err := room.PlaceBet(seat.ID, amount); err == nil {
					forced = true
				}
			}
		case game.PhasePlaying:
			seat := room.CurrentSeat()
			if seat == nil || !forcible(seat) {
				return errNoForcedAction
			}
			if err := room.Stand(seat.ID); err == nil {
				forced = true
			}
		}
		if !forced {
			return errNoForcedAction
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoForcedAction) {
		s.logger.Error("Failed to force stalled action", "room", roomID, "error", err)
	}
	return forced
}

// VoidStalledRound abandons the room's current round, refunding wagers
func (s *RoomService) VoidStalledRound(roomID string) {
	err := s.withRoom(roomID, func(e *roomEntry) error {
		e.room.VoidRound()
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to void stalled round", "room", roomID, "error", err)
		return
	}
	s.notify(roomID, "Round voided after repeated stalls, wagers returned")
}

// AdvanceStalledRound moves an idle settled room into the next round
func (s *RoomService) AdvanceStalledRound(roomID string) {
	err := s.withRoom(roomID, func(e *roomEntry) error {
		return e.room.PrepareNextRound()
	})
	if err != nil {
		s.logger.Debug("Settled room no longer advanceable", "room", roomID, "error", err)
	}
}

// Package history persists settled rounds per room.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjackroom/internal/fileutil"
	"github.com/lox/blackjackroom/internal/game"
)

// Round is one settled round as persisted to disk
type Round struct {
	RoomID  string        `json:"roomId"`
	Settled time.Time     `json:"settled"`
	State   game.Snapshot `json:"state"`
}

// StoreOptions configures a Store
type StoreOptions struct {
	MaxRounds int // rounds kept per room, oldest dropped first
	Clock     quartz.Clock
	Logger    *log.Logger
}

// Store keeps a bounded per-room round history on disk. Each room has one
// JSON file, rewritten atomically on every append so a crash never leaves
// a torn file behind. Implements game.Recorder.
type Store struct {
	dir       string
	maxRounds int
	clock     quartz.Clock
	logger    *log.Logger
	mu        sync.Mutex
}

// NewStore creates the history directory if needed and returns a store
func NewStore(dir string, opts StoreOptions) (*Store, error) {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 100
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	return &Store{
		dir:       dir,
		maxRounds: opts.MaxRounds,
		clock:     opts.Clock,
		logger:    logger.WithPrefix("history"),
	}, nil
}

// RecordRound appends a settled round to the room's history file
func (s *Store) RecordRound(roomID string, snap game.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rounds, err := s.loadLocked(roomID)
	if err != nil {
		// A corrupt file is logged and replaced rather than blocking
		// settlement forever.
		s.logger.Error("Dropping unreadable history file", "room", roomID, "error", err)
		rounds = nil
	}

	rounds = append(rounds, Round{
		RoomID:  roomID,
		Settled: s.clock.Now(),
		State:   snap,
	})
	if len(rounds) > s.maxRounds {
		rounds = rounds[len(rounds)-s.maxRounds:]
	}

	data, err := json.MarshalIndent(rounds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.roomPath(roomID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	s.logger.Debug("Recorded round", "room", roomID, "rounds", len(rounds))
	return nil
}

// LoadRounds returns the room's recorded rounds, oldest first. A room with
// no history yields an empty slice.
func (s *Store) LoadRounds(roomID string) ([]Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(roomID)
}

func (s *Store) loadLocked(roomID string) ([]Round, error) {
	data, err := os.ReadFile(s.roomPath(roomID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rounds []Round
	if err := json.Unmarshal(data, &rounds); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return rounds, nil
}

func (s *Store) roomPath(roomID string) string {
	return filepath.Join(s.dir, roomID+".json")
}

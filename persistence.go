package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"colordle/internal/oracle"
	"colordle/internal/types"
)

var (
	errSnapshotNotFound = errors.New("snapshot not found")
	errSnapshotInvalid  = errors.New("snapshot invalid")
)

// SnapshotStore persists one snapshot per session.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*types.Snapshot, error)
	Save(ctx context.Context, sessionID string, snap *types.Snapshot) error
	// Cleanup removes snapshots not saved within maxAge and returns how many went.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
	Close() error
}

// validSessionID rejects anything that is not a uuid; session IDs end up in
// file names and SQL keys.
func validSessionID(sessionID string) bool {
	_, err := uuid.Parse(sessionID)
	return err == nil
}

// snapshotFromGame copies a game into its persisted form.
func snapshotFromGame(game *GameState, savedAt time.Time) *types.Snapshot {
	return &types.Snapshot{
		Version:  types.SnapshotVersion,
		Date:     game.Date,
		Color:    game.TargetColor,
		Guesses:  slices.Clone(game.Guesses),
		Feedback: lo.Map(game.Feedback, func(f []types.Feedback, _ int) []types.Feedback { return slices.Clone(f) }),
		GameOver: game.GameOver(),
		Won:      game.Won(),

		ShareableResult: game.ShareableResult,
		NextGameTime:    game.NextGameTime.UnixMilli(),
		SavedAt:         savedAt,
	}
}

// gameFromSnapshot validates a snapshot and rebuilds the game from it.
func gameFromSnapshot(snap *types.Snapshot, loc *time.Location) (*GameState, error) {
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	status := StatusInProgress
	switch {
	case snap.Won:
		status = StatusWon
	case snap.GameOver:
		status = StatusLost
	}
	return &GameState{
		Date:            snap.Date,
		TargetColor:     strings.ToUpper(snap.Color),
		Guesses:         lo.Map(snap.Guesses, func(g string, _ int) string { return strings.ToUpper(g) }),
		Feedback:        lo.Map(snap.Feedback, func(f []types.Feedback, _ int) []types.Feedback { return slices.Clone(f) }),
		Status:          status,
		ShareableResult: snap.ShareableResult,
		NextGameTime:    time.UnixMilli(snap.NextGameTime).In(loc),
	}, nil
}

func validateSnapshot(snap *types.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: empty", errSnapshotInvalid)
	}
	if snap.Version != types.SnapshotVersion {
		return fmt.Errorf("%w: version %d, want %d", errSnapshotInvalid, snap.Version, types.SnapshotVersion)
	}
	if _, err := time.Parse(oracle.DateLayout, snap.Date); err != nil {
		return fmt.Errorf("%w: date %q", errSnapshotInvalid, snap.Date)
	}
	if !oracle.IsHexColor(snap.Color) {
		return fmt.Errorf("%w: color %q", errSnapshotInvalid, snap.Color)
	}
	if len(snap.Guesses) != len(snap.Feedback) {
		return fmt.Errorf("%w: %d guesses but %d feedback rows", errSnapshotInvalid, len(snap.Guesses), len(snap.Feedback))
	}
	if len(snap.Guesses) > MaxGuesses {
		return fmt.Errorf("%w: %d guesses exceeds budget", errSnapshotInvalid, len(snap.Guesses))
	}
	target := strings.ToUpper(snap.Color)
	for i, g := range snap.Guesses {
		if !isValidGuess(g) {
			return fmt.Errorf("%w: guess %d is %q", errSnapshotInvalid, i, g)
		}
		row := snap.Feedback[i]
		if len(row) != ColorLength || !lo.EveryBy(row, types.Feedback.Valid) {
			return fmt.Errorf("%w: feedback row %d", errSnapshotInvalid, i)
		}
		if !slices.Equal(row, calculateFeedback(g, target)) {
			return fmt.Errorf("%w: feedback row %d does not match guess %s", errSnapshotInvalid, i, g)
		}
		if strings.EqualFold(g, target) && i != len(snap.Guesses)-1 {
			return fmt.Errorf("%w: guesses continue after the winning guess %d", errSnapshotInvalid, i)
		}
	}
	status := replayStatus(snap.Guesses, target)
	if snap.Won != (status == StatusWon) || snap.GameOver != (status != StatusInProgress) {
		return fmt.Errorf("%w: recorded won=%v over=%v but guesses give %s",
			errSnapshotInvalid, snap.Won, snap.GameOver, status)
	}
	return nil
}

// replayStatus is the status a game reaches after the given guesses.
func replayStatus(guesses []string, target string) string {
	switch {
	case len(guesses) > 0 && strings.EqualFold(guesses[len(guesses)-1], target):
		return StatusWon
	case len(guesses) >= MaxGuesses:
		return StatusLost
	}
	return StatusInProgress
}

// fileSnapshotStore keeps one JSON file per session under dir.
type fileSnapshotStore struct {
	dir string
}

func newFileSnapshotStore(dir string) (*fileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", dir, err)
	}
	return &fileSnapshotStore{dir: dir}, nil
}

func (s *fileSnapshotStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Save writes the snapshot through a temp file so a crash never leaves a
// half-written record behind.
func (s *fileSnapshotStore) Save(_ context.Context, sessionID string, snap *types.Snapshot) error {
	if !validSessionID(sessionID) {
		logWarn("Skipping save for invalid session ID: %s", sessionID)
		return nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot for session %s: %w", sessionID, err)
	}
	tmp, err := os.CreateTemp(s.dir, sessionID+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(sessionID))
}

func (s *fileSnapshotStore) Load(_ context.Context, sessionID string) (*types.Snapshot, error) {
	if !validSessionID(sessionID) {
		return nil, errSnapshotNotFound
	}
	file := s.path(sessionID)
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errSnapshotNotFound
		}
		return nil, err
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logWarn("Session file %s is corrupted, removing: %v", file, err)
		os.Remove(file)
		return nil, fmt.Errorf("%w: %v", errSnapshotInvalid, err)
	}
	return &snap, nil
}

// Cleanup removes session files whose modification time is older than maxAge.
func (s *fileSnapshotStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logWarn("Failed to stat session file %s: %v", entry.Name(), err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				logWarn("Failed to remove old session file %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

func (s *fileSnapshotStore) Close() error { return nil }

// memorySnapshotStore keeps encoded snapshots in process memory.
type memorySnapshotStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	data    []byte
	savedAt time.Time
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{records: make(map[string]memoryRecord)}
}

func (s *memorySnapshotStore) Save(_ context.Context, sessionID string, snap *types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[sessionID] = memoryRecord{data: data, savedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *memorySnapshotStore) Load(_ context.Context, sessionID string) (*types.Snapshot, error) {
	s.mu.Lock()
	rec, ok := s.records[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, errSnapshotNotFound
	}
	var snap types.Snapshot
	if err := json.Unmarshal(rec.data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", errSnapshotInvalid, err)
	}
	return &snap, nil
}

func (s *memorySnapshotStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	stale := lo.Keys(lo.PickBy(s.records, func(_ string, rec memoryRecord) bool {
		return rec.savedAt.Before(cutoff)
	}))
	for _, id := range stale {
		delete(s.records, id)
	}
	return len(stale), nil
}

func (s *memorySnapshotStore) Close() error { return nil }

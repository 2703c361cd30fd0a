package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"colordle/internal/oracle"
	"colordle/internal/types"
)

// App bundles configuration and shared state for the HTTP handlers.
type App struct {
	Config Config

	Oracle *oracle.Oracle
	Store  SnapshotStore

	GameSessions map[string]*GameState
	SessionMutex sync.RWMutex

	// SessionLocks serialize restore, guess and save per session.
	SessionLocks map[string]*sessionLock
	LocksMutex   sync.Mutex

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	Metrics *Metrics

	// Now is the clock used for every date decision; tests pin it.
	Now       func() time.Time
	StartTime time.Time
}

// GameState is one session's game for one calendar day.
type GameState struct {
	Date            string             // YYYY-MM-DD in the game location
	TargetColor     string             // Six upper-case hex digits
	Guesses         []string           // Accepted guesses in submission order
	Feedback        [][]types.Feedback // Feedback[i] belongs to Guesses[i]
	Status          string             // in_progress, won or lost
	ShareableResult string             // Built on entering a terminal state
	NextGameTime    time.Time          // Midnight after Date
	LastAccessTime  time.Time
}

// GameOver reports whether the game reached a terminal state.
func (g *GameState) GameOver() bool {
	return g.Status == StatusWon || g.Status == StatusLost
}

// Won reports whether the player found the color.
func (g *GameState) Won() bool { return g.Status == StatusWon }

// GuessRow pairs a guess with its feedback for rendering.
type GuessRow struct {
	Guess    string
	Feedback []types.Feedback
}

// Rows returns the guess history as render-ready rows.
func (g *GameState) Rows() []GuessRow {
	rows := make([]GuessRow, len(g.Guesses))
	for i := range g.Guesses {
		rows[i] = GuessRow{Guess: g.Guesses[i], Feedback: g.Feedback[i]}
	}
	return rows
}

// GuessesLeft is the remaining budget.
func (g *GameState) GuessesLeft() int {
	return MaxGuesses - len(g.Guesses)
}

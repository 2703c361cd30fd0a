package types

import "time"

// SnapshotVersion is bumped whenever the Snapshot layout changes. Stored
// snapshots carrying any other version are discarded on load.
const SnapshotVersion = 1

// Feedback is the per-digit classification of a guess.
type Feedback string

const (
	FeedbackExact Feedback = "exact"
	FeedbackClose Feedback = "close"
	FeedbackFar   Feedback = "far"
)

// Valid reports whether f is one of the known labels.
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackExact, FeedbackClose, FeedbackFar:
		return true
	}
	return false
}

// Snapshot is the persisted form of one session's daily game.
type Snapshot struct {
	Version         int          `json:"version"`
	Date            string       `json:"date"`
	Color           string       `json:"color"`
	Guesses         []string     `json:"guesses"`
	Feedback        [][]Feedback `json:"feedback"`
	GameOver        bool         `json:"gameOver"`
	Won             bool         `json:"won"`
	ShareableResult string       `json:"shareableResult"`
	NextGameTime    int64        `json:"nextGameTime"` // epoch milliseconds
	SavedAt         time.Time    `json:"savedAt"`
}

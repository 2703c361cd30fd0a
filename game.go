package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"colordle/internal/oracle"
	"colordle/internal/types"
)

var (
	errGameOver     = errors.New(ErrorGameOver)
	errInvalidGuess = errors.New(ErrorInvalidHex)
)

var feedbackEmoji = map[types.Feedback]string{
	types.FeedbackExact: "🟩",
	types.FeedbackClose: "🟨",
	types.FeedbackFar:   "⬜",
}

// normalizeGuess trims whitespace and one leading '#', and upper-cases the rest.
func normalizeGuess(input string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(input), "#"))
}

// isValidGuess reports whether a normalized guess is six hex digits.
func isValidGuess(guess string) bool {
	return oracle.IsHexColor(guess)
}

// hexValue returns the value of a single hex digit. Inputs are validated.
func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 0
}

// calculateFeedback classifies every digit of guess by its numeric distance
// to the same digit of target.
func calculateFeedback(guess, target string) []types.Feedback {
	result := make([]types.Feedback, ColorLength)
	for i := range ColorLength {
		d := hexValue(guess[i]) - hexValue(target[i])
		if d < 0 {
			d = -d
		}
		switch {
		case d == 0:
			result[i] = types.FeedbackExact
		case d <= CloseRange:
			result[i] = types.FeedbackClose
		default:
			result[i] = types.FeedbackFar
		}
	}
	return result
}

// nextResetTime returns midnight of the day after now, in loc.
func nextResetTime(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// newGameState starts an in-progress game for the given day.
func newGameState(date, color string, now time.Time, loc *time.Location) *GameState {
	return &GameState{
		Date:           date,
		TargetColor:    strings.ToUpper(color),
		Guesses:        []string{},
		Feedback:       [][]types.Feedback{},
		Status:         StatusInProgress,
		NextGameTime:   nextResetTime(now, loc),
		LastAccessTime: now,
	}
}

// applyGuess validates and records a guess, moving the game to won or lost
// when appropriate. Rejected guesses leave the game untouched.
func (app *App) applyGuess(ctx context.Context, game *GameState, guess string) error {
	if game.GameOver() {
		logWarnCtx(ctx, "Guess %q submitted on finished game for %s", guess, game.Date)
		return errGameOver
	}
	if !isValidGuess(guess) {
		logInfoCtx(ctx, "Rejected malformed guess %q", guess)
		return errInvalidGuess
	}

	guess = strings.ToUpper(guess)
	game.Guesses = append(game.Guesses, guess)
	game.Feedback = append(game.Feedback, calculateFeedback(guess, game.TargetColor))
	game.LastAccessTime = app.now()

	switch {
	case guess == game.TargetColor:
		game.Status = StatusWon
		logInfoCtx(ctx, "Player won on attempt %d/%d, color was %s", len(game.Guesses), MaxGuesses, game.TargetColor)
	case len(game.Guesses) >= MaxGuesses:
		game.Status = StatusLost
		logInfoCtx(ctx, "Player lost, color was %s", game.TargetColor)
	}

	if game.GameOver() {
		game.ShareableResult = generateShareableResult(game.Feedback, app.Config.ShareURL)
		app.Metrics.gameFinished(game.Status, len(game.Guesses))
	}
	return nil
}

// generateShareableResult renders the emoji grid for a finished game.
func generateShareableResult(feedback [][]types.Feedback, shareURL string) string {
	if shareURL == "" {
		shareURL = DefaultShareURL
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d/%d\n\n", ShareTitle, len(feedback), MaxGuesses)
	for _, row := range feedback {
		b.WriteString(strings.Join(lo.Map(row, func(f types.Feedback, _ int) string {
			return feedbackEmoji[f]
		}), ""))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nPlay at: %s", shareURL)
	return b.String()
}

// statusMessage is the banner shown once the game has ended.
func statusMessage(game *GameState) string {
	switch game.Status {
	case StatusWon:
		return MessageWon
	case StatusLost:
		return fmt.Sprintf(MessageLost, game.TargetColor)
	}
	return ""
}

// timeUntilNextGame renders the countdown to the next daily color.
func timeUntilNextGame(now, next time.Time) string {
	if next.IsZero() {
		return ""
	}
	left := next.Sub(now)
	if left <= 0 {
		return "New game available now!"
	}
	// The reset is at most one calendar day away, which can be 25h long.
	hours := int(left.Hours())
	minutes := int(left.Minutes()) % 60
	seconds := int(left.Seconds()) % 60
	return fmt.Sprintf("Next game in %dh %dm %ds", hours, minutes, seconds)
}

// rulesText is the help tooltip content.
func rulesText() string {
	return fmt.Sprintf(`1. Guess the daily hidden color's hex code.
2. Enter a valid hex code (e.g., #RRGGBB).
3. You have %d attempts to guess correctly.
4. After each guess, you'll get feedback:
   %s - Correct digit
   %s - Close digit (off by %d or less)
   %s - Incorrect digit
5. A new color is available each day at midnight.`,
		MaxGuesses,
		feedbackEmoji[types.FeedbackExact],
		feedbackEmoji[types.FeedbackClose], CloseRange,
		feedbackEmoji[types.FeedbackFar])
}

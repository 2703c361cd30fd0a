package main

// Game configuration constants
const (
	MaxGuesses  = 5 // Guess budget per day
	ColorLength = 6 // Hex digits in a color
	CloseRange  = 2 // Largest per-digit distance still reported as close
)

// Game status constants
const (
	StatusInProgress = "in_progress"
	StatusWon        = "won"
	StatusLost       = "lost"
)

// Session configuration constants
const (
	SessionCookieName = "session_id"
)

// Route constants
const (
	RouteHome      = "/"
	RouteGuess     = "/guess"
	RouteGameState = "/game-state"
	RouteNextGame  = "/next-game"
	RouteHealthz   = "/healthz"
	RouteMetrics   = "/metrics"
	RouteAPIState  = "/api/state"
	RouteAPIGuess  = "/api/guess"
	RouteAPIShare  = "/api/share"
	RouteAPIColor  = "/api/color/:date"
)

// User-facing messages
const (
	ErrorGameOver      = "Game is over. Come back tomorrow!"
	ErrorInvalidHex    = "Please enter a valid hex color code (e.g., RRGGBB)"
	ErrorNoShareResult = "No result to share yet."
	ErrorInvalidDate   = "Date must be formatted as YYYY-MM-DD."

	MessageWon    = "Congratulations! You guessed the color!"
	MessageLost   = "Game over! The color was #%s"
	MessageCopied = "Result copied to clipboard!"
)

// Share text
const (
	ShareTitle      = "Color Guessing Game"
	DefaultShareURL = "https://colordle.stefanhts.dev"
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)

type contextKey string

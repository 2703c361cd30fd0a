package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"colordle/internal/oracle"
	"colordle/internal/types"
)

// sessionView is the JSON shape of a session.
type sessionView struct {
	Date            string             `json:"date"`
	Color           string             `json:"color"`
	Guesses         []string           `json:"guesses"`
	Feedback        [][]types.Feedback `json:"feedback"`
	Status          string             `json:"status"`
	GameOver        bool               `json:"gameOver"`
	GuessesLeft     int                `json:"guessesLeft"`
	MaxGuesses      int                `json:"maxGuesses"`
	Message         string             `json:"message,omitempty"`
	ShareableResult string             `json:"shareableResult,omitempty"`
	NextGameTime    int64              `json:"nextGameTime"`
	Countdown       string             `json:"countdown"`
}

type guessRequest struct {
	Guess string `json:"guess" binding:"required"`
}

func (app *App) viewOf(game *GameState) sessionView {
	return sessionView{
		Date:            game.Date,
		Color:           "#" + game.TargetColor,
		Guesses:         game.Guesses,
		Feedback:        game.Feedback,
		Status:          game.Status,
		GameOver:        game.GameOver(),
		GuessesLeft:     game.GuessesLeft(),
		MaxGuesses:      MaxGuesses,
		Message:         statusMessage(game),
		ShareableResult: game.ShareableResult,
		NextGameTime:    game.NextGameTime.UnixMilli(),
		Countdown:       timeUntilNextGame(app.now(), game.NextGameTime),
	}
}

// apiStateHandler returns the session's game as JSON.
func (app *App) apiStateHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	game := app.getGameState(c.Request.Context(), sessionID)
	c.JSON(http.StatusOK, app.viewOf(game))
}

// apiGuessHandler accepts {"guess": "RRGGBB"}.
func (app *App) apiGuessHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)

	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorInvalidHex})
		return
	}

	game, err := app.submitGuess(ctx, sessionID, normalizeGuess(req.Guess))
	switch {
	case errors.Is(err, errInvalidGuess):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errGameOver):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": app.viewOf(game)})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, app.viewOf(game))
	}
}

// apiShareHandler serves the shareable result as plain text for the
// clipboard button.
func (app *App) apiShareHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	game := app.getGameState(c.Request.Context(), sessionID)
	if !game.GameOver() || game.ShareableResult == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrorNoShareResult})
		return
	}
	c.String(http.StatusOK, game.ShareableResult)
}

// apiColorHandler reports the color of any date.
func (app *App) apiColorHandler(c *gin.Context) {
	date := c.Param("date")
	if date == "today" {
		date = app.Oracle.DateKey(app.now())
	}
	if _, err := time.Parse(oracle.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorInvalidDate})
		return
	}
	color, source := app.Oracle.Lookup(date)
	c.JSON(http.StatusOK, gin.H{
		"date":   date,
		"hex":    "#" + color,
		"source": source,
	})
}

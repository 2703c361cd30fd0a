package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// pageData is the template payload shared by the page and its fragments.
func (app *App) pageData(game *GameState, errMsg string) gin.H {
	return gin.H{
		"title":      "Daily Color Guessing Game",
		"game":       game,
		"message":    statusMessage(game),
		"error":      errMsg,
		"rules":      rulesText(),
		"countdown":  timeUntilNextGame(app.now(), game.NextGameTime),
		"maxGuesses": MaxGuesses,
	}
}

// homeHandler renders the main game page for the current session.
func (app *App) homeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	game := app.getGameState(ctx, sessionID)
	c.HTML(http.StatusOK, "index.html", app.pageData(game, ""))
}

// guessHandler processes a form guess and renders the board, as a fragment
// for HTMX requests and as the full page otherwise.
func (app *App) guessHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	isHTMX := c.GetHeader("HX-Request") == "true"

	guess := normalizeGuess(c.PostForm("guess"))
	logInfoCtx(ctx, "Session %s guessed: %s", sessionID, guess)
	game, err := app.submitGuess(ctx, sessionID, guess)

	var errMsg string
	if err != nil {
		errMsg = err.Error()
		payload := map[string]string{"server_error": errMsg}
		if b, jerr := json.Marshal(payload); jerr == nil {
			c.Header("HX-Trigger", string(b))
		} else {
			logWarn("Failed to marshal HX-Trigger payload: %v", jerr)
		}
	}

	if isHTMX {
		c.HTML(http.StatusOK, "game-content", app.pageData(game, errMsg))
		return
	}
	c.HTML(http.StatusOK, "index.html", app.pageData(game, errMsg))
}

// gameStateHandler renders the current game board as an HTML fragment.
func (app *App) gameStateHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	game := app.getGameState(ctx, sessionID)
	c.HTML(http.StatusOK, "game-content", app.pageData(game, ""))
}

// nextGameHandler returns the countdown line the page polls every second.
// It never touches game state beyond reading the reset time.
func (app *App) nextGameHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	game := app.getGameState(ctx, sessionID)
	c.String(http.StatusOK, timeUntilNextGame(app.now(), game.NextGameTime))
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	app.SessionMutex.RLock()
	active := len(app.GameSessions)
	app.SessionMutex.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.Config.IsProduction],
		"today":           app.Oracle.DateKey(app.now()),
		"calendar_days":   app.Oracle.Entries(),
		"storage":         app.Config.StorageBackend,
		"active_sessions": active,
		"uptime":          formatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

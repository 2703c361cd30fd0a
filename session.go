package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"colordle/internal/types"
)

// Session load sources, used as metric labels.
const (
	loadCached   = "cached"
	loadRestored = "restored"
	loadStale    = "stale"
	loadInvalid  = "invalid"
	loadFresh    = "fresh"
	loadError    = "error"
)

// now returns the app clock, falling back to the wall clock.
func (app *App) now() time.Time {
	if app.Now != nil {
		return app.Now()
	}
	return time.Now()
}

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || !validSessionID(sessionID) {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(SessionCookieName, sessionID, int(app.Config.CookieMaxAge.Seconds()), "/", "", app.Config.IsProduction, true)
		logInfoCtx(c.Request.Context(), "Created new session: %s", sessionID)
	}
	return sessionID
}

// clone returns a copy that is safe to read without holding SessionMutex.
func (g *GameState) clone() *GameState {
	cp := *g
	cp.Guesses = slices.Clone(g.Guesses)
	cp.Feedback = lo.Map(g.Feedback, func(f []types.Feedback, _ int) []types.Feedback { return slices.Clone(f) })
	return &cp
}

// sessionLock serializes work on one session. refs counts holders and
// waiters so idle entries can be dropped.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession takes the session's lock and returns its release function.
// Store I/O for a session runs under this lock only, never under
// SessionMutex, so a slow store delays that session alone.
func (app *App) lockSession(sessionID string) func() {
	app.LocksMutex.Lock()
	if app.SessionLocks == nil {
		app.SessionLocks = make(map[string]*sessionLock)
	}
	l, ok := app.SessionLocks[sessionID]
	if !ok {
		l = &sessionLock{}
		app.SessionLocks[sessionID] = l
	}
	l.refs++
	app.LocksMutex.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		app.LocksMutex.Lock()
		l.refs--
		if l.refs == 0 {
			delete(app.SessionLocks, sessionID)
		}
		app.LocksMutex.Unlock()
	}
}

// cachedGame returns today's in-memory game for a session, if any.
func (app *App) cachedGame(sessionID, today string) (*GameState, bool) {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	game, ok := app.GameSessions[sessionID]
	return game, ok && game.Date == today
}

// getGameState returns a read-only copy of today's game for a session.
func (app *App) getGameState(ctx context.Context, sessionID string) *GameState {
	now := app.now()
	today := app.Oracle.DateKey(now)

	app.SessionMutex.RLock()
	game, exists := app.GameSessions[sessionID]
	if exists && game.Date == today {
		view := game.clone()
		app.SessionMutex.RUnlock()
		app.Metrics.sessionLoaded(loadCached)
		return view
	}
	app.SessionMutex.RUnlock()

	unlock := app.lockSession(sessionID)
	defer unlock()
	game = app.liveGame(ctx, sessionID, now)

	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return game.clone()
}

// submitGuess applies a guess to the session's game and persists the result.
// The returned game is a copy reflecting the state after the attempt, also
// when the guess was rejected.
func (app *App) submitGuess(ctx context.Context, sessionID, guess string) (*GameState, error) {
	now := app.now()

	unlock := app.lockSession(sessionID)
	defer unlock()
	game := app.liveGame(ctx, sessionID, now)

	app.SessionMutex.Lock()
	err := app.applyGuess(ctx, game, guess)
	view := game.clone()
	app.SessionMutex.Unlock()

	if err != nil {
		app.Metrics.guess("rejected")
		return view, err
	}
	app.Metrics.guess("accepted")
	app.persistGame(ctx, sessionID, view)
	return view, nil
}

// liveGame returns the in-memory game for today, restoring or starting one
// as needed. The session's lock must be held.
func (app *App) liveGame(ctx context.Context, sessionID string, now time.Time) *GameState {
	today := app.Oracle.DateKey(now)
	if game, ok := app.cachedGame(sessionID, today); ok {
		app.SessionMutex.Lock()
		game.LastAccessTime = now
		app.SessionMutex.Unlock()
		app.Metrics.sessionLoaded(loadCached)
		return game
	}
	game := app.restoreOrStart(ctx, sessionID, now)
	app.SessionMutex.Lock()
	app.GameSessions[sessionID] = game
	app.SessionMutex.Unlock()
	return game
}

// restoreOrStart restores the stored snapshot when it belongs to today and
// otherwise starts a fresh game, which is persisted right away.
func (app *App) restoreOrStart(ctx context.Context, sessionID string, now time.Time) *GameState {
	loc := app.Oracle.Location()
	today := app.Oracle.DateKey(now)

	snap, err := app.Store.Load(ctx, sessionID)
	switch {
	case err == nil:
		game, verr := gameFromSnapshot(snap, loc)
		switch {
		case verr != nil:
			logWarnCtx(ctx, "Discarding snapshot for session %s: %v", sessionID, verr)
			app.Metrics.sessionLoaded(loadInvalid)
		case game.Date != today:
			logInfoCtx(ctx, "Snapshot for session %s is from %s, starting %s", sessionID, game.Date, today)
			app.Metrics.sessionLoaded(loadStale)
		default:
			game.LastAccessTime = now
			logInfoCtx(ctx, "Restored session %s for %s (%d guesses)", sessionID, today, len(game.Guesses))
			app.Metrics.sessionLoaded(loadRestored)
			return game
		}
	case errors.Is(err, errSnapshotNotFound):
		app.Metrics.sessionLoaded(loadFresh)
	case errors.Is(err, errSnapshotInvalid):
		logWarnCtx(ctx, "Discarding snapshot for session %s: %v", sessionID, err)
		app.Metrics.sessionLoaded(loadInvalid)
	default:
		logWarnCtx(ctx, "Failed to load snapshot for session %s: %v", sessionID, err)
		app.Metrics.snapshotError("load")
		app.Metrics.sessionLoaded(loadError)
	}

	game := newGameState(today, app.Oracle.ColorFor(now), now, loc)
	logInfoCtx(ctx, "New game created for session %s on %s", sessionID, today)
	app.persistGame(ctx, sessionID, game)
	return game
}

// persistGame saves a snapshot of game. Failures are logged and counted only.
func (app *App) persistGame(ctx context.Context, sessionID string, game *GameState) {
	if app.Store == nil {
		return
	}
	if err := app.Store.Save(ctx, sessionID, snapshotFromGame(game, app.now())); err != nil {
		logWarnCtx(ctx, "Failed to persist session %s: %v", sessionID, err)
		app.Metrics.snapshotError("save")
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"colordle/internal/oracle"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		setupLogging("info", false)
		logFatal("Invalid configuration: %v", err)
	}
	setupLogging(cfg.LogLevel, cfg.IsProduction)
	logInfo("Starting Colordle in %s mode", map[bool]string{true: "production", false: "development"}[cfg.IsProduction])

	table, err := oracle.LoadCalendar(cfg.CalendarPath)
	if err != nil {
		logFatal("Failed to load color calendar: %v", err)
	}
	logInfo("Loaded %d calendar days from %s", len(table), cfg.CalendarPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		logFatal("Failed to open %s snapshot store: %v", cfg.StorageBackend, err)
	}
	defer store.Close()
	logInfo("Persisting sessions with the %s store", cfg.StorageBackend)

	app := newApp(cfg, oracle.New(table, cfg.ColorSalt, cfg.Location), store)
	app.startRollover(ctx)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	templates, static := "templates/*.html", "./static"
	if cfg.IsProduction && dirExists("dist") {
		logInfo("Serving assets from dist/ directory")
		templates, static = "dist/templates/*.html", "./dist/static"
	}
	router := app.setupRouter(templates, static)

	app.startServer(ctx, router)
}

// newApp wires an App around an oracle and a snapshot store.
func newApp(cfg Config, o *oracle.Oracle, store SnapshotStore) *App {
	return &App{
		Config:       cfg,
		Oracle:       o,
		Store:        store,
		GameSessions: make(map[string]*GameState),
		SessionLocks: make(map[string]*sessionLock),
		LimiterMap:   make(map[string]*rate.Limiter),
		Metrics:      newMetrics(),
		Now:          time.Now,
		StartTime:    time.Now(),
	}
}

// setupRouter installs middleware and routes. templateGlob and staticDir
// may be empty to skip HTML and static assets.
func (app *App) setupRouter(templateGlob, staticDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), accessLogMiddleware())

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{RouteMetrics})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		applyCacheHeaders(c, app.Config.IsProduction, app.Config.StaticCacheAge)
	})

	if templateGlob != "" {
		router.LoadHTMLGlob(templateGlob)
	}
	if staticDir != "" {
		router.Static("/static", staticDir)
	}

	router.GET(RouteHome, app.homeHandler)
	router.POST(RouteGuess, app.rateLimitMiddleware(), app.guessHandler)
	router.GET(RouteGameState, app.gameStateHandler)
	router.GET(RouteNextGame, app.nextGameHandler)

	api := router.Group("/api")
	api.GET("/state", app.apiStateHandler)
	api.POST("/guess", app.rateLimitMiddleware(), app.apiGuessHandler)
	api.GET("/share", app.apiShareHandler)
	api.GET("/color/:date", app.apiColorHandler)

	router.GET(RouteHealthz, app.healthzHandler)
	router.GET(RouteMetrics, gin.WrapH(app.Metrics.handler()))

	return router
}

// startServer serves until ctx is cancelled, then shuts down gracefully.
func (app *App) startServer(ctx context.Context, router *gin.Engine) {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		logInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", app.Config.Port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
}

func applyCacheHeaders(c *gin.Context, production bool, staticAge time.Duration) {
	if production && strings.HasPrefix(c.Request.URL.Path, "/static/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(staticAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/presencaplus/attendance-api/internal/config"
	"github.com/presencaplus/attendance-api/internal/fcm"
	"github.com/presencaplus/attendance-api/internal/handlers"
	"github.com/presencaplus/attendance-api/internal/middleware"
	"github.com/presencaplus/attendance-api/internal/migration"
	"github.com/presencaplus/attendance-api/internal/notification"
	"github.com/presencaplus/attendance-api/internal/push"
	"github.com/presencaplus/attendance-api/internal/repository"
	"github.com/presencaplus/attendance-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	notifications notification.Service
	dispatcher    *notification.Dispatcher
	tokens        *fcm.Service
	users         repository.UserRepository
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// Push gateway client and delivery dispatcher.
	gateway := push.NewClient(cfg.Fcm, logger)
	dispatcher := notification.NewDispatcher(userRepo, notificationRepo, gateway, logger)
	notificationService := notification.NewService(notificationRepo, eventRepo, dispatcher, logger)

	// Token lifecycle service with its single-flight cleanup guard.
	validator := push.NewValidator(gateway, logger)
	guard := fcm.NewRunGuard(time.Duration(cfg.Cleanup.CooldownMinutes) * time.Minute)
	tokenService := fcm.NewService(userRepo, validator, guard, cfg.Cleanup, logger)

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		notifications: notificationService,
		dispatcher:    dispatcher,
		tokens:        tokenService,
		users:         userRepo,
	}

	// Run the delivery dispatcher off the request path.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(dispatchCtx)
		close(dispatcherDone)
	}()
	stopDispatcher := func() {
		cancelDispatch()
		<-dispatcherDone
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, stopDispatcher, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(app.users, app.config.JWTSecret, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)
	fcmHandler := handlers.NewFcmHandler(app.tokens, logger)

	return routes.NewRouter(authHandler, notificationHandler, fcmHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, stopDispatcher func(), logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the delivery dispatcher once no new requests can enqueue work.
	// This blocks until the queue has drained.
	logger.Info().Msg("Stopping delivery dispatcher...")
	stopDispatcher()
	logger.Info().Msg("Delivery dispatcher drained and stopped.")
}

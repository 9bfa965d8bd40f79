package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Widiaaayuu/todolistt/internal/config"
	"github.com/Widiaaayuu/todolistt/internal/countdown"
	"github.com/Widiaaayuu/todolistt/internal/handlers"
	"github.com/Widiaaayuu/todolistt/internal/logger"
	"github.com/Widiaaayuu/todolistt/internal/services"
	"github.com/Widiaaayuu/todolistt/internal/todolist"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx := context.Background()

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create task store")
	}

	loc, _ := cfg.Location()
	locale, _ := countdown.ParseLocale(cfg.Locale)
	tasks := todolist.New(store,
		todolist.WithFormatter(countdown.Formatter{Locale: locale, Location: loc}),
		todolist.WithLogger(log.With().Str("component", "todolist").Logger()),
	)

	// the page retries on its next view if this fails
	if err := tasks.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("initial load failed")
	}

	runCtx, stopTicker := context.WithCancel(ctx)
	go func() {
		_ = tasks.Run(runCtx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.Renderer = handlers.NewTemplateRenderer()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handlers.NewTaskHandler(tasks, log.With().Str("component", "http").Logger()).Register(e)

	if cfg.LineEnabled() {
		bot, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create LINE bot client")
		}
		webhookHandler := handlers.NewWebhookHandler(bot, cfg.LineChannelSecret, tasks, log.With().Str("component", "line").Logger())
		e.POST("/webhook", webhookHandler.HandleWebhook)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return e.Shutdown(ctx)
			},
			"countdown": func(ctx context.Context) error {
				stopTicker()
				return nil
			},
			"task-store": func(ctx context.Context) error {
				return store.Close()
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}

func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (services.TaskStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	switch strings.ToLower(cfg.StoreBackend) {
	case config.BackendDatastore:
		return services.NewDatastoreService(ctx, log, cfg.ProjectID, cfg.Collection, opts...)
	case config.BackendMemory:
		log.Warn().Msg("using in-memory task store; tasks are lost on restart")
		return services.NewMemoryStore(), nil
	default:
		return services.NewFirestoreService(ctx, log, cfg.ProjectID, cfg.Collection, opts...)
	}
}

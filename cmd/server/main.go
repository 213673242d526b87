package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	config, err := server.NewConfigFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(config.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting RoomChat server", "port", config.Port, "rooms", config.Rooms)

	hub := chat.NewHub(
		chat.NewMessageStore(config.Rooms...),
		chat.NewTypingTracker(),
		chat.NewPresenceRegistry(),
		chat.WithLogger(logger),
	)
	go hub.Run()

	gateway := server.NewServer(*config, hub, logger)
	httpServer := server.CreateServer(config.Port, gateway.Routes())

	go func() {
		if err := server.StartServer(httpServer); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(context.Context) error {
				return server.ShutdownServer(httpServer, config.ShutdownTimeout)
			},
			"chat-hub": func(context.Context) error {
				if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
					return err
				}
				return gateway.Wait(config.ShutdownTimeout)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mucbot/mucbot/internal/agent"
	"github.com/mucbot/mucbot/internal/bus"
	"github.com/mucbot/mucbot/internal/config"
	"github.com/mucbot/mucbot/internal/gateway"
	"github.com/mucbot/mucbot/internal/history"
	"github.com/mucbot/mucbot/internal/outbound"
	"github.com/mucbot/mucbot/internal/pipeline"
	"github.com/mucbot/mucbot/internal/provider"
	"github.com/mucbot/mucbot/internal/trace"
	"github.com/mucbot/mucbot/internal/transcript"
	"github.com/mucbot/mucbot/internal/typing"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot (gateway stream + agent loop)",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	printHeader("🤖 MucBot")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cfg.Bot.LogLevel)
	slog.Info("Starting mucbot", "version", version, "room", cfg.Bot.Room, "nick", cfg.Bot.Nick)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *transcript.Store
	if cfg.Transcript.Enabled() {
		store, err = transcript.Open(cfg.Transcript.Path)
		if err != nil {
			slog.Error("Transcript store unavailable, continuing without", "path", cfg.Transcript.Path, "error", err)
			store = nil
		} else {
			defer store.Close()
			slog.Info("Transcript store open", "path", cfg.Transcript.Path)
		}
	}
	// A nil *Store inside a non-nil interface would defeat the loop's
	// nil check, so the interface value is only set when the store is up.
	var recorder agent.Recorder
	if store != nil {
		recorder = store
	}

	tracer := trace.NewPublisher(cfg.Trace.BrokerList(), cfg.Trace.Topic, cfg.Trace.ClientID)
	defer tracer.Close()
	if tracer.Active() {
		slog.Info("Trace mirror active", "topic", cfg.Trace.Topic)
	}

	events := bus.New()
	client := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Token, events)
	backend := provider.NewOllama(cfg.AI.OllamaURL)
	hist := history.NewStore(cfg.Bot.Nick)
	pipe := pipeline.New(backend, hist, cfg.AI.DefaultModel, cfg.AI.CodeModel)
	sender := outbound.NewSender(client, client, cfg.Bot.Nick)
	deliverer := typing.New(sender, cfg.Bot.TypingEffect)

	loop := agent.NewLoop(agent.LoopOptions{
		Bus:       events,
		Transport: client,
		Cipher:    client,
		Sender:    sender,
		Deliverer: deliverer,
		Pipeline:  pipe,
		Backend:   backend,
		History:   hist,

		Transcript: recorder,
		Tracer:     tracer,

		Room:                cfg.Bot.Room,
		Nick:                cfg.Bot.Nick,
		AdminJID:            cfg.Bot.AdminJID,
		Debug:               cfg.Bot.Debug,
		MinResponseInterval: cfg.Bot.ResponseInterval(),
	})

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Gateway stream ended", "error", err)
		}
	}()

	if err := client.StartSession(ctx, gateway.Session{
		JID:      cfg.Bot.JID,
		Password: cfg.Bot.Password,
		Nick:     cfg.Bot.Nick,
		Room:     cfg.Bot.Room,
	}); err != nil {
		return fmt.Errorf("start gateway session: %w", err)
	}

	err = loop.Run(ctx)
	slog.Info("Shutting down")
	return err
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

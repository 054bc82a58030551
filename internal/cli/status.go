package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mucbot/mucbot/internal/config"
	"github.com/mucbot/mucbot/internal/provider"
	"github.com/mucbot/mucbot/internal/transcript"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ MucBot Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 MucBot Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		if configPath, err := config.ConfigPath(); err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:   ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:   ✗ Not found (env-only setup)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:   ✗ Load failed: %v\n", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("Settings: ✗ %v\n", err)
		} else {
			fmt.Println("Settings: ✓ Complete")
			fmt.Println("Room:     " + cfg.Bot.Room)
			fmt.Println("Nick:     " + cfg.Bot.Nick)
			fmt.Printf("Models:   %s / %s\n", cfg.AI.DefaultModel, cfg.AI.CodeModel)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cfg.AI.OllamaURL != "" && provider.NewOllama(cfg.AI.OllamaURL).Healthy(ctx) {
			fmt.Println("Ollama:   ✓ Reachable (" + cfg.AI.OllamaURL + ")")
		} else {
			fmt.Println("Ollama:   ✗ Not reachable")
		}

		printTranscriptStatus(cfg)

		if cfg.Trace.Enabled() {
			fmt.Println("Trace:    ✓ Mirroring to " + cfg.Trace.Topic)
		} else {
			fmt.Println("Trace:    ✗ Disabled (KAFKA_BROKERS empty)")
		}

		fmt.Println("Status:   Ready")
	},
}

func printTranscriptStatus(cfg *config.Config) {
	if !cfg.Transcript.Enabled() {
		fmt.Println("Transcript: ✗ Disabled (TRANSCRIPT_DB empty)")
		return
	}
	store, err := transcript.Open(cfg.Transcript.Path)
	if err != nil {
		fmt.Printf("Transcript: ✗ %v\n", err)
		return
	}
	defer store.Close()

	counts, err := store.Counts()
	if err != nil {
		fmt.Printf("Transcript: ✗ %v\n", err)
		return
	}
	fmt.Printf("Transcript: ✓ %d turns, %d decisions, %d replies\n",
		counts.Turns, counts.Decisions, counts.Replies)

	if decisions, err := store.RecentDecisions(cfg.Bot.Room, 1); err == nil && len(decisions) > 0 {
		d := decisions[len(decisions)-1]
		line := fmt.Sprintf("Last decision: replied=%t reason=%q", d.Replied, d.Reason)
		if len(d.TraceID) >= 8 {
			line += " trace=" + d.TraceID[:8]
		}
		fmt.Println(line)
	}
}

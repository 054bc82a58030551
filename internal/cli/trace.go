package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mucbot/mucbot/internal/config"
	"github.com/mucbot/mucbot/internal/trace"
	"github.com/spf13/cobra"
)

var traceFromStart bool

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Tail the Kafka decision-trace topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		brokers := cfg.Trace.BrokerList()
		if len(brokers) == 0 {
			return fmt.Errorf("trace mirror is disabled (set KAFKA_BROKERS)")
		}

		reader := trace.NewReader(brokers, cfg.Trace.Topic, traceFromStart)
		defer reader.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Tailing %s on %s (Ctrl+C to stop)\n", cfg.Trace.Topic, brokers[0])
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("read trace topic: %w", err)
			}
			var ev trace.Event
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  <malformed record>\n", m.Time.Format(time.RFC3339))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatTraceEvent(ev))
		}
	},
}

func formatTraceEvent(ev trace.Event) string {
	line := fmt.Sprintf("%s  %-8s", ev.Timestamp.Format("15:04:05"), ev.Kind)
	if len(ev.TraceID) >= 8 {
		line += "  [" + ev.TraceID[:8] + "]"
	}
	if ev.Nick != "" {
		line += "  " + ev.Nick
	}
	if ev.Body != "" {
		line += "  " + oneLine(ev.Body, 80)
	}
	if ev.Reason != "" {
		line += "  (" + oneLine(ev.Reason, 80) + ")"
	}
	if ev.Model != "" {
		line += "  model=" + ev.Model
	}
	if ev.DurationMs > 0 {
		line += fmt.Sprintf("  %dms", ev.DurationMs)
	}
	return line
}

// oneLine flattens and trims s for single-line console output.
func oneLine(s string, max int) string {
	flat := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		flat = append(flat, r)
	}
	if len(flat) <= max {
		return string(flat)
	}
	return string(flat[:max]) + "…"
}

func init() {
	traceCmd.Flags().BoolVar(&traceFromStart, "from-start", false, "Read the topic from the first offset")
}

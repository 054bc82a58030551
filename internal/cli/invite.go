package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mucbot/mucbot/internal/config"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var inviteOut string

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Render the room join link as a QR code",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Bot.Room == "" {
			return fmt.Errorf("MUC_ROOM is not configured")
		}

		out := inviteOut
		if out == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home: %w", err)
			}
			out = filepath.Join(home, ".mucbot", "invite.png")
		}
		if dir := filepath.Dir(out); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		uri := "xmpp:" + cfg.Bot.Room + "?join"
		if err := qrcode.WriteFile(uri, qrcode.Medium, 512, out); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Join link: %s\n", uri)
		fmt.Fprintf(cmd.OutOrStdout(), "QR code:   %s\n", out)
		return nil
	},
}

func init() {
	inviteCmd.Flags().StringVarP(&inviteOut, "output", "o", "", "Output PNG path (default ~/.mucbot/invite.png)")
}

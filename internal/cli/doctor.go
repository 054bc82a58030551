package cli

import (
	"fmt"

	"github.com/mucbot/mucbot/internal/cliconfig"
	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run config and setup diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := cliconfig.RunDoctorWithOptions(cliconfig.DoctorOptions{
			Fix: doctorFix,
		})
		if err != nil {
			return err
		}

		failures := 0
		for _, check := range report.Checks {
			symbol := "PASS"
			if check.Status == cliconfig.DoctorWarn {
				symbol = "WARN"
			}
			if check.Status == cliconfig.DoctorFail {
				symbol = "FAIL"
				failures++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", symbol, check.Name, check.Message)
		}

		if failures > 0 {
			return fmt.Errorf("doctor found %d failing check(s)", failures)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Apply safe fixes (create default config, tighten permissions)")
	rootCmd.AddCommand(doctorCmd)
}

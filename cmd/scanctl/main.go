// Command scanctl drives the Orchestrator end to end against a local path
// or an inline source file, without the HTTP server (spec §6.2).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Privacy and compliance scan pipeline CLI",
	Long: `scanctl runs the five-stage privacy scan pipeline (Scan, AI-Enhance,
Compliance, Fix-Suggest, Report) against a local project, printing a
colorized executive summary and the locator of the persisted report.`,
}

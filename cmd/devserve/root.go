// Package main provides the entry point for the devserve CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for devserve.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserve",
		Short: "Development server launcher and supervisor for CRIC-V",
		Long: `Devserve launches and supervises the CRIC-V development server.

It provisions the data workspace (raw videos, processed output, thumbnails),
resolves the project's virtual-environment interpreter, starts the server
bound to 0.0.0.0:8000, and restarts it when source files change or the
process crashes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewUpCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewDoctorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

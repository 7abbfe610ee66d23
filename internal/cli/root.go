// Package cli defines the interviewctl commands: a text-mode practice
// interview and envelope tools for debugging the reasoning transport.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags at build time

// NewRootCmd builds the interviewctl command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewctl",
		Short: "Operator tools for the interview engine",
		Long: `interviewctl runs practice interviews in the terminal against the
configured reasoning service and seals or opens transport envelopes.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newPracticeCmd())
	root.AddCommand(newSealCmd())
	root.AddCommand(newOpenCmd())
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

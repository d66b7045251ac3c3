package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/keel/cmd/diag"
	"github.com/ValentinKolb/keel/cmd/reset"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "keel",
		Short: "consistency layer for the admin data store",
		Long: fmt.Sprintf(`keel (v%s)

A consistency layer over a key-value store with single-key atomicity,
providing idempotent effects, a relationship graph, maintained secondary
indices and snapshot-based rollback for multi-entity workflows.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of keel",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keel v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(diag.DiagCommands)
	RootCmd.AddCommand(reset.ResetCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

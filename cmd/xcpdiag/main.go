package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xcpindex "github.com/andromedia/xcp/pkg"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var usageErr *xcpindex.UsageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "xcpdiag",
		Short: "Diagnose and repair xcp scan index files",
		Long: `xcpdiag inspects xcp scan index files for directory entries whose
ancestor chain cannot be reconstructed, locates the missing directories
in other batches of the same index, and can rebuild and commit a
repaired copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := xcpindex.LoadConfig()
			if err != nil {
				return err
			}
			opts := cfg.Log
			if logLevel != "" {
				opts.Level = logLevel
			}
			return xcpindex.ConfigureLogging(opts)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "loglevel", "", "log level (trace/debug/info/warn/error)")

	root.AddCommand(newRepairCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newVersionCmd())
	return root
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xcpindex "github.com/andromedia/xcp/pkg"
)

func newRepairCmd() *cobra.Command {
	var (
		rebuild    bool
		replace    bool
		tryMissing bool
		parallel   int
		ibatch     int
	)

	cmd := &cobra.Command{
		Use:   "repair <index path or id>",
		Short: "Diagnose an index's directory ancestry and optionally rebuild it",
		Long: `repair runs the three diagnostic phases over an index: Diagnosing
finds directories whose ancestor chain is broken, Locating searches all
batches for the missing directories and their full chains, and with
-rebuild the index is rewritten with the recovered chains folded back
in. -replace commits the rebuilt index over the original, moving the
originals aside as .ORIG files.

Without -rebuild nothing is modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexPath, err := xcpindex.ResolveIndexPath(args[0])
			if err != nil {
				return err
			}

			cfg, err := xcpindex.LoadConfig()
			if err != nil {
				return err
			}
			tokens := cfg.Tokens
			if cmd.Flags().Changed("parallel") {
				tokens = parallel
			}
			window := cfg.Window
			if cmd.Flags().Changed("ibatch") {
				window = ibatch
			}

			report, err := xcpindex.Repair(cmd.Context(), indexPath, xcpindex.RepairOptions{
				Rebuild:    rebuild,
				Replace:    replace,
				TryMissing: tryMissing,
				Tokens:     tokens,
				Window:     window,
			})
			if err != nil {
				return err
			}
			printReport(indexPath, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "write a repaired copy as <index>.new")
	cmd.Flags().BoolVar(&replace, "replace", false, "commit the repaired copy over the index (requires -rebuild)")
	cmd.Flags().BoolVar(&tryMissing, "trymissing", false, "treat every directory as missing")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "multibatches processed in parallel")
	cmd.Flags().IntVar(&ibatch, "ibatch", 0, "batches consolidated per multibatch")
	cmd.Flags().MarkHidden("trymissing")
	return cmd
}

func printReport(indexPath string, report *xcpindex.RepairReport) {
	fmt.Fprintf(os.Stdout, "index %s\n", indexPath)
	fmt.Fprintf(os.Stdout, "  missing directories:  %d\n", report.Missing)
	fmt.Fprintf(os.Stdout, "  located:              %d\n", report.Located)
	fmt.Fprintf(os.Stdout, "  with full ancestry:   %d\n", report.GotAncestry)
	fmt.Fprintf(os.Stdout, "  ancestry entries:     %d\n", report.Ancestries)
	if report.Rebuilt {
		fmt.Fprintf(os.Stdout, "  rebuilt: %d -> %d bytes\n", report.OldSize, report.NewSize)
	}
	if report.Replaced {
		fmt.Fprintf(os.Stdout, "  replaced: originals saved as %s files\n", xcpindex.BackupSuffix)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xcpindex "github.com/andromedia/xcp/pkg"
)

func newInfoCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <index path or id>",
		Short: "Show an index's header and per-batch summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexPath, err := xcpindex.ResolveIndexPath(args[0])
			if err != nil {
				return err
			}
			info, err := xcpindex.InspectIndex(indexPath)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Printf("index:    %s\n", info.Path)
			fmt.Printf("size:     %d bytes\n", info.Size)
			fmt.Printf("version:  %d\n", info.Version)
			fmt.Printf("clean:    %v\n", info.Clean)
			fmt.Printf("checksum: %s\n", info.Checksum)
			fmt.Printf("batches:  %d (%d files, %d dirs, %d ancestry records)\n",
				info.BatchCount, info.TotalFiles, info.TotalDirs, info.TotalAncestry)
			for _, b := range info.Batches {
				fmt.Printf("  batch %4d: %6d files %6d dirs %6d ancestry\n",
					b.Seq, b.Files, b.Dirs, b.Ancestry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the xcpdiag version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xcpdiag %s\n", version)
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	replaycatalog "portalshift/engine/tools/replay_catalog"
)

func newRootCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:          "replay_catalog [dir]",
		Short:        "List recorded portalshift replay bundles",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			entries, err := replaycatalog.List(root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := replaycatalog.MarshalEntries(entries)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintf(out, "%s (schema %d)\n", entry.BundlePath, entry.Header.SchemaVersion)
				fmt.Fprintf(out, "  session: %s\n", entry.Header.SessionID)
				if entry.Header.Level != "" {
					fmt.Fprintf(out, "  level:   %s\n", entry.Header.Level)
				}
				if entry.Header.TickRate > 0 {
					fmt.Fprintf(out, "  tick:    %.0f Hz\n", entry.Header.TickRate)
				}
				fmt.Fprintf(out, "  size:    %d bytes\n", entry.Bytes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of human-readable output")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

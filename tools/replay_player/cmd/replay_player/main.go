package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	replayplayer "portalshift/engine/tools/replay_player"
)

func newRootCommand() *cobra.Command {
	var opts replayplayer.Options
	var compact bool
	cmd := &cobra.Command{
		Use:          "replay_player <bundle-dir>",
		Short:        "Print a portalshift replay bundle as JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := replayplayer.Build(args[0], opts)
			if err != nil {
				return err
			}
			//1.- Render as JSON so the output can be piped into other tooling.
			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(report)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.DecodeFrames, "decode-frames", false, "restore every frame into a full world snapshot")
	flags.StringVar(&opts.EventType, "type", "", "only list events of this type (e.g. portal_transfer)")
	flags.Uint64Var(&opts.FromTick, "from", 0, "first tick to include")
	flags.Uint64Var(&opts.ToTick, "to", 0, "last tick to include (0 means no limit)")
	flags.BoolVar(&compact, "compact", false, "emit single-line JSON")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tango/pkg/keyboard"
	"github.com/teslashibe/go-tango/pkg/session"
	"github.com/teslashibe/go-tango/pkg/tango"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Type from a recorded expression script",
	Long: `Feed a script of expression labels through the debouncer and keyboard
without a camera. One label per frame, separated by spaces, commas or
newlines. "-" or "none" is a frame without a face, "happy*5" holds a label
for five frames and "#" starts a comment. Use "-" as FILE to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringSlice("alphabet", nil, "Keyboard keys, comma separated (overrides config)")
	replayCmd.Flags().Int("stable-frames", 0, "Frames a label must hold before it counts (overrides config)")
	replayCmd.Flags().BoolP("quiet", "q", false, "Print only the final output")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if keys := mustGetStringSlice(cmd, "alphabet"); len(keys) > 0 {
		cfg.Keyboard.Alphabet = keys
	}
	if n := mustGetInt(cmd, "stable-frames"); n > 0 {
		cfg.Gesture.StableFrames = n
	}

	alphabet, err := cfg.Alphabet()
	if err != nil {
		return fmt.Errorf("alphabet: %w", err)
	}
	sess, err := session.New(alphabet, cfg.Gesture.StableFrames)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	signals, err := tango.ReadScript(in)
	if err != nil {
		return err
	}

	quiet := mustGetBool(cmd, "quiet")
	out := cmd.OutOrStdout()
	output := tango.Replay(sess, signals, func(s tango.Step) {
		if quiet {
			return
		}
		line := fmt.Sprintf("%4d  %-10s %-13s %s | %s", s.Index, s.Signal.Label, s.Action,
			joinKeys(s.Result.Left), joinKeys(s.Result.Right))
		if s.Result.Committed != "" {
			line += "  -> " + string(s.Result.Committed)
		}
		fmt.Fprintln(out, line)
	})

	if !quiet {
		fmt.Fprintf(out, "%d frames, output:\n", len(signals))
	}
	fmt.Fprintln(out, output)
	return nil
}

func joinKeys(s keyboard.Set) string {
	return strings.Join(s.Strings(), "")
}

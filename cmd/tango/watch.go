package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tango/pkg/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running dashboard's typing state",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("addr", "localhost:8080", "Dashboard host:port")
}

func runWatch(cmd *cobra.Command, args []string) error {
	u := url.URL{Scheme: "ws", Host: mustGetString(cmd, "addr"), Path: "/ws/state"}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	out := cmd.OutOrStdout()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var snap session.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		fmt.Fprintln(out, formatSnapshot(snap))
	}
}

func formatSnapshot(s session.Snapshot) string {
	state := "off"
	switch {
	case s.Enabled && s.Ready:
		state = "live"
	case s.Enabled:
		state = "starting"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | %s  %q", state,
		strings.Join(s.Left, ""), strings.Join(s.Right, ""), s.Output)
	if s.Present {
		fmt.Fprintf(&b, "  face=%s", s.Label)
	}
	if s.Action != "" && s.Action != "none" {
		fmt.Fprintf(&b, "  action=%s", s.Action)
	}
	if s.Committed != "" {
		fmt.Fprintf(&b, "  typed=%s", s.Committed)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "  error=%s", s.Error)
	}
	return b.String()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/spf13/cobra"
)

var (
	rawLogHex    bool
	rawLogStatus bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded RDAC frames in human-readable format",
	Long: `Continuously decode and display RDAC frames as they arrive.

Each frame is shown with its timestamp, message type and decoded sensor
values. Warnings and errors from the frame synchronizer are always shown;
use --status to also print the "Everything OK" heartbeat after each frame.

Supports serial, WebSocket and replay connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also dump received bytes in hex")
	rawLogCmd.Flags().BoolVar(&rawLogStatus, "status", false, "Show info status events")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signalContext()
	defer stop()
	closeOnDone(ctx, conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rdacmon - Raw Frame Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	stream := newStream()
	stream.Subscribe(rawLogHandler(out, rawLogStatus))

	var src io.Reader = conn
	if rawLogHex {
		src = io.TeeReader(conn, hexWriter{out})
	}

	err = stream.Pump(ctx, src)
	if isClosed(ctx, err) {
		logger.Info().Msg("connection closed")
		return nil
	}
	return err
}

// rawLogHandler prints every reading and every non-info status event.
func rawLogHandler(w io.Writer, showInfo bool) rdac.Handler {
	return func(ev rdac.Event) {
		if st, ok := ev.(*rdac.StatusEvent); ok && st.Severity == rdac.SeverityInfo && !showInfo {
			return
		}
		fmt.Fprint(w, rdac.FormatEvent(ev))
	}
}

type hexWriter struct {
	w io.Writer
}

func (h hexWriter) Write(p []byte) (int, error) {
	fmt.Fprintf(h.w, "RX: %s\n", rdac.FormatHex(p))
	return len(p), nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze link errors and anomalous readings",
	Long: `Track frame errors, lost synchronisation and anomalous values with statistics.

This command decodes the RDAC link and detects:
  - Frames rejected for checksum A or checksum B mismatches
  - Unknown message types behind a valid preamble
  - Bytes skipped while searching for a frame start
  - Readings outside the configured alarm limits (RPM, EGT, CHT, oil, volts)
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Alarm limits are read from the limits section of the config file and are
reloaded whenever the file changes.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}

	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signalContext()
	defer stop()
	closeOnDone(ctx, conn)

	limits := newLiveLimits(cfg.Limits)
	watchLimits(ctx, limits)

	if useTUI {
		return runTUIMode(ctx, conn, connInfo, limits)
	}
	return runTextMode(ctx, cmd.OutOrStdout(), conn, connInfo, limits)
}

// eventMsg carries one stream event and its anomalies, both to the text loop
// and into the TUI.
type eventMsg struct {
	event     rdac.Event
	anomalies []rdac.ValidationError
}

// linkClosedMsg ends the TUI when the byte source goes away.
type linkClosedMsg struct {
	err error
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, conn io.Reader, connInfo string, limits *liveLimits) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	stream := newStream()
	stream.Subscribe(func(ev rdac.Event) {
		p.Send(eventMsg{event: ev, anomalies: limits.Validate(ev)})
	})

	go func() {
		err := stream.Pump(ctx, conn)
		if isClosed(ctx, err) {
			err = nil
		}
		p.Send(linkClosedMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := final.(model); ok && fm.linkErr != nil {
		return fm.linkErr
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, out io.Writer, conn io.Reader, connInfo string, limits *liveLimits) error {
	fmt.Fprintf(out, "rdacmon - Error Detection Mode\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	mon := newMonitor()

	events := make(chan eventMsg, 256)
	stream := newStream()
	stream.Subscribe(func(ev rdac.Event) {
		events <- eventMsg{event: ev, anomalies: limits.Validate(ev)}
	})

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- stream.Pump(ctx, conn)
		close(events)
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				fmt.Fprintln(out)
				fmt.Fprint(out, mon.stats.String())
				if err := <-pumpErr; !isClosed(ctx, err) {
					return err
				}
				return nil
			}
			printObservation(out, mon.observe(msg.event, msg.anomalies), mon, showAll)

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, mon.stats.String())
			fmt.Fprintln(out)
		}
	}
}

// printObservation writes what the operator needs to see about one event.
func printObservation(out io.Writer, obs observation, mon *monitor, all bool) {
	switch ev := obs.event.(type) {
	case *rdac.ReadingEvent:
		if len(obs.anomalies) > 0 {
			printAnomalies(out, ev, obs.anomalies)
		} else if all {
			fmt.Fprint(out, rdac.FormatEvent(ev))
		}

	case *rdac.StatusEvent:
		if obs.synced {
			if mon.invalidBytes > 0 {
				fmt.Fprintf(out, "[SYNC] Synchronized after skipping %d invalid bytes\n\n", mon.invalidBytes)
			} else {
				fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
			}
			return
		}
		if obs.fault {
			printLinkError(out, ev)
		}
	}
}

// printLinkError prints a rejected frame or lost sync in highlighted format
func printLinkError(out io.Writer, ev *rdac.StatusEvent) {
	timestamp := ev.Time.Format("15:04:05.000")
	color := "\033[1;33m"
	if ev.Severity == rdac.SeverityError {
		color = "\033[1;31m"
	}
	fmt.Fprintf(out, "[%s] %sLINK %s:\033[0m %s\n", timestamp, color, ev.Result, ev.Text)
	if ev.MessageType != 0 {
		fmt.Fprintf(out, "  Type: %s (0x%02X)\n", rdac.FormatMessageType(ev.MessageType), uint8(ev.MessageType))
	}
	if ev.Skipped > 0 {
		fmt.Fprintf(out, "  Skipped: %d bytes\n", ev.Skipped)
	}
	fmt.Fprintf(out, "  >>> FRAME REJECTED <<<\n\n")
}

// printAnomalies prints the limit violations found in a reading
func printAnomalies(out io.Writer, ev *rdac.ReadingEvent, anomalies []rdac.ValidationError) {
	timestamp := ev.Time.Format("15:04:05.000")
	t := ev.Reading.Type()

	fmt.Fprintf(out, "[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X)\n", timestamp, rdac.FormatMessageType(t), uint8(t))
	fmt.Fprintf(out, "  Checksums: \033[1;32mOK\033[0m\n")

	for i, a := range anomalies {
		fmt.Fprintf(out, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		switch a.Type {
		case rdac.AnomalyHighRPM:
			if ticks, ok := a.Details["ticks"].(uint16); ok {
				fmt.Fprintf(out, "    ticks=%d\n", ticks)
			}
		case rdac.AnomalyHighEGT, rdac.AnomalyHighCHT:
			if ch, ok := a.Details["channel"].(int); ok {
				fmt.Fprintf(out, "    channel=%d\n", ch)
			}
		}
	}
	fmt.Fprint(out, rdac.FormatReading(ev.Reading))
	fmt.Fprintln(out)
}

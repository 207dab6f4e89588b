// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/spf13/cobra"
)

// frame_test exit codes
const (
	exitFrameOK        = 0
	exitFrameTimeout   = 1
	exitConnectionFail = 2
)

var (
	frameTestTimeout int
	frameTestType    int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid RDAC frame",
	Long: `Wait for a valid RDAC frame on the connection until timeout.

This command connects to a serial port or WebSocket bridge and waits for any
frame that passes both checksums. Garbage and rejected frames are ignored.
Use --type to wait for one message type (1-4) only.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the wiring to an RDAC unit before a flight.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().IntVar(&frameTestType, "type", 0, "Only accept this message type (0 = any)")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	want := rdac.MessageType(frameTestType)
	if frameTestType != 0 && !want.Known() {
		return fmt.Errorf("--type must be between 1 and 4")
	}

	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		exitf(exitConnectionFail, "Connection error: %v\n", err)
	}
	defer conn.Close()

	fmt.Printf("rdacmon - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid RDAC frame...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(frameTestTimeout)*time.Second)
	defer cancel()
	closeOnDone(ctx, conn)

	result, err := waitForFrame(ctx, newStream(), conn, want)
	switch {
	case result != nil:
		if result.skipped > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", result.skipped)
		}
		t := result.reading.Type()
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", rdac.FormatMessageType(t), uint8(t))
		fmt.Printf("  Length: %d bytes\n", rdac.FrameSize(t))
		fmt.Print(rdac.FormatReading(result.reading))
		os.Exit(exitFrameOK)

	case ctx.Err() != nil:
		exitf(exitFrameTimeout, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)

	default:
		exitf(exitConnectionFail, "Read error: %v\n", err)
	}
	return nil
}

type frameResult struct {
	reading rdac.Reading
	skipped int
}

// waitForFrame feeds src into stream until a reading of type want (any type
// when want is 0) is decoded. It returns nil with the pump error when src
// ends first.
func waitForFrame(ctx context.Context, stream *rdac.Stream, src io.Reader, want rdac.MessageType) (*frameResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		result  *frameResult
		done    bool
		skipped int
	)
	stream.Subscribe(func(ev rdac.Event) {
		if done {
			return
		}
		switch e := ev.(type) {
		case *rdac.StatusEvent:
			// Bytes skipped ahead of a frame are reported on the status after it
			skipped += e.Skipped
			if result != nil && e.Result == rdac.ResultComplete {
				done = true
				cancel()
			}
		case *rdac.ReadingEvent:
			if result == nil && (want == 0 || e.Reading.Type() == want) {
				result = &frameResult{reading: e.Reading}
			}
		}
	})

	err := stream.Pump(ctx, src)
	if result != nil {
		result.skipped = skipped
		return result, nil
	}
	if err == nil {
		err = ErrConnectionClosed
	}
	return nil, err
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	simOut     string
	simRate    float64
	simCount   int
	simRPM     float64
	simCorrupt float64
	simGarbage int
	simSeed    int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate synthetic RDAC frames",
	Long: `Generate a stream of synthetic RDAC frames for bench testing.

Each cycle sends one frame of every type (fuel/voltage, environment, RPM
pulse, thermocouple) with slowly varying engine values. Line noise and
single-byte corruption can be injected to exercise the decoder's recovery.

Output goes to --out (a file, or - for stdout) or to the configured serial
port or WebSocket bridge.

Examples:
  rdacmon simulate --out capture.bin --count 100 --corrupt 0.05
  rdacmon simulate --port /dev/ttyUSB1 --rate 5
  rdacmon simulate --out - | rdacmon raw_log --replay /dev/stdin`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simOut, "out", "o", "", "Write frames to a file (- for stdout)")
	simulateCmd.Flags().Float64Var(&simRate, "rate", 4, "Cycles per second (0 = as fast as possible)")
	simulateCmd.Flags().IntVar(&simCount, "count", 0, "Number of cycles (0 = until interrupted)")
	simulateCmd.Flags().Float64Var(&simRPM, "rpm", 2400, "Mean engine speed")
	simulateCmd.Flags().Float64Var(&simCorrupt, "corrupt", 0, "Probability of corrupting each frame (0-1)")
	simulateCmd.Flags().IntVar(&simGarbage, "garbage", 0, "Maximum random bytes inserted before each cycle")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", time.Now().UnixNano(), "Random seed")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simCorrupt < 0 || simCorrupt > 1 {
		return errors.New("--corrupt must be between 0 and 1")
	}
	if simRate < 0 || simGarbage < 0 || simCount < 0 {
		return errors.New("--rate, --garbage and --count must not be negative")
	}

	out, info, err := openSimulatorOutput()
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signalContext()
	defer stop()

	logger.Info().
		Str("output", info).
		Float64("rate", simRate).
		Float64("corrupt", simCorrupt).
		Int("garbage", simGarbage).
		Int64("seed", simSeed).
		Msg("simulating")

	gen := newFrameGenerator(simSeed, simRPM, simCorrupt, simGarbage)

	var tick <-chan time.Time
	if simRate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / simRate))
		defer ticker.Stop()
		tick = ticker.C
	}

	sent := 0
loop:
	for simCount == 0 || sent < simCount {
		if _, err := out.Write(gen.cycle()); err != nil {
			return fmt.Errorf("write %s: %w", info, err)
		}
		sent++

		if tick == nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		select {
		case <-ctx.Done():
			break loop
		case <-tick:
		}
	}

	logger.Info().Int("cycles", sent).Msg("simulation finished")
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// openSimulatorOutput picks --out when set and the configured link otherwise.
func openSimulatorOutput() (io.WriteCloser, string, error) {
	switch simOut {
	case "":
	case "-":
		return nopCloser{os.Stdout}, "stdout", nil
	default:
		f, err := os.Create(simOut)
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", simOut, err)
		}
		return f, simOut, nil
	}

	if replayPath != "" {
		return nil, "", errors.New("--replay cannot be a simulator output, use --out")
	}
	conn, info, err := OpenConnection(cfg.Link)
	if err != nil {
		return nil, "", err
	}
	return conn, info, nil
}

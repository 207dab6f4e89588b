// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"math"
	"math/rand"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
)

// Raw values for a warm engine in cruise
const (
	simFlowPulses     = 30   // 27000 pulses/h
	simBusVoltsRaw    = 792  // 13.8 V on type 1
	simEnvVoltsRaw    = 1865 // 13.8 V on type 2
	simOilTemp        = 85
	simOilPressureRaw = 106 // about 4 bar
	simInsideAir      = 2150
	simOutsideAir     = 1200
	simManifold       = 24
	simEGTBase        = 650
	simCHTBase        = 180
)

// frameGenerator produces one cycle of all four RDAC frame types with
// slowly varying engine values, optional line noise and corruption.
type frameGenerator struct {
	rng     *rand.Rand
	rpm     float64
	corrupt float64 // probability of flipping one byte per frame
	garbage int     // maximum noise bytes before each cycle
	step    int
}

func newFrameGenerator(seed int64, rpm, corrupt float64, garbage int) *frameGenerator {
	return &frameGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		rpm:     rpm,
		corrupt: corrupt,
		garbage: garbage,
	}
}

// cycle returns the bytes of the next cycle: noise, then frames of type 1
// through 4.
func (g *frameGenerator) cycle() []byte {
	wobble := math.Sin(float64(g.step) / 10)
	g.step++

	var out []byte
	if g.garbage > 0 {
		noise := make([]byte, g.rng.Intn(g.garbage+1))
		g.rng.Read(noise)
		out = append(out, noise...)
	}

	var tc rdac.ThermocoupleRecord
	for i := 0; i < rdac.EGTChannels; i++ {
		tc.Slots[i] = uint16(simEGTBase + 15*i + int(20*wobble) + g.rng.Intn(5))
	}
	for i := 0; i < rdac.CHTChannels; i++ {
		tc.Slots[rdac.EGTChannels+i] = uint16(simCHTBase + 4*i + int(5*wobble))
	}

	frames := [][]byte{
		rdac.EncodeFuelVoltage(rdac.FuelVoltageRecord{
			Flow1:       simFlowPulses,
			PulseRatio1: 65535,
			PulseRatio2: 65535,
			Volts:       simBusVoltsRaw,
		}),
		rdac.EncodeEnvironment(rdac.EnvRecord{
			OilTemp:          simOilTemp,
			OilPressure:      simOilPressureRaw,
			Voltage:          simEnvVoltsRaw,
			InternalTemp:     simInsideAir,
			CHT1:             simOutsideAir,
			CHT2:             int16(simCHTBase + int(5*wobble)),
			ManifoldPressure: simManifold,
		}),
		rdac.EncodeRPMPulse(rdac.PulseRecord{Ticks: rdac.TicksForRPM(g.rpm + 50*wobble)}),
		rdac.EncodeThermocouple(tc),
	}

	for _, f := range frames {
		if g.corrupt > 0 && g.rng.Float64() < g.corrupt {
			// Past the preamble so the frame is still seen as a candidate
			i := 3 + g.rng.Intn(len(f)-3)
			f[i] ^= byte(1 + g.rng.Intn(255))
		}
		out = append(out, f...)
	}
	return out
}

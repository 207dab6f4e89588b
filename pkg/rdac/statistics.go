// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"fmt"
	"time"
)

// Statistics tracks frame counts and link error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	FramesByType     [MsgThermocouple + 1]uint64
	ChecksumAErrors  uint64
	ChecksumBErrors  uint64
	InvalidTypes     uint64
	NoSyncPasses     uint64
	SkippedBytes     uint64
	OverflowBytes    uint64
	AnomalousValues  uint64
	AnomaliesByType  map[AnomalyType]uint64
	LastStatusResult Result

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:       now,
		LastUpdateTime:  now,
		AnomaliesByType: make(map[AnomalyType]uint64),
	}
}

// Update updates statistics from a stream event and the anomalies found in it
func (s *Statistics) Update(ev Event, anomalies []ValidationError) {
	switch e := ev.(type) {
	case *ReadingEvent:
		s.TotalFrames++
		if t := e.Reading.Type(); t.Known() {
			s.FramesByType[t]++
		}
		for _, a := range anomalies {
			s.AnomalousValues++
			s.AnomaliesByType[a.Type]++
		}

	case *StatusEvent:
		s.LastStatusResult = e.Result
		switch e.Result {
		case ResultInvalidChecksumA:
			s.ChecksumAErrors++
		case ResultInvalidChecksumB:
			s.ChecksumBErrors++
		case ResultInvalidType:
			s.InvalidTypes++
		case ResultNoStartPattern:
			s.NoSyncPasses++
		}
		if e.Result == ResultOverflow {
			s.OverflowBytes += uint64(e.Skipped)
		} else {
			s.SkippedBytes += uint64(e.Skipped)
		}
	}

	s.LastUpdateTime = time.Now()
}

// Errors returns the number of rejected frame candidates
func (s *Statistics) Errors() uint64 {
	return s.ChecksumAErrors + s.ChecksumBErrors + s.InvalidTypes
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()+s.AnomalousValues) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	candidates := s.TotalFrames + s.Errors()
	percent := func(n uint64) float64 {
		if candidates == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(candidates)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.TotalFrames, percent(s.TotalFrames))
	for t := MsgFuelVoltage; t <= MsgThermocouple; t++ {
		if s.FramesByType[t] > 0 {
			result += fmt.Sprintf("  %-14s %8d\n", FormatMessageType(t)+":", s.FramesByType[t])
		}
	}

	if s.ChecksumAErrors > 0 {
		result += fmt.Sprintf("Checksum A:      %8d (%.1f%%)\n", s.ChecksumAErrors, percent(s.ChecksumAErrors))
	}
	if s.ChecksumBErrors > 0 {
		result += fmt.Sprintf("Checksum B:      %8d (%.1f%%)\n", s.ChecksumBErrors, percent(s.ChecksumBErrors))
	}
	if s.InvalidTypes > 0 {
		result += fmt.Sprintf("Invalid Types:   %8d (%.1f%%)\n", s.InvalidTypes, percent(s.InvalidTypes))
	}
	if s.NoSyncPasses > 0 {
		result += fmt.Sprintf("No Sync Passes:  %8d\n", s.NoSyncPasses)
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}
	if s.OverflowBytes > 0 {
		result += fmt.Sprintf("Overflow Bytes:  %8d\n", s.OverflowBytes)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", s.AnomalousValues)
		for a := AnomalyHighRPM; a <= AnomalyVoltage; a++ {
			if n := s.AnomaliesByType[a]; n > 0 {
				result += fmt.Sprintf("  %-16s %5d\n", a.String()+":", n)
			}
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

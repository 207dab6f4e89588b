// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

// SyncMode selects which leading bytes the synchronizer accepts as a frame start.
type SyncMode int

const (
	// SyncPreamble accepts the preamble 0x05 0x02 with any third byte and
	// leaves the selector to Classify. 05 02 01 is the type-1 instance.
	SyncPreamble SyncMode = iota
	// SyncStrict accepts only the literal start pattern 05 02 01.
	SyncStrict
)

// String returns the mode name used in configuration files.
func (m SyncMode) String() string {
	switch m {
	case SyncPreamble:
		return "preamble"
	case SyncStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseSyncMode maps a configuration value to a SyncMode.
func ParseSyncMode(s string) (SyncMode, bool) {
	switch s {
	case "", "preamble":
		return SyncPreamble, true
	case "strict":
		return SyncStrict, true
	default:
		return SyncPreamble, false
	}
}

// FindStart scans b for the literal start pattern 05 02 01, discarding one
// leading byte at a time. It returns true with the pattern at offset 0, or
// false once fewer than three bytes remain.
func FindStart(b *Buffer) bool {
	found, _ := SyncStrict.scan(b)
	return found
}

// Scan runs the synchronizer in mode m and returns whether a start was found
// together with the number of bytes discarded on the way.
func (m SyncMode) Scan(b *Buffer) (found bool, skipped int) {
	return m.scan(b)
}

func (m SyncMode) scan(b *Buffer) (bool, int) {
	skipped := 0
	for b.Len() >= StartPatternSize {
		if m.matches(b.At(0), b.At(1), b.At(2)) {
			return true, skipped
		}
		// One byte at a time: a real frame may start inside the garbage
		skipped += b.Discard(1)
	}
	return false, skipped
}

func (m SyncMode) matches(b0, b1, b2 byte) bool {
	if b0 != StartByte0 || b1 != StartByte1 {
		return false
	}
	return m != SyncStrict || b2 == StartByte2
}

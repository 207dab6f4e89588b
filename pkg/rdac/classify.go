// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import "errors"

// Result is the outcome of one pipeline pass over a synchronized buffer.
type Result int

// Pipeline results
const (
	ResultComplete Result = iota
	ResultIncomplete
	ResultInvalidType
	ResultInvalidChecksumA
	ResultInvalidChecksumB
	ResultNoStartPattern
	ResultOverflow
)

// Sentinel errors for the non-complete results
var (
	ErrIncomplete     = errors.New("frame incomplete")
	ErrInvalidType    = errors.New("invalid message type")
	ErrChecksumA      = errors.New("checksum A mismatch")
	ErrChecksumB      = errors.New("checksum B mismatch")
	ErrNoStartPattern = errors.New("no start pattern found")
	ErrOverflow       = errors.New("buffer overflow")
)

// String returns a short name for the result
func (r Result) String() string {
	switch r {
	case ResultComplete:
		return "COMPLETE"
	case ResultIncomplete:
		return "INCOMPLETE"
	case ResultInvalidType:
		return "INVALID_TYPE"
	case ResultInvalidChecksumA:
		return "INVALID_CHECKSUM_A"
	case ResultInvalidChecksumB:
		return "INVALID_CHECKSUM_B"
	case ResultNoStartPattern:
		return "NO_START_PATTERN"
	case ResultOverflow:
		return "OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// Err returns the sentinel error for r, or nil for ResultComplete.
func (r Result) Err() error {
	switch r {
	case ResultIncomplete:
		return ErrIncomplete
	case ResultInvalidType:
		return ErrInvalidType
	case ResultInvalidChecksumA:
		return ErrChecksumA
	case ResultInvalidChecksumB:
		return ErrChecksumB
	case ResultNoStartPattern:
		return ErrNoStartPattern
	case ResultOverflow:
		return ErrOverflow
	default:
		return nil
	}
}

// Invalid reports whether r caused a one-byte discard.
func (r Result) Invalid() bool {
	return r == ResultInvalidType || r == ResultInvalidChecksumA || r == ResultInvalidChecksumB
}

// Classify inspects a buffer whose first three bytes are a frame start.
//
// It reads the type selector at offset 2 and the matching frame length. An
// unknown selector or a checksum mismatch removes exactly one byte from the
// front so the next synchronizer pass rescans. A short buffer is left
// untouched. A complete frame is left in place for Decode to consume.
func Classify(b *Buffer) (Result, MessageType) {
	if b.Len() < StartPatternSize {
		return ResultIncomplete, 0
	}

	msgType := MessageType(b.At(2))
	size := FrameSize(msgType)
	if size == 0 {
		b.Discard(1)
		return ResultInvalidType, msgType
	}

	if b.Len() < size {
		return ResultIncomplete, msgType
	}

	frame := b.Peek(size)
	if frame[size-2] != ChecksumA(frame) {
		b.Discard(1)
		return ResultInvalidChecksumA, msgType
	}
	if frame[size-1] != ChecksumB(frame) {
		b.Discard(1)
		return ResultInvalidChecksumB, msgType
	}

	return ResultComplete, msgType
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

// ChecksumA computes the first trailing checksum of a candidate frame.
// The sum starts at 0x55 and covers frame[2:len(frame)-2], so the type
// selector is included and the two checksum bytes are not.
func ChecksumA(frame []byte) byte {
	return checksum(checksumSeedA, frame)
}

// ChecksumB computes the second trailing checksum of a candidate frame.
// Same span as ChecksumA, seeded with 0xAA.
func ChecksumB(frame []byte) byte {
	return checksum(checksumSeedB, frame)
}

func checksum(seed byte, frame []byte) byte {
	sum := seed
	for i := checksumStart; i < len(frame)-2; i++ {
		sum += frame[i]
	}
	return sum
}

package protocol

// Checksum computes the frame checksum: the wrapping 8-bit sum of every byte
// after the two sync bytes and before the trailing checksum byte, i.e. of
// frame[2:len(frame)-1]. Frames shorter than 3 bytes sum to zero.
func Checksum(frame []byte) byte {
	var sum byte
	for i := 2; i < len(frame)-1; i++ {
		sum += frame[i]
	}
	return sum
}

// VerifyChecksum checks the trailing byte of frame against Checksum(frame).
func VerifyChecksum(frame []byte) error {
	if len(frame) < 3 {
		return ErrFrameSize
	}
	want := Checksum(frame)
	got := frame[len(frame)-1]
	if got != want {
		return &ChecksumError{Expected: want, Actual: got}
	}
	return nil
}

// sealWrite stores the checksum of a write frame at OffsetChecksumWrite.
// The window stops at the checksum byte, so bytes after it are not summed.
func sealWrite(frame []byte) {
	frame[OffsetChecksumWrite] = Checksum(frame[:OffsetChecksumWrite+1])
}

// sealRead stores the checksum of a read frame at OffsetChecksumRead.
func sealRead(frame []byte) {
	frame[OffsetChecksumRead] = Checksum(frame[:OffsetChecksumRead+1])
}

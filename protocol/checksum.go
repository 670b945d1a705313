package protocol

// Checksum calculates the one-byte frame checksum: the XOR of every body byte.
// Any single flipped bit changes the result.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

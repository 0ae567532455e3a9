package modbus

// packBits packs bit values into bytes, least significant bit first, as used by
// coil and discrete input payloads. Unused bits of the last byte are zero.
func packBits(values []bool) []byte {
	packed := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << (i % 8)
		}
	}

	return packed
}

// unpackBits unpacks n bit values from packed. packed must hold at least
// (n+7)/8 bytes.
func unpackBits(packed []byte, n int) []bool {
	values := make([]bool, n)
	for i := range values {
		values[i] = packed[i/8]&(1<<(i%8)) != 0
	}

	return values
}

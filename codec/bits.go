// Package codec implements the Modbus MBAP header and PDU wire format: exact
// big-endian encode/decode of every in-scope function code, plus the byte
// stream framer that assembles complete MBAP frames before the codec ever
// sees them.
package codec

// PackBits packs a sequence of booleans into bytes, LSB-first within each
// byte: bit i occupies byte i/8, position i%8, counted from the
// least-significant bit. Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.1.
func PackBits(values []bool) []byte {
	byteCount := ByteCountForBits(len(values))
	packed := make([]byte, byteCount)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return packed
}

// UnpackBits unpacks quantity bits from packed, LSB-first, discarding
// trailing bits of the final byte beyond quantity.
func UnpackBits(packed []byte, quantity int) []bool {
	values := make([]bool, quantity)
	for i := 0; i < quantity; i++ {
		byteIndex := i / 8
		bitIndex := uint(i % 8)
		values[i] = (packed[byteIndex]>>bitIndex)&0x01 == 1
	}
	return values
}

// ByteCountForBits returns ceil(n/8), the number of octets needed to pack n bits.
func ByteCountForBits(n int) int {
	return (n + 7) / 8
}

// Package leb128 implements LEB128 variable-length integer encoding, as used
// throughout the WebAssembly binary format for indices, counts, and signed
// constants.
package leb128

import "fmt"

// EncodeUint32 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint32(v uint32) []byte {
	return encodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint64(v uint64) []byte {
	return encodeUint64(v)
}

func encodeUint64(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 byte sequence.
func EncodeInt32(v int32) []byte {
	return encodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 byte sequence.
func EncodeInt64(v int64) []byte {
	return encodeInt64(v)
}

func encodeInt64(v int64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the head of buf, returning
// the value, the number of bytes consumed, and an error if buf is truncated
// or the encoded value overflows 32 bits.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUint64(buf, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned LEB128 value from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUint64(buf, 70)
}

func loadUint64(buf []byte, maxBits int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("leb128: unexpected end of buffer")
		}
		b := buf[i]
		if int(shift)+7 > maxBits {
			rest := b & 0x7f
			if int(shift) < maxBits {
				rest >>= uint(maxBits - int(shift))
			}
			if rest != 0 {
				return 0, 0, fmt.Errorf("leb128: value overflows %d bits", maxBits)
			}
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
}

// LoadInt32 decodes a signed LEB128 value from the head of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadInt64(buf, 35)
	if err != nil {
		return 0, 0, err
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed LEB128 value from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadInt64(buf, 70)
}

func loadInt64(buf []byte, size int) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	i := 0
	for {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("leb128: unexpected end of buffer")
		}
		b = buf[i]
		result |= int64(b&0x7f) << shift
		shift += 7
		i++
		if b&0x80 == 0 {
			break
		}
	}
	if int(shift) < size && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, uint64(i), nil
}

package args

import (
	"encoding/binary"
	"math"
)

// Uint32 encodes v as a little-endian argument.
func Uint32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// Int32 encodes v as a little-endian argument.
func Int32(v int32) []byte {
	return Uint32(uint32(v))
}

// Float32 encodes v as a little-endian IEEE 754 argument.
func Float32(v float32) []byte {
	return Uint32(math.Float32bits(v))
}

// Uint32s encodes an array argument.
func Uint32s(vs ...uint32) []byte {
	buf := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

// Words interprets an argument as little-endian uint32 values. Trailing
// bytes that do not form a full word are ignored.
func Words(arg []byte) []uint32 {
	out := make([]uint32, len(arg)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(arg[4*i:])
	}
	return out
}

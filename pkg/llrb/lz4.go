package llrb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Plane blobs carry a one-byte tag so that incompressible data survives the
// round trip as raw little-endian words instead of being lost.
const (
	planeRaw byte = iota
	planeLZ4
)

// packUint32Slice serializes a slice of uint32-s to little-endian bytes.
func packUint32Slice(data []uint32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(data) * uint32ByteSize)

	err := binary.Write(buf, binary.LittleEndian, data)
	doAssert(err == nil, "packing a uint32 plane cannot fail")

	return buf.Bytes()
}

// compressUint32Slice compresses a slice of uint32-s with LZ4, falling back
// to the raw bytes when the block does not shrink.
func compressUint32Slice(data []uint32) []byte {
	src := packUint32Slice(data)

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(src)))
	compressed[0] = planeLZ4

	written, err := lz4.CompressBlock(src, compressed[1:], nil)
	if err != nil || written == 0 {
		raw := make([]byte, 1+len(src))
		raw[0] = planeRaw
		copy(raw[1:], src)

		return raw
	}

	return compressed[:1+written]
}

// decompressUint32Slice reverses compressUint32Slice. result must be
// preallocated to the original element count.
func decompressUint32Slice(data []byte, result []uint32) error {
	if len(data) == 0 {
		return fmt.Errorf("llrb: empty plane blob")
	}

	var raw []byte

	switch payload := data[1:]; data[0] {
	case planeRaw:
		raw = payload
	case planeLZ4:
		raw = make([]byte, len(result)*uint32ByteSize)

		if _, err := lz4.UncompressBlock(payload, raw); err != nil {
			return fmt.Errorf("llrb: decompress plane: %w", err)
		}
	default:
		return fmt.Errorf("llrb: unknown plane tag %d", data[0])
	}

	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, result); err != nil {
		return fmt.Errorf("llrb: unpack plane: %w", err)
	}

	return nil
}

// deltaEncodeUint32Slice replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged. Sorted
// sequences become small, repetitive values that compress better with LZ4.
func deltaEncodeUint32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// deltaDecodeUint32Slice performs a prefix sum to restore original values
// from deltas produced by deltaEncodeUint32Slice, in place.
func deltaDecodeUint32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}

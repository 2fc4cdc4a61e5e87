package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vjranagit/telemetry/pkg/types"
)

var errCorruptBlock = errors.New("corrupt sample block")

// Codec encodes a block of samples into a single zstd frame.
//
// Layout before compression:
//
//	uvarint count
//	varint  first timestamp (unix millis)
//	varint  delta-of-delta per following timestamp
//	uint64  first value bits, then XOR with the previous value bits (little endian)
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec. Levels 1-4 map to zstd fastest, default, better, best.
func NewCodec(level int) (*Codec, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode packs samples, which must be sorted by timestamp
func (c *Codec) Encode(samples []types.Sample) []byte {
	buf := make([]byte, 0, 16+len(samples)*10)
	buf = binary.AppendUvarint(buf, uint64(len(samples)))

	var prev, prevDelta int64
	for i, s := range samples {
		ts := s.Timestamp.UnixMilli()
		if i == 0 {
			buf = binary.AppendVarint(buf, ts)
		} else {
			delta := ts - prev
			buf = binary.AppendVarint(buf, delta-prevDelta)
			prevDelta = delta
		}
		prev = ts
	}

	var prevBits uint64
	for _, s := range samples {
		bits := math.Float64bits(s.Value)
		buf = binary.LittleEndian.AppendUint64(buf, bits^prevBits)
		prevBits = bits
	}

	return c.encoder.EncodeAll(buf, make([]byte, 0, len(buf)))
}

// Decode unpacks a block produced by Encode
func (c *Codec) Decode(data []byte) ([]types.Sample, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, errCorruptBlock
	}
	raw = raw[n:]

	samples := make([]types.Sample, count)
	var prev, prevDelta int64
	for i := range samples {
		v, n := binary.Varint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("%w: timestamp %d", errCorruptBlock, i)
		}
		raw = raw[n:]

		ts := v
		if i > 0 {
			delta := prevDelta + v
			ts = prev + delta
			prevDelta = delta
		}
		samples[i].Timestamp = time.UnixMilli(ts).UTC()
		prev = ts
	}

	if uint64(len(raw)) != count*8 {
		return nil, fmt.Errorf("%w: expected %d value bytes, got %d", errCorruptBlock, count*8, len(raw))
	}
	var prevBits uint64
	for i := range samples {
		bits := binary.LittleEndian.Uint64(raw[i*8:]) ^ prevBits
		samples[i].Value = math.Float64frombits(bits)
		prevBits = bits
	}

	return samples, nil
}

// Close releases the encoder and decoder
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// Package compress implements the self-describing block format used for
// stored posting lists.
//
// Format: [Type uint8][RawSize uint32][StoredSize uint32][Data...]
//
// StoredSize == 0 means Data is stored raw, which also happens when a codec
// does not shrink the block by at least 10%.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block codec.
type Type uint8

const (
	// None stores blocks raw.
	None Type = 0
	// LZ4 favours decode speed.
	LZ4 Type = 1
	// ZSTD favours ratio.
	ZSTD Type = 2
)

// String returns the codec name.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compress(%d)", uint8(t))
	}
}

// Parse returns the Type named s.
func Parse(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown codec %q", s)
	}
}

// ErrCorrupt is returned for blocks that fail header or size checks.
var ErrCorrupt = errors.New("compress: corrupt block")

const headerSize = 9

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode returns data framed as a block compressed with t.
func Encode(data []byte, t Type) ([]byte, error) {
	var packed []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case ZSTD:
		enc := getEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown codec %d", t)
	}

	stored := packed
	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		t, stored = None, nil
	}

	out := make([]byte, headerSize, headerSize+max(len(stored), len(data)))
	out[0] = byte(t)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(stored)))
	if stored == nil {
		return append(out, data...), nil
	}
	return append(out, stored...), nil
}

// Decode returns the raw bytes of a block produced by Encode.
func Decode(block []byte) ([]byte, error) {
	if len(block) < headerSize {
		return nil, ErrCorrupt
	}
	t := Type(block[0])
	rawSize := binary.LittleEndian.Uint32(block[1:])
	storedSize := binary.LittleEndian.Uint32(block[5:])
	body := block[headerSize:]

	if storedSize == 0 {
		if uint32(len(body)) < rawSize {
			return nil, ErrCorrupt
		}
		return body[:rawSize], nil
	}
	if uint32(len(body)) < storedSize {
		return nil, ErrCorrupt
	}
	body = body[:storedSize]
	raw := make([]byte, rawSize)

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, ErrCorrupt
		}
		return raw, nil
	case ZSTD:
		dec := getDecoder()
		defer zstdDecoders.Put(dec)
		decoded, err := dec.DecodeAll(body, raw[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, ErrCorrupt
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrCorrupt, t)
	}
}

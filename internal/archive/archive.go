// Package archive packs saved arena images into a compressed frame for
// transport or cold storage. A packed image must be unpacked before it can
// be loaded or mapped; the arena itself is never compressed in place.
//
// Frame layout (little-endian):
//
//	0x00  'A' 'R' 'P' 'K'
//	0x04  u8  codec
//	0x05  [3] reserved
//	0x08  u64 raw size
//	0x10  u64 payload size
//	0x18  payload
package archive

import (
	"bytes"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/joshuapare/arenakit/internal/buf"
	"github.com/joshuapare/arenakit/internal/format"
)

// Codec identifies the payload compression.
type Codec uint8

const (
	// CodecNone stores the image as is.
	CodecNone Codec = 0
	// CodecLZ4 favours speed.
	CodecLZ4 Codec = 1
	// CodecZstd favours ratio.
	CodecZstd Codec = 2
)

const frameHeaderSize = 0x18

// DefaultMaxImageSize is the largest image Unpack will produce.
const DefaultMaxImageSize int64 = 16 << 30

// lz4 block expansion is bounded by 255 output bytes per input byte, plus
// the final literal run.
const (
	lz4MaxRatio = 255
	lz4Slack    = 16
)

// zstd output is grown as it decodes past this much.
const zstdPrealloc = 64 << 20

var frameMagic = []byte{'A', 'R', 'P', 'K'}

var (
	// ErrBadFrame indicates the input is not a packed arena.
	ErrBadFrame = errors.New("archive: malformed frame")
	// ErrUnknownCodec indicates an unsupported codec id or name.
	ErrUnknownCodec = errors.New("archive: unknown codec")
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCodec maps a codec name to its id.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd", "zst":
		return CodecZstd, nil
	}
	return 0, errors.Wrapf(ErrUnknownCodec, "%q", name)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// getZstdDecoder returns a decoder capped at limit bytes of output. Only
// decoders built for the default limit are pooled.
func getZstdDecoder(limit int64) (*zstd.Decoder, bool, error) {
	if limit == DefaultMaxImageSize {
		if v := zstdDecoderPool.Get(); v != nil {
			return v.(*zstd.Decoder), true, nil
		}
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
	return dec, limit == DefaultMaxImageSize, err
}

// IsPacked reports whether data starts with a frame header.
func IsPacked(data []byte) bool {
	return len(data) >= frameHeaderSize && bytes.Equal(data[:4], frameMagic)
}

// Pack compresses image with codec. If the codec does not shrink the image
// it is stored uncompressed and the frame records CodecNone.
func Pack(image []byte, codec Codec) ([]byte, error) {
	var payload []byte
	switch codec {
	case CodecNone:
	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(image)))
		n, err := lz4.CompressBlock(image, dst, nil)
		if err != nil {
			return nil, errors.Wrap(err, "archive: lz4 compress")
		}
		payload = dst[:n]
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, errors.Wrap(err, "archive: zstd encoder")
		}
		payload = enc.EncodeAll(image, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "id %d", codec)
	}

	if len(payload) == 0 || len(payload) >= len(image) {
		codec, payload = CodecNone, image
	}

	out := make([]byte, frameHeaderSize+len(payload))
	copy(out, frameMagic)
	out[4] = byte(codec)
	format.PutU64(out, 0x08, uint64(len(image)))
	format.PutU64(out, 0x10, uint64(len(payload)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// Unpack reverses Pack and returns the original image, refusing images
// larger than DefaultMaxImageSize.
func Unpack(data []byte) ([]byte, error) {
	return UnpackLimit(data, DefaultMaxImageSize)
}

// UnpackLimit is Unpack with a caller-chosen ceiling on the image size. The
// frame's recorded sizes are checked against the ceiling and the payload
// before anything is allocated.
func UnpackLimit(data []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	if !IsPacked(data) {
		return nil, errors.Wrap(ErrBadFrame, "missing magic")
	}
	codec := Codec(data[4])
	rawSize := int64(format.ReadU64(data, 0x08))
	payloadSize := int64(format.ReadU64(data, 0x10))
	payload, ok := buf.Slice(data, frameHeaderSize, payloadSize)
	if !ok {
		return nil, errors.Wrapf(ErrBadFrame, "payload of %d bytes exceeds frame", payloadSize)
	}
	if rawSize < 0 || rawSize > limit {
		return nil, errors.Wrapf(ErrBadFrame, "raw size %d outside [0, %d]", rawSize, limit)
	}

	switch codec {
	case CodecNone:
		if payloadSize != rawSize {
			return nil, errors.Wrap(ErrBadFrame, "stored size mismatch")
		}
		return append([]byte(nil), payload...), nil
	case CodecLZ4:
		if rawSize > lz4MaxRatio*payloadSize+lz4Slack {
			return nil, errors.Wrapf(ErrBadFrame, "raw size %d cannot come from %d bytes of lz4", rawSize, payloadSize)
		}
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, errors.Wrap(err, "archive: lz4 decompress")
		}
		if int64(n) != rawSize {
			return nil, errors.Wrap(ErrBadFrame, "decompressed size mismatch")
		}
		return out, nil
	case CodecZstd:
		dec, pooled, err := getZstdDecoder(limit)
		if err != nil {
			return nil, errors.Wrap(err, "archive: zstd decoder")
		}
		if pooled {
			defer zstdDecoderPool.Put(dec)
		} else {
			defer dec.Close()
		}
		out, err := dec.DecodeAll(payload, make([]byte, 0, min(rawSize, zstdPrealloc)))
		if err != nil {
			return nil, errors.Wrap(err, "archive: zstd decompress")
		}
		if int64(len(out)) != rawSize {
			return nil, errors.Wrap(ErrBadFrame, "decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "id %d", codec)
	}
}

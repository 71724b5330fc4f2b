// Package snapshot persists trees of packedint arrays.
//
// A snapshot file starts with a fixed 32-byte header followed by the body,
// the concatenated array regions. Refs stored in the arrays are byte offsets
// into header and body together, so an uncompressed snapshot can be memory
// mapped and used as the read-only image of an alloc.Slab without any
// translation. Compressed snapshots are decompressed into memory when loaded.
//
// Header layout (little-endian):
//
//	0  magic "PKIA"
//	4  format version (uint16)
//	6  body compression (uint8)
//	7  reserved
//	8  top ref (uint64)
//	16 uncompressed body length (uint64)
//	24 CRC-32 (IEEE) of the uncompressed body (uint32)
//	28 reserved
package snapshot

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/Akron/packedint/alloc"
)

// HeaderSize is the size of the file header. The first region of a snapshot
// starts right after it.
const HeaderSize = 32

// Version is the format version written by this package.
const Version = 1

var magic = [4]byte{'P', 'K', 'I', 'A'}

var (
	// ErrBadMagic is returned for data that is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrVersion is returned for snapshots of an unknown format version.
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrTruncated is returned when the body is shorter than the header says.
	ErrTruncated = errors.New("snapshot: truncated")
	// ErrChecksum is returned when the body does not match its checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrCompression is returned for unknown codecs and undecodable bodies.
	ErrCompression = errors.New("snapshot: compression")
	// ErrCorrupt is returned when the header points outside the body.
	ErrCorrupt = errors.New("snapshot: corrupt")
)

// Compression selects the codec used for the snapshot body.
type Compression uint8

const (
	// CompressionNone stores the body as is. Only uncompressed snapshots can
	// be memory mapped.
	CompressionNone Compression = iota
	// CompressionLZ4 stores the body as one LZ4 block.
	CompressionLZ4
	// CompressionZstd stores the body as one zstd frame.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return "unknown"
}

type fileHeader struct {
	version     uint16
	compression Compression
	top         alloc.Ref
	bodyLen     uint64
	checksum    uint32
}

func (h fileHeader) encode(dst []byte) {
	_ = dst[HeaderSize-1]
	copy(dst[0:4], magic[:])
	binary.LittleEndian.PutUint16(dst[4:], h.version)
	dst[6] = byte(h.compression)
	dst[7] = 0
	binary.LittleEndian.PutUint64(dst[8:], uint64(h.top))
	binary.LittleEndian.PutUint64(dst[16:], h.bodyLen)
	binary.LittleEndian.PutUint32(dst[24:], h.checksum)
	binary.LittleEndian.PutUint32(dst[28:], 0)
}

func decodeHeader(src []byte) (fileHeader, error) {
	if len(src) < HeaderSize {
		return fileHeader{}, errors.Wrapf(ErrTruncated, "%d header bytes", len(src))
	}
	if !bytes.Equal(src[0:4], magic[:]) {
		return fileHeader{}, ErrBadMagic
	}
	h := fileHeader{
		version:     binary.LittleEndian.Uint16(src[4:]),
		compression: Compression(src[6]),
		top:         alloc.Ref(binary.LittleEndian.Uint64(src[8:])),
		bodyLen:     binary.LittleEndian.Uint64(src[16:]),
		checksum:    binary.LittleEndian.Uint32(src[24:]),
	}
	if h.version != Version {
		return fileHeader{}, errors.Wrapf(ErrVersion, "version %d", h.version)
	}
	if h.compression > CompressionZstd {
		return fileHeader{}, errors.Wrapf(ErrCompression, "codec %d", h.compression)
	}
	if h.bodyLen&7 != 0 {
		return fileHeader{}, errors.Wrapf(ErrCorrupt, "body length %d not aligned", h.bodyLen)
	}
	if !h.top.IsAligned() || (!h.top.IsNull() && (uint64(h.top) < HeaderSize || uint64(h.top) >= HeaderSize+h.bodyLen)) {
		return fileHeader{}, errors.Wrapf(ErrCorrupt, "top ref %d outside body", h.top)
	}
	return h, nil
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool

	zstdEncoderOptions = []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedDefault)}
	zstdDecoderOptions []zstd.DOption
)

func newZstdEncoder() (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstdEncoderOptions...)
	if err != nil {
		return nil, errors.Wrap(ErrCompression, "zstd encoder: "+err.Error())
	}
	return enc, nil
}

func newZstdDecoder() (*zstd.Decoder, error) {
	dec, err := zstd.NewReader(nil, zstdDecoderOptions...)
	if err != nil {
		return nil, errors.Wrap(ErrCompression, "zstd decoder: "+err.Error())
	}
	return dec, nil
}

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return newZstdEncoder()
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return newZstdDecoder()
}

// compressBody encodes body with codec c.
func compressBody(body []byte, c Compression) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(body)))
		n, err := lz4.CompressBlock(body, dst, nil)
		if err != nil {
			return nil, errors.Wrap(ErrCompression, err.Error())
		}
		if n == 0 {
			return nil, errors.Wrapf(ErrCompression, "lz4: %d bytes incompressible", len(body))
		}
		return dst[:n], nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(body, nil), nil
	}
	return nil, errors.Wrapf(ErrCompression, "codec %d", c)
}

// decompressBody decodes a body of bodyLen bytes encoded with codec c.
func decompressBody(data []byte, c Compression, bodyLen uint64) ([]byte, error) {
	if bodyLen != uint64(int(bodyLen)) {
		return nil, errors.Wrapf(alloc.ErrOutOfMemory, "body of %d bytes", bodyLen)
	}
	if bodyLen == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		if uint64(len(data)) < bodyLen {
			return nil, errors.Wrapf(ErrTruncated, "%d of %d body bytes", len(data), bodyLen)
		}
		return data[:bodyLen], nil
	case CompressionLZ4:
		body := make([]byte, bodyLen)
		n, err := lz4.UncompressBlock(data, body)
		if err != nil {
			return nil, errors.Wrap(ErrCompression, err.Error())
		}
		if uint64(n) != bodyLen {
			return nil, errors.Wrapf(ErrTruncated, "lz4: %d of %d body bytes", n, bodyLen)
		}
		return body, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		body, err := dec.DecodeAll(data, make([]byte, 0, bodyLen))
		if err != nil {
			return nil, errors.Wrap(ErrCompression, err.Error())
		}
		if uint64(len(body)) != bodyLen {
			return nil, errors.Wrapf(ErrTruncated, "zstd: %d of %d body bytes", len(body), bodyLen)
		}
		return body, nil
	}
	return nil, errors.Wrapf(ErrCompression, "codec %d", c)
}

// decodeImage validates a complete snapshot and returns its header and the
// image that refs address (header plus uncompressed body). Uncompressed
// snapshots are returned without copying.
func decodeImage(data []byte) (fileHeader, []byte, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return fileHeader{}, nil, err
	}
	var image []byte
	if h.compression == CompressionNone {
		if uint64(len(data)-HeaderSize) < h.bodyLen {
			return fileHeader{}, nil, errors.Wrapf(ErrTruncated, "%d of %d body bytes", len(data)-HeaderSize, h.bodyLen)
		}
		image = data[:HeaderSize+int(h.bodyLen)]
	} else {
		body, err := decompressBody(data[HeaderSize:], h.compression, h.bodyLen)
		if err != nil {
			return fileHeader{}, nil, err
		}
		image = make([]byte, HeaderSize+len(body))
		copy(image, data[:HeaderSize])
		copy(image[HeaderSize:], body)
	}
	if sum := crc32.ChecksumIEEE(image[HeaderSize:]); sum != h.checksum {
		return fileHeader{}, nil, errors.Wrapf(ErrChecksum, "stored %08x, computed %08x", h.checksum, sum)
	}
	return h, image, nil
}

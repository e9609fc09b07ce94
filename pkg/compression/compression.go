// Package compression provides the payload compressors used by the frame
// codec. Every frame payload is stored compressed with one of the supported
// algorithms; the algorithm is recorded in the frame header as a one-byte
// codec id so readers need no out-of-band knowledge.
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd.
// Compression ratio (best to worst): Zstd > Snappy/S2 > LZ4.
package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/pool"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Wire codec ids. These are part of the frame format and must never be
// renumbered.
const (
	codecNone   uint8 = 0
	codecSnappy uint8 = 1
	codecLZ4    uint8 = 2
	codecZstd   uint8 = 3
	codecS2     uint8 = 4
)

// CodecID returns the wire id for an algorithm.
func CodecID(a Algorithm) (uint8, error) {
	switch a {
	case None:
		return codecNone, nil
	case Snappy:
		return codecSnappy, nil
	case LZ4:
		return codecLZ4, nil
	case Zstd:
		return codecZstd, nil
	case S2:
		return codecS2, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

// AlgorithmForID returns the algorithm for a wire codec id.
func AlgorithmForID(id uint8) (Algorithm, error) {
	switch id {
	case codecNone:
		return None, nil
	case codecSnappy:
		return Snappy, nil
	case codecLZ4:
		return LZ4, nil
	case codecZstd:
		return Zstd, nil
	case codecS2:
		return S2, nil
	default:
		return "", errors.Newf(errors.ErrorTypeFormat, "unknown compression codec id: %d", id)
	}
}

// ParseAlgorithm parses a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case None, Snappy, LZ4, Zstd, S2:
		return Algorithm(s), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %q", s)
	}
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	// The input data is not modified.
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
}

// DefaultConfig returns the default compression configuration: snappy, which
// is fast with decent compression on fixed-width numeric payloads.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Snappy,
		Level:     Default,
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None:
		return &noneCompressor{}, nil
	case Snappy:
		return &snappyCompressor{}, nil
	case LZ4:
		return newLZ4Compressor(config), nil
	case Zstd:
		return newZstdCompressor(config)
	case S2:
		return &s2Compressor{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", config.Algorithm)
	}
}

// ForID returns a compressor for a wire codec id.
func ForID(id uint8) (Compressor, error) {
	alg, err := AlgorithmForID(id)
	if err != nil {
		return nil, err
	}
	return NewCompressor(&Config{Algorithm: alg, Level: Default})
}

// None compressor (no compression)
type noneCompressor struct{}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (nc *noneCompressor) Algorithm() Algorithm                   { return None }

// Snappy compressor
type snappyCompressor struct{}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "snappy payload corrupt")
	}
	return out, nil
}

func (sc *snappyCompressor) Algorithm() Algorithm { return Snappy }

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct{}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "s2 payload corrupt")
	}
	return out, nil
}

func (sc *s2Compressor) Algorithm() Algorithm { return S2 }

// LZ4 compressor
type lz4Compressor struct {
	level lz4.CompressionLevel
}

func newLZ4Compressor(config *Config) *lz4Compressor {
	return &lz4Compressor{level: mapLZ4Level(config.Level)}
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "lz4 payload corrupt")
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (lc *lz4Compressor) Algorithm() Algorithm { return LZ4 }

// Zstd compressor
type zstdCompressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(config *Config) (*zstdCompressor, error) {
	level := mapZstdLevel(config.Level)

	zc := &zstdCompressor{}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "zstd payload corrupt")
	}
	return out, nil
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

// Helper functions to map compression levels

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

package pdfunlock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Function variables for testing injection.
var (
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	readAll       = io.ReadAll
)

// moduleSource yields the raw (possibly compressed) codec binary plus a
// name used for encoding detection.
type moduleSource interface {
	fetch(ctx context.Context, hc *http.Client) (data []byte, name string, err error)
}

type bytesSource struct{ data []byte }

func (s bytesSource) fetch(context.Context, *http.Client) ([]byte, string, error) {
	if len(s.data) == 0 {
		return nil, "", fmt.Errorf("%w: empty module bytes", ErrCodecUnavailable)
	}
	return s.data, "", nil
}

type fileSource struct{ path string }

func (s fileSource) fetch(context.Context, *http.Client) ([]byte, string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read module: %v", ErrCodecUnavailable, err)
	}
	return b, s.path, nil
}

type urlSource struct{ url string }

func (s urlSource) fetch(ctx context.Context, hc *http.Client) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCodecUnavailable, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetch module: %v", ErrCodecUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: fetch module: status %s", ErrCodecUnavailable, resp.Status)
	}
	b, err := readAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetch module: %v", ErrCodecUnavailable, err)
	}
	return b, s.url, nil
}

// Frame magics for encoding detection.
var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

func detectEncoding(data []byte, name string) ModuleEncoding {
	switch {
	case bytes.HasPrefix(data, wasmMagic[:]):
		return EncodingNone
	case bytes.HasPrefix(data, zstdMagic):
		return EncodingZstd
	case bytes.HasPrefix(data, lz4Magic):
		return EncodingLZ4
	case strings.HasSuffix(name, ".br"):
		// Brotli streams carry no magic.
		return EncodingBrotli
	default:
		return EncodingNone
	}
}

// decodeModule decompresses the raw source bytes per enc and validates the
// result is a core wasm module. maxSize bounds the decompressed output to
// keep a hostile payload from exhausting memory.
func decodeModule(data []byte, name string, enc ModuleEncoding, maxSize uint64) ([]byte, error) {
	if enc == EncodingAuto {
		enc = detectEncoding(data, name)
	}
	var out []byte
	var err error
	switch enc {
	case EncodingNone:
		out = data
	case EncodingZstd:
		out, err = zstdDecompress(data, maxSize)
	case EncodingLZ4:
		out, err = lz4Decompress(data, maxSize)
	case EncodingBrotli:
		out, err = brotliDecompress(data, maxSize)
	default:
		return nil, fmt.Errorf("%w: unknown module encoding %d", ErrCodecUnavailable, enc)
	}
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: module exceeds %d bytes", ErrCodecUnavailable, maxSize)
	}
	if !bytes.HasPrefix(out, wasmMagic[:]) {
		return nil, fmt.Errorf("%w: not a wasm module", ErrCodecUnavailable)
	}
	return out, nil
}

// zstdDecompress decompresses Zstandard-compressed data, rejecting output
// larger than maxSize.
func zstdDecompress(in []byte, maxSize uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecUnavailable, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCodecUnavailable, err)
	}
	if uint64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: zstd module exceeds %d bytes", ErrCodecUnavailable, maxSize)
	}
	return out, nil
}

// lz4Decompress decompresses LZ4-compressed data through a LimitReader so
// a bomb cannot expand past maxSize.
func lz4Decompress(in []byte, maxSize uint64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	b, err := readAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrCodecUnavailable, err)
	}
	if uint64(len(b)) > maxSize {
		return nil, fmt.Errorf("%w: lz4 module exceeds %d bytes", ErrCodecUnavailable, maxSize)
	}
	return b, nil
}

// brotliDecompress decompresses Brotli-compressed data under the same
// LimitReader discipline.
func brotliDecompress(in []byte, maxSize uint64) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	b, err := readAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: brotli: %v", ErrCodecUnavailable, err)
	}
	if uint64(len(b)) > maxSize {
		return nil, fmt.Errorf("%w: brotli module exceeds %d bytes", ErrCodecUnavailable, maxSize)
	}
	return b, nil
}

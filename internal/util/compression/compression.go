// Package compression holds the codecs the sqlite and file slot stores apply
// to autosave payloads.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

const (
	NameNone = "none"
	NameGzip = "gzip"
	NameZstd = "zstd"
)

// ByName returns the compressor configured under storage.compression.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", NameNone:
		return NoneCompressor{}, nil
	case NameGzip:
		return GzipCompressor{}, nil
	case NameZstd:
		return ZstdCompressor{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}

// NoneCompressor passes bytes through unchanged.
type NoneCompressor struct{}

func (NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (NoneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

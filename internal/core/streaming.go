package core

// streaming.go turns an uploaded file into a stream of UTF-8 GEDCOM
// records without loading it into memory:
//
//	raw bytes -> StreamingCountingReader (progress)
//	          -> gzip / zstd decompression, detected by magic number
//	          -> charset decoding from the header CHAR line
//	          -> StreamingUTF8Sanitizer
//	          -> gedcom.NewRecordScanner
//
// Use OpenStream to apply the transforms in this order.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"unicode/utf8"

	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Stream is an opened GEDCOM upload.
type Stream struct {
	// Records yields one raw record per Scan.
	Records *bufio.Scanner
	// Charset is the character set the file declared.
	Charset gedcom.Charset
	// Counter tracks compressed bytes consumed, for progress.
	Counter *StreamingCountingReader
	// Compression is "gzip", "zstd" or "".
	Compression string

	closer func()
}

// Close releases decompressor resources. It does not close the source.
func (s *Stream) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// OpenStream wraps r, whose size is totalSize bytes (0 if unknown), for
// record-by-record reading.
func OpenStream(r io.Reader, totalSize int64) (*Stream, error) {
	counter := NewStreamingCountingReader(r, totalSize)
	plain, compression, closer, err := Decompress(counter)
	if err != nil {
		return nil, err
	}

	decoded, cs, err := gedcom.DecodeStream(plain)
	if err != nil {
		closer()
		return nil, fmt.Errorf("read header: %w", err)
	}

	return &Stream{
		Records:     gedcom.NewRecordScanner(NewStreamingUTF8Sanitizer(decoded)),
		Charset:     cs,
		Counter:     counter,
		Compression: compression,
		closer:      closer,
	}, nil
}

// Decompress returns a reader over the decompressed content of r when it
// starts with a gzip or zstd header, and r itself otherwise.
func Decompress(r io.Reader) (io.Reader, string, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, "", nil, fmt.Errorf("decompress: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", nil, fmt.Errorf("decompress: %w", err)
		}
		return zr, "gzip", func() { _ = zr.Close() }, nil

	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, "", nil, fmt.Errorf("decompress: %w", err)
		}
		return &decompressErrReader{zr}, "zstd", zr.Close, nil
	}
	return br, "", func() {}, nil
}

// decompressErrReader labels zstd stream errors so they map to FILE004.
type decompressErrReader struct {
	r io.Reader
}

func (d *decompressErrReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("decompress: %w", err)
	}
	return n, err
}

// StreamingUTF8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly.
// Decoded GEDCOM can still carry stray bytes when a file lies about its
// CHAR; one byte in, one byte out keeps the buffer arithmetic simple.
type StreamingUTF8Sanitizer struct {
	reader io.Reader

	// Leftover bytes from the previous read that may start a multi-byte sequence.
	pending []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isAllASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, a truncated sequence at the end is held back.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[read:]) {
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// StreamingCountingReader tracks bytes read. BytesRead may be called from
// other goroutines while reading is in progress.
type StreamingCountingReader struct {
	reader io.Reader
	read   atomic.Int64
	Total  int64 // 0 if unknown
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *StreamingCountingReader) BytesRead() int64 {
	return r.read.Load()
}

// Progress returns the read progress as a percentage (0-100), or 0 if the
// total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	p := int(r.BytesRead() * 100 / r.Total)
	if p > 100 {
		p = 100
	}
	return p
}

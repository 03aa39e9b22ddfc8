package source

import (
	"errors"
	"io"
)

// ErrFileTooLarge is returned once a SizeLimitReader passes its limit.
var ErrFileTooLarge = errors.New("file too large")

// SizeLimitReader wraps an io.Reader to track bytes read and stop at a limit.
// Unlike io.LimitReader it fails loudly, so a truncated file is never parsed
// as if it were complete.
type SizeLimitReader struct {
	reader    io.Reader
	BytesRead int64
	Max       int64 // 0 means unlimited
}

// NewSizeLimitReader creates a reader that fails after max bytes.
func NewSizeLimitReader(r io.Reader, max int64) *SizeLimitReader {
	return &SizeLimitReader{
		reader: r,
		Max:    max,
	}
}

// Read implements io.Reader.
func (r *SizeLimitReader) Read(p []byte) (int, error) {
	if r.Max > 0 {
		remaining := r.Max - r.BytesRead + 1
		if remaining <= 0 {
			return 0, ErrFileTooLarge
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}

	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Max > 0 && r.BytesRead > r.Max {
		return n, ErrFileTooLarge
	}
	return n, err
}

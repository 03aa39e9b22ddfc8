package source

// encoding.go decodes client files into UTF-8 before parsing.
//
// UTF-8 input goes through the UTF8BOM decoder, which drops a leading byte
// order mark (common in files exported from Excel on Windows) and replaces
// invalid byte sequences with U+FFFD instead of failing the whole file.
// Any other charset is looked up by its IANA name or alias, so client configs
// can say "latin1", "ISO-8859-1" or "windows-1252" interchangeably.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lookupEncoding resolves a charset name to an encoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("encoding error: unknown encoding %q", name)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding error: unsupported encoding %q", name)
	}
	return enc, nil
}

// decodeReader wraps r so that it yields UTF-8 text.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

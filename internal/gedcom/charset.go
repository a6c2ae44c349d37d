package gedcom

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Charset is the character set named by the header's CHAR line.
type Charset string

const (
	CharsetUTF8      Charset = "UTF-8"
	CharsetUTF16     Charset = "UNICODE"
	CharsetANSEL     Charset = "ANSEL"
	CharsetASCII     Charset = "ASCII"
	CharsetCP1252    Charset = "ANSI"
	CharsetLatin1    Charset = "ISO-8859-1"
	CharsetCP437     Charset = "IBMPC"
	CharsetCP850     Charset = "CP850"
	CharsetMacintosh Charset = "MACINTOSH"
)

// sniffSize bounds how far into the file the HEAD record is looked for.
const sniffSize = 64 << 10

var charLineRE = regexp.MustCompile(`[\r\n]1 CHAR(?:ACTER)? +([^\r\n]+)`)

// DetectCharset reads the CHAR value from the start of a file. Files with
// no CHAR line are assumed to be UTF-8.
func DetectCharset(head []byte) Charset {
	m := charLineRE.FindSubmatch(head)
	if m == nil {
		return CharsetUTF8
	}
	switch strings.ToUpper(strings.TrimSpace(string(m[1]))) {
	case "ANSEL":
		return CharsetANSEL
	case "ASCII":
		return CharsetASCII
	case "ANSI", "WINDOWS", "WINDOWS-1252", "CP1252", "IBM WINDOWS":
		return CharsetCP1252
	case "ISO-8859-1", "ISO8859-1", "ISO-8859", "LATIN1", "LATIN-1":
		return CharsetLatin1
	case "IBMPC", "IBM DOS", "MSDOS", "CP437":
		return CharsetCP437
	case "CP850", "IBM850":
		return CharsetCP850
	case "MACINTOSH", "MACROMAN":
		return CharsetMacintosh
	case "UNICODE", "UTF-16", "UTF16":
		return CharsetUTF16
	}
	return CharsetUTF8
}

// Decoder returns the transformer converting cs to UTF-8, or nil when the
// bytes are already UTF-8.
func Decoder(cs Charset) transform.Transformer {
	switch cs {
	case CharsetANSEL:
		return transform.Chain(newANSELDecoder(), norm.NFC)
	case CharsetASCII, CharsetCP1252:
		// ASCII exports frequently carry stray Windows-1252 bytes.
		return charmap.Windows1252.NewDecoder()
	case CharsetLatin1:
		return charmap.ISO8859_1.NewDecoder()
	case CharsetCP437:
		return charmap.CodePage437.NewDecoder()
	case CharsetCP850:
		return charmap.CodePage850.NewDecoder()
	case CharsetMacintosh:
		return charmap.Macintosh.NewDecoder()
	}
	return nil
}

// DecodeStream returns a UTF-8 view of a GEDCOM file along with the
// character set it was declared in. UTF-16 is recognized by its byte order
// mark or by the zero byte next to the leading "0"; other encodings come
// from the header's CHAR line. Invalid UTF-8 is passed through untouched so
// the caller can choose how to sanitize it.
func DecodeStream(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	first, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", err
	}

	var ur io.Reader
	utf16 := false
	switch {
	case len(first) == 2 && first[0] == '0' && first[1] == 0:
		ur = transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
		utf16 = true
	case len(first) == 2 && first[0] == 0 && first[1] == '0':
		ur = transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
		utf16 = true
	case len(first) == 2 && (bytes.Equal(first, []byte{0xFF, 0xFE}) || bytes.Equal(first, []byte{0xFE, 0xFF})):
		ur = transform.NewReader(br, unicode.BOMOverride(transform.Nop))
		utf16 = true
	default:
		ur = transform.NewReader(br, unicode.BOMOverride(transform.Nop))
	}

	hr := bufio.NewReaderSize(ur, sniffSize)
	head, err := hr.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", err
	}

	if utf16 {
		return hr, CharsetUTF16, nil
	}
	cs := DetectCharset(head)
	if cs == CharsetUTF16 {
		// Declared UNICODE but no UTF-16 markers: treat as UTF-8.
		cs = CharsetUTF8
	}
	if dec := Decoder(cs); dec != nil {
		return transform.NewReader(hr, dec), cs, nil
	}
	return hr, cs, nil
}

// MarkUTF8 rewrites the CHAR line of a decoded header record, since the
// stored text is always UTF-8.
func MarkUTF8(rec string) string {
	return charLineRE.ReplaceAllString(rec, "\n1 CHAR UTF-8")
}

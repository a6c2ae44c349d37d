package gedcom

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// XrefPattern matches the body of a cross-reference id (without the @ signs).
const XrefPattern = `[A-Za-z0-9:_-]+`

// TagPattern matches a GEDCOM tag, including underscore-prefixed custom tags.
const TagPattern = `[_A-Z][_A-Z0-9]*`

// ErrInvalidRecord is returned when a record has no recognizable level-0 line.
var ErrInvalidRecord = errors.New("invalid GEDCOM record")

var (
	xrefHeaderRE   = regexp.MustCompile(`^0 @(` + XrefPattern + `)@ (` + TagPattern + `)`)
	pseudoHeaderRE = regexp.MustCompile(`^0 (` + TagPattern + `)`)
)

// Header identifies a record: its cross-reference id and record type.
// Records without an id (HEAD, TRLR, SUBN) use the type as the id.
type Header struct {
	Xref    string
	Type    string
	HasXref bool
}

// ParseHeader reads the level-0 line of a canonical record.
func ParseHeader(rec string) (Header, error) {
	if m := xrefHeaderRE.FindStringSubmatch(rec); m != nil {
		return Header{Xref: m[1], Type: m[2], HasXref: true}, nil
	}
	if m := pseudoHeaderRE.FindStringSubmatch(rec); m != nil {
		return Header{Xref: m[1], Type: m[1]}, nil
	}
	return Header{}, ErrInvalidRecord
}

// ParseXrefHeader is the strict form of ParseHeader used when editing
// existing records: the level-0 line must carry an xref.
func ParseXrefHeader(rec string) (Header, error) {
	m := xrefHeaderRE.FindStringSubmatch(rec)
	if m == nil {
		return Header{}, ErrInvalidRecord
	}
	return Header{Xref: m[1], Type: m[2], HasXref: true}, nil
}

// FirstValue returns the value of the first line "\n<level> <tag> value".
func FirstValue(rec string, level int, tag string) (string, bool) {
	needle := "\n" + strconv.Itoa(level) + " " + tag + " "
	i := strings.Index(rec, needle)
	if i < 0 {
		return "", false
	}
	v := rec[i+len(needle):]
	if j := strings.IndexByte(v, '\n'); j >= 0 {
		v = v[:j]
	}
	if v == "" {
		return "", false
	}
	return v, true
}

// collapseSpaces trims s and replaces runs of spaces with a single space.
func collapseSpaces(s string) string {
	s = strings.TrimSpace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

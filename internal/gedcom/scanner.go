package gedcom

import (
	"bufio"
	"io"
)

// MaxRecordSize bounds a single record. Notes with embedded images can be
// large, so this is generous.
const MaxRecordSize = 16 << 20

// NewRecordScanner splits a decoded GEDCOM stream into records. A record
// starts at a line whose level is 0; LF, CRLF and bare CR line endings are
// all accepted. Line endings between records are dropped.
func NewRecordScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), MaxRecordSize)
	s.Split(splitRecords)
	return s
}

func splitRecords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isLineBreak(data[start]) {
		start++
	}
	if start == len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	for i := start; i < len(data); i++ {
		if !isLineBreak(data[i]) {
			continue
		}
		j := i
		for j < len(data) && isLineBreak(data[j]) {
			j++
		}
		if j == len(data) {
			if !atEOF {
				return start, nil, nil
			}
			return len(data), data[start:i], nil
		}
		if startsLevelZero(data[j:]) {
			return j, data[start:i], nil
		}
		if !atEOF && needsMore(data[j:]) {
			return start, nil, nil
		}
		i = j - 1
	}

	if atEOF {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

func isLineBreak(c byte) bool {
	return c == '\n' || c == '\r'
}

// startsLevelZero reports whether a line begins "0" followed by a space or
// tab, allowing leading blanks.
func startsLevelZero(b []byte) bool {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i+1 < len(b) && b[i] == '0' && (b[i+1] == ' ' || b[i+1] == '\t')
}

// needsMore reports whether b is too short to decide startsLevelZero.
func needsMore(b []byte) bool {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i+1 >= len(b)
}

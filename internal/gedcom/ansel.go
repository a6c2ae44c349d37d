package gedcom

import (
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// ANSEL (ANSI Z39.47) is the GEDCOM 5.5 default character set. Bytes below
// 0x80 are ASCII; 0xA1-0xCF are spacing characters; 0xE0-0xFE are
// combining diacritics that precede their base letter, the reverse of
// Unicode order.

var anselSpacing = map[byte]rune{
	0xA1: '\u0141', 0xA2: '\u00D8', 0xA3: '\u0110', 0xA4: '\u00DE', 0xA5: '\u00C6',
	0xA6: '\u0152', 0xA7: '\u02B9', 0xA8: '\u00B7', 0xA9: '\u266D', 0xAA: '\u00AE',
	0xAB: '\u00B1', 0xAC: '\u01A0', 0xAD: '\u01AF', 0xAE: '\u02BC', 0xB0: '\u02BB',
	0xB1: '\u0142', 0xB2: '\u00F8', 0xB3: '\u0111', 0xB4: '\u00FE', 0xB5: '\u00E6',
	0xB6: '\u0153', 0xB7: '\u02BA', 0xB8: '\u0131', 0xB9: '\u00A3', 0xBA: '\u00F0',
	0xBC: '\u01A1', 0xBD: '\u01B0', 0xBE: '\u25A1', 0xBF: '\u25A0', 0xC0: '\u00B0',
	0xC1: '\u2113', 0xC2: '\u2117', 0xC3: '\u00A9', 0xC4: '\u266F', 0xC5: '\u00BF',
	0xC6: '\u00A1', 0xC7: '\u00DF', 0xC8: '\u20AC', 0xCF: '\u00DF',
}

var anselCombining = map[byte]rune{
	0xE0: '\u0309', 0xE1: '\u0300', 0xE2: '\u0301', 0xE3: '\u0302', 0xE4: '\u0303',
	0xE5: '\u0304', 0xE6: '\u0306', 0xE7: '\u0307', 0xE8: '\u0308', 0xE9: '\u030C',
	0xEA: '\u030A', 0xEB: '\uFE20', 0xEC: '\uFE21', 0xED: '\u0315', 0xEE: '\u030B',
	0xEF: '\u0310', 0xF0: '\u0327', 0xF1: '\u0328', 0xF2: '\u0323', 0xF3: '\u0324',
	0xF4: '\u0325', 0xF5: '\u0333', 0xF6: '\u0332', 0xF7: '\u0326', 0xF8: '\u031C',
	0xF9: '\u032E', 0xFA: '\uFE22', 0xFB: '\uFE23', 0xFE: '\u0313',
}

// anselDecoder converts ANSEL to UTF-8 in decomposed form; chain it with
// norm.NFC to get composed characters.
type anselDecoder struct {
	marks []rune
}

func newANSELDecoder() *anselDecoder {
	return &anselDecoder{}
}

func (d *anselDecoder) Reset() {
	d.marks = d.marks[:0]
}

func (d *anselDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if mark, ok := anselCombining[c]; ok {
			d.marks = append(d.marks, mark)
			nSrc++
			continue
		}

		r := rune(c)
		if c >= 0x80 {
			var ok bool
			if r, ok = anselSpacing[c]; !ok {
				r = utf8.RuneError
			}
		}

		if nDst+utf8.RuneLen(r)+d.marksLen() > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nDst += d.flushMarks(dst[nDst:])
		nSrc++
	}

	if atEOF && len(d.marks) > 0 {
		if nDst+d.marksLen() > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += d.flushMarks(dst[nDst:])
	}
	return nDst, nSrc, nil
}

func (d *anselDecoder) marksLen() int {
	n := 0
	for _, m := range d.marks {
		n += utf8.RuneLen(m)
	}
	return n
}

func (d *anselDecoder) flushMarks(dst []byte) int {
	n := 0
	for _, m := range d.marks {
		n += utf8.EncodeRune(dst[n:], m)
	}
	d.marks = d.marks[:0]
	return n
}

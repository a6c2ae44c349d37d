package gedcom

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ReformatOptions carries the tree settings that influence reformatting.
type ReformatOptions struct {
	// WordWrappedNotes inserts a space when merging CONC lines, for files
	// whose exporter split long values at word boundaries.
	WordWrappedNotes bool

	// MediaPath is stripped from the start of FILE values.
	MediaPath string
}

// Line is one parsed GEDCOM line.
type Line struct {
	Level int
	Xref  string // only kept on level-0 lines
	Tag   string
	Value string
}

// String renders the line in canonical form. An empty NOTE keeps its
// trailing space so merged CONC text lands after it.
func (l Line) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(l.Level))
	b.WriteByte(' ')
	if l.Level == 0 && l.Xref != "" {
		b.WriteString(l.Xref)
		b.WriteByte(' ')
	}
	b.WriteString(l.Tag)
	if l.Value != "" || l.Tag == "NOTE" {
		b.WriteByte(' ')
		b.WriteString(l.Value)
	}
	return b.String()
}

var (
	rawLineRE = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]*(@[^@]*@)?[ \t]*(\w+)[ \t]?(.*)$`)
	commaRE   = regexp.MustCompile(` *, *`)

	// The Master Genealogist appends coordinates to the place name,
	// e.g. "Pennsylvania, USA, 395945N0751013W".
	tmgCoordsRE = regexp.MustCompile(`^(.*), (\d\d)(\d\d)(\d\d)([NS])(\d\d\d)(\d\d)(\d\d)([EW])$`)
)

var formattingRunes = strings.NewReplacer("\uFEFF", "", "\u200E", "", "\u200F", "")

// Reformat converts a raw record into canonical GEDCOM lines. Lines that do
// not look like "level [@xref@] TAG [value]" are dropped.
func Reformat(rec string, opts ReformatOptions) string {
	rec = formattingRunes.Replace(rec)
	rec = stripControls(rec)

	matches := rawLineRE.FindAllStringSubmatch(rec, -1)
	lines := make([]Line, 0, len(matches))
	for _, m := range matches {
		level, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		line := Line{Level: level, Xref: m[2], Tag: CanonicalTag(m[3]), Value: m[4]}
		line.Value = reformatValue(line)
		if line.Level == 0 && (line.Tag == "HEAD" || line.Tag == "TRLR") {
			line.Xref = ""
			line.Value = ""
		}
		lines = append(lines, line)
	}

	suppressRedundantY(lines)

	var b strings.Builder
	for _, line := range lines {
		switch line.Tag {
		case "CONC":
			if opts.WordWrappedNotes {
				b.WriteByte(' ')
			}
			b.WriteString(line.Value)
			continue
		case "NOTE", "TEXT", "DATA", "CONT":
		case "FILE":
			if opts.MediaPath != "" {
				line.Value = strings.TrimPrefix(line.Value, opts.MediaPath)
			}
			line.Value = strings.ReplaceAll(line.Value, `\`, "/")
		default:
			line.Value = collapseSpaces(strings.ReplaceAll(line.Value, "\t", " "))
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.String())
	}
	return b.String()
}

// stripControls maps CR to LF and other C0 controls (except LF and NUL) and
// DEL to '?'.
func stripControls(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		var r byte
		switch {
		case c == '\r':
			r = '\n'
		case c == '\n' || c == 0 || c == '\t':
			continue
		case c < 0x20 || c == 0x7F:
			r = '?'
		default:
			continue
		}
		if b == nil {
			b = []byte(s)
		}
		b[i] = r
	}
	if b == nil {
		return s
	}
	return string(b)
}

func reformatValue(line Line) string {
	data := line.Value
	switch line.Tag {
	case "AFN", "TEMP":
		return upperASCII(data)
	case "PEDI":
		return lowerASCII(data)
	case "RESN":
		data = lowerASCII(data)
		if data == "invisible" {
			// Legacy wrote "invisible" for what GEDCOM calls confidential.
			data = "confidential"
		}
		return data
	case "DATE":
		return NormalizeDate(data)
	case "FORM":
		return commaRE.ReplaceAllString(data, ", ")
	case "PLAC":
		data = commaRE.ReplaceAllString(data, ", ")
		if m := tmgCoordsRE.FindStringSubmatch(data); m != nil {
			lat := dmsToDecimal(m[2], m[3], m[4])
			long := dmsToDecimal(m[6], m[7], m[8])
			data = m[1] +
				"\n" + strconv.Itoa(line.Level+1) + " MAP" +
				"\n" + strconv.Itoa(line.Level+2) + " LATI " + m[5] + lat +
				"\n" + strconv.Itoa(line.Level+2) + " LONG " + m[9] + long
		}
		return data
	case "HEAD", "NAME":
		return collapseSpaces(data)
	case "SEX":
		switch strings.TrimSpace(data) {
		case "M", "F", "U":
			return data
		case "m":
			return "M"
		case "f":
			return "F"
		default:
			return "U"
		}
	case "STAT":
		if data == "CANCELLED" {
			return "CANCELED"
		}
	}
	return data
}

func dmsToDecimal(deg, min, sec string) string {
	d, _ := strconv.Atoi(deg)
	m, _ := strconv.Atoi(min)
	s, _ := strconv.Atoi(sec)
	v := float64(d) + float64(m)/60 + float64(s)/3600
	v = math.Round(v*1e4) / 1e4
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// suppressRedundantY clears "1 BIRT Y" style values when the fact carries a
// DATE or PLAC, since the sub-lines already prove the event happened.
func suppressRedundantY(lines []Line) {
	for i := range lines {
		if lines[i].Value == "y" {
			lines[i].Value = "Y"
		}
		if lines[i].Level != 1 || lines[i].Value != "Y" {
			continue
		}
		for j := i + 1; j < len(lines) && lines[j].Level != 1; j++ {
			if lines[j].Tag == "DATE" || lines[j].Tag == "PLAC" {
				lines[i].Value = ""
				break
			}
		}
	}
}

package gedcom

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// InlineMedia is an OBJE structure embedded in another record, such as
//
//	1 OBJE
//	2 FILE photos/jane.jpg
//	2 TITL Jane
//
// which the importer hoists into its own media record.
type InlineMedia struct {
	Level int
	Block string // the matched text, starting with "\n"
	File  string
	Title string
}

var (
	inlineMediaRE = [...]*regexp.Regexp{
		1: regexp.MustCompile(`\n1 OBJE(?:\n[2-9].+)+`),
		2: regexp.MustCompile(`\n2 OBJE(?:\n[3-9].+)+`),
		3: regexp.MustCompile(`\n3 OBJE(?:\n[4-9].+)+`),
	}
	mediaFileRE   = regexp.MustCompile(`\n\d FILE (.+)`)
	mediaTitleRE  = regexp.MustCompile(`\n\d TITL (.+)`)
	mediaTypeRE   = regexp.MustCompile(`\n\d TYPE (.+)`)
	lineLevelRE   = regexp.MustCompile(`\n(\d+)`)
	legacyMediaRE = regexp.MustCompile(`\n1 FORM (.+)\n1 FILE (.+)\n1 TITL (.+)`)
	ftbMediaRE    = regexp.MustCompile(`\n1 FORM (.+)\n1 TITL (.+)\n1 FILE (.+)`)
)

// MaxInlineMediaLevel is the deepest level at which inline media is hoisted.
const MaxInlineMediaLevel = 3

// FindInlineMedia returns the first inline OBJE structure at level, if any.
func FindInlineMedia(rec string, level int) (InlineMedia, bool) {
	if level < 1 || level > MaxInlineMediaLevel {
		return InlineMedia{}, false
	}
	blk := inlineMediaRE[level].FindString(rec)
	if blk == "" {
		return InlineMedia{}, false
	}
	m := InlineMedia{Level: level, Block: blk}
	if f := mediaFileRE.FindStringSubmatch(blk); f != nil {
		m.File = f[1]
	}
	m.Title = m.File
	if t := mediaTitleRE.FindStringSubmatch(blk); t != nil {
		m.Title = t[1]
	}
	return m, true
}

// Record turns the inline structure into a level-0 media record with the
// given xref. Layouts written by Legacy (FORM, FILE, TITL) and Family Tree
// Builder (FORM, TITL, FILE) are rearranged into FILE with FORM and TITL
// beneath it.
func (m InlineMedia) Record(xref string) string {
	rec := lineLevelRE.ReplaceAllStringFunc(m.Block, func(s string) string {
		n, _ := strconv.Atoi(s[1:])
		return "\n" + strconv.Itoa(n-m.Level)
	})
	rec = strings.Replace(rec, "\n0 OBJE\n", "0 @"+xref+"@ OBJE\n", 1)
	rec = legacyMediaRE.ReplaceAllString(rec, "\n1 FILE ${2}\n2 FORM ${1}\n2 TITL ${3}")
	rec = ftbMediaRE.ReplaceAllString(rec, "\n1 FILE ${3}\n2 FORM ${1}\n2 TITL ${2}")
	return rec
}

// Link is the line that replaces the inline structure.
func (m InlineMedia) Link(xref string) string {
	return "\n" + strconv.Itoa(m.Level) + " OBJE @" + xref + "@"
}

// ReplaceIn substitutes link for every whole occurrence of the block in
// rec. An occurrence followed by deeper lines is the head of a larger
// structure and is left alone.
func (m InlineMedia) ReplaceIn(rec, link string) string {
	var b strings.Builder
	for {
		i := strings.Index(rec, m.Block)
		if i < 0 {
			b.WriteString(rec)
			return b.String()
		}
		end := i + len(m.Block)
		if end == len(rec) || (rec[end] == '\n' && lineLevel(rec[end+1:]) <= m.Level) {
			b.WriteString(rec[:i])
			b.WriteString(link)
		} else {
			b.WriteString(rec[:end])
		}
		rec = rec[end:]
	}
}

// lineLevel parses the level number at the start of line, or -1.
func lineLevel(line string) int {
	n := 0
	for n < len(line) && line[n] >= '0' && line[n] <= '9' {
		n++
	}
	if n == 0 {
		return -1
	}
	level, err := strconv.Atoi(line[:n])
	if err != nil {
		return -1
	}
	return level
}

// MediaFacts are the columns of the media table derived from an OBJE record.
type MediaFacts struct {
	File      string
	Title     string
	Extension string
	Type      string
}

// ParseMediaFacts reads file name, title, extension and media type from an
// OBJE record.
func ParseMediaFacts(rec string) MediaFacts {
	var f MediaFacts
	if m := mediaFileRE.FindStringSubmatch(rec); m != nil {
		f.File = strings.TrimSpace(m[1])
	}
	if m := mediaTitleRE.FindStringSubmatch(rec); m != nil {
		f.Title = strings.TrimSpace(m[1])
	}
	if m := mediaTypeRE.FindStringSubmatch(rec); m != nil {
		f.Type = strings.ToLower(strings.TrimSpace(m[1]))
	}
	f.Extension = strings.ToLower(strings.TrimPrefix(path.Ext(f.File), "."))
	if f.Extension == "jpeg" {
		f.Extension = "jpg"
	}
	return f
}

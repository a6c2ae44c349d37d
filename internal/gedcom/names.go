package gedcom

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholders stored for unknown name parts.
const (
	UnknownGiven   = "@P.N."
	UnknownSurname = "@N.N."
)

// Name is one row of the name index.
type Name struct {
	Type    string // NAME, _MARNM, ROMN, FONE, _HEB, ... or the record type
	Sort    string
	Full    string // name without slashes; placeholders kept
	Surname string // text between the slashes
	Surn    string
	Givn    string
}

var (
	surnameSpanRE   = regexp.MustCompile(`/.*/`)
	surnameGroupRE  = regexp.MustCompile(`/([^/]*)/`)
	surnPrefixRE    = regexp.MustCompile(`^(?:[a-z]+ |[a-z]+' ?|'[a-z]+ )+`)
	givnSurnameRE   = regexp.MustCompile(` ?/.*/ ?`)
	givnNicknameRE  = regexp.MustCompile(` ?".+"`)
	multiSpaceRE    = regexp.MustCompile(` {2,}`)
	commaListRE     = regexp.MustCompile(` *, *`)
	numberRunRE     = regexp.MustCompile(`[0-9]+`)
	mcPrefixRE      = regexp.MustCompile(`(?i)^mc`)
	mackPrefixRE    = regexp.MustCompile(`(?i)^mack`)
	digitsOnlyLevel = regexp.MustCompile(`^\d+`)
)

// ParseIndividualNames extracts every name of an INDI record: level-1 NAME
// lines (those with "2 TYPE married" as _MARNM) plus their ROMN, FONE and
// custom variants. A record with no name gets "@P.N. /@N.N./".
func ParseIndividualNames(rec string) []Name {
	var names []Name
	for _, blk := range subBlocks(rec, 1, "NAME") {
		typ := "NAME"
		if strings.Contains(blk.body, "\n2 TYPE married") {
			typ = "_MARNM"
		}
		names = append(names, personName(typ, blk.value, blk.text)...)
		for _, sub := range subBlocks(blk.body, 2, "ROMN|FONE|_\\w+") {
			names = append(names, personName(sub.tag, sub.value, sub.text)...)
		}
	}
	if len(names) == 0 {
		names = personName("NAME", UnknownGiven+" /"+UnknownSurname+"/", "1 NAME")
	}
	return names
}

// personName splits one NAME value into index rows, one per surname.
// block is the NAME line with its sub-lines, used for NPFX/GIVN/SURN/NSFX.
func personName(typ, full, block string) []Name {
	sub := blockLevel(block) + 1
	part := func(tag string) string {
		v, _ := FirstValue("\n"+block, sub, tag)
		return v
	}
	npfx, givn, surn, nsfx := part("NPFX"), part("GIVN"), part("SURN"), part("NSFX")

	var surns []string
	if surn != "" {
		surns = commaListRE.Split(surn, -1)
	}
	givn = commaListRE.ReplaceAllString(givn, " ")

	if strings.Count(full, "/")%2 == 1 {
		full += "/"
	}
	full = strings.ReplaceAll(full, "//", "/"+UnknownSurname+"/")

	surname := strings.ReplaceAll(surnameSpanRE.FindString(full), "/", "")

	if len(surns) == 0 {
		groups := surnameGroupRE.FindAllStringSubmatch(full, -1)
		for _, g := range groups {
			surns = append(surns, surnPrefixRE.ReplaceAllString(g[1], ""))
		}
		if len(surns) == 0 {
			surns = []string{""}
		}
	}

	if givn == "" {
		g := givnSurnameRE.ReplaceAllString(full, " ")
		g = givnNicknameRE.ReplaceAllString(g, " ")
		g = multiSpaceRE.ReplaceAllString(g, " ")
		givn = strings.Trim(g, " ")
	}
	if givn == "" {
		givn = UnknownGiven
		if i := strings.IndexByte(full, '/'); i >= 0 {
			full = full[:i] + UnknownGiven + " " + full[i:]
		} else {
			full = UnknownGiven + " " + full
		}
	}

	if npfx != "" && !strings.HasPrefix(full, npfx+" ") {
		full = npfx + " " + full
	}
	if nsfx != "" && !strings.HasSuffix(full, " "+nsfx) {
		full = full + " " + nsfx
	}

	fullNN := strings.ReplaceAll(full, "/", "")

	names := make([]Name, 0, len(surns))
	for _, s := range surns {
		sortSurn := s
		switch {
		case mcPrefixRE.MatchString(s):
			sortSurn = "Mac" + s[2:]
		case mackPrefixRE.MatchString(s):
			sortSurn = "Mac" + s[4:]
		}
		names = append(names, Name{
			Type:    typ,
			Sort:    sortSurn + "," + givn,
			Full:    fullNN,
			Surname: surname,
			Surn:    sortSurn,
			Givn:    givn,
		})
	}
	return names
}

// ParseRecordNames returns the names of a non-individual record: the title
// of sources and media, the NAME of repositories and submitters, the first
// line of notes. Records without one are named by their xref.
func ParseRecordNames(h Header, rec string) []Name {
	var values []string
	switch h.Type {
	case "SOUR":
		values = lineValues(rec, 1, "TITL")
	case "REPO", "SUBM":
		values = lineValues(rec, 1, "NAME")
	case "OBJE":
		values = append(lineValues(rec, 2, "TITL"), lineValues(rec, 1, "TITL")...)
	case "NOTE":
		if m := noteFirstLineRE.FindStringSubmatch(rec); m != nil && strings.TrimSpace(m[1]) != "" {
			values = []string{strings.TrimSpace(m[1])}
		}
	}
	if len(values) == 0 {
		values = []string{h.Xref}
	}

	names := make([]Name, 0, len(values))
	for _, v := range values {
		names = append(names, Name{
			Type: h.Type,
			Sort: padNumbers(v),
			Full: v,
		})
	}
	return names
}

var noteFirstLineRE = regexp.MustCompile(`^0 @[^@]+@ NOTE ?(.*)`)

// padNumbers zero-pads digit runs to ten places so "Vol 9" sorts before
// "Vol 10".
func padNumbers(s string) string {
	return numberRunRE.ReplaceAllStringFunc(s, func(n string) string {
		if len(n) >= 10 {
			return n
		}
		return strings.Repeat("0", 10-len(n)) + n
	})
}

type block struct {
	tag   string
	value string
	body  string // the sub-lines, each starting with "\n"
	text  string // the whole block without its leading newline
}

// subBlocks finds lines "<level> TAG value" (tag matching tagPattern) and
// the deeper lines that follow each of them.
func subBlocks(rec string, level int, tagPattern string) []block {
	l := strconv.Itoa(level)
	re := regexp.MustCompile(`(?m)^` + l + ` (` + tagPattern + `) (.+)((?:\n[` + strconv.Itoa(level+1) + `-9].*)*)`)
	var out []block
	for _, m := range re.FindAllStringSubmatch(rec, -1) {
		out = append(out, block{tag: m[1], value: m[2], body: m[3], text: m[0]})
	}
	return out
}

func lineValues(rec string, level int, tag string) []string {
	re := regexp.MustCompile(`(?m)^` + strconv.Itoa(level) + ` ` + tag + ` (.+)`)
	var out []string
	for _, m := range re.FindAllStringSubmatch(rec, -1) {
		out = append(out, m[1])
	}
	return out
}

func blockLevel(text string) int {
	return mustAtoi(digitsOnlyLevel.FindString(text))
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

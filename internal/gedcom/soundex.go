package gedcom

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// soundex.go builds the phonetic keys stored in the name and places
// tables. Both algorithms code every word of the input and, for
// multi-word input, the words run together ("New York" also as
// "Newyork"). Codes are de-duplicated and joined with ':'.

const (
	maxStdCodes = 51 // 51 four-character codes and delimiters fit a varchar(255)
	maxDMCodes  = 36
)

// Letters that do not decompose into a base letter plus marks.
var foldSpecial = strings.NewReplacer(
	"ß", "SS", "Æ", "AE", "æ", "AE", "Œ", "OE", "œ", "OE",
	"Ø", "O", "ø", "O", "Ł", "L", "ł", "L", "Đ", "D", "đ", "D",
	"Þ", "TH", "þ", "TH", "Ð", "D", "ð", "D", "ı", "I",
)

// foldName upper-cases s and strips diacritics so that "Müller" and
// "Muller" share keys.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldSpecial.Replace(s))
	if err != nil {
		folded = s
	}
	return strings.ToUpper(folded)
}

// SoundexStd returns the Russell soundex codes of text.
func SoundexStd(text string) string {
	words := strings.Fields(foldName(text))
	var codes []string
	for _, w := range words {
		codes = append(codes, russell(w))
	}
	if len(words) > 1 {
		codes = append(codes, russell(strings.Join(words, "")))
	}
	return joinCodes(codes, "0000", maxStdCodes)
}

var russellTable = [26]byte{
	0, '1', '2', '3', 0, '1', '2', 0, 0, '2', '2', '4', '5',
	'5', 0, '1', '2', '6', '2', '3', 0, '1', 0, '2', 0, '2',
}

// russell codes a single upper-case word. Non-letters are ignored; a word
// with no letters codes as "0000".
func russell(word string) string {
	var out [4]byte
	n := 0
	var last byte
	for i := 0; i < len(word) && n < 4; i++ {
		c := word[i]
		if c < 'A' || c > 'Z' {
			continue
		}
		code := russellTable[c-'A']
		if n == 0 {
			out[n] = c
			n++
			last = code
			continue
		}
		if code != last {
			if code != 0 {
				out[n] = code
				n++
			}
			last = code
		}
	}
	for ; n < 4; n++ {
		out[n] = '0'
	}
	return string(out[:])
}

func joinCodes(codes []string, empty string, max int) string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == empty || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return strings.Join(out, ":")
}

// SoundexDM returns the Daitch-Mokotoff codes of text. Letter groups with
// ambiguous pronunciation (CH, CK, C, J, RS, RZ) branch into several codes.
func SoundexDM(text string) string {
	words := strings.Fields(foldName(text))
	var codes []string
	for _, w := range words {
		codes = append(codes, daitchMokotoff(w)...)
	}
	if len(words) > 1 {
		codes = append(codes, daitchMokotoff(strings.Join(words, ""))...)
	}
	return joinCodes(codes, "000000", maxDMCodes)
}

// dmSound is one coding alternative: the code at the start of a word,
// before a vowel, and anywhere else. An empty code is not coded.
type dmSound struct {
	start, beforeVowel, other string
}

type dmEntry struct {
	vowel bool
	alts  []dmSound
}

const dmMaxChunk = 7

var dmTable = map[string]dmEntry{}

func dm(vowel bool, keys []string, alts ...dmSound) {
	for _, k := range keys {
		dmTable[k] = dmEntry{vowel: vowel, alts: alts}
	}
}

func init() {
	s := func(a, b, c string) dmSound { return dmSound{a, b, c} }
	k := func(keys ...string) []string { return keys }

	dm(true, k("AI", "AJ", "AY"), s("0", "1", ""))
	dm(true, k("AU"), s("0", "7", ""))
	dm(true, k("A"), s("0", "", ""))
	dm(false, k("B"), s("7", "7", "7"))
	dm(false, k("CHS"), s("5", "54", "54"))
	dm(false, k("CH"), s("5", "5", "5"), s("4", "4", "4"))
	dm(false, k("CK"), s("5", "5", "5"), s("45", "45", "45"))
	dm(false, k("CZ", "CS", "CSZ", "CZS"), s("4", "4", "4"))
	dm(false, k("C"), s("5", "5", "5"), s("4", "4", "4"))
	dm(false, k("DRZ", "DRS", "DS", "DSH", "DSZ", "DZ", "DZH", "DZS"), s("4", "4", "4"))
	dm(false, k("D", "DT"), s("3", "3", "3"))
	dm(true, k("EI", "EJ", "EY"), s("0", "1", ""))
	dm(true, k("EU"), s("1", "1", ""))
	dm(true, k("E"), s("0", "", ""))
	dm(false, k("F", "FB"), s("7", "7", "7"))
	dm(false, k("G"), s("5", "5", "5"))
	dm(false, k("H"), s("5", "5", ""))
	dm(true, k("IA", "IE", "IO", "IU"), s("1", "", ""))
	dm(true, k("I"), s("0", "", ""))
	dm(false, k("J"), s("1", "1", "1"), s("4", "4", "4"))
	dm(false, k("KS"), s("5", "54", "54"))
	dm(false, k("K", "KH"), s("5", "5", "5"))
	dm(false, k("L"), s("8", "8", "8"))
	dm(false, k("MN", "NM"), s("66", "66", "66"))
	dm(false, k("M", "N"), s("6", "6", "6"))
	dm(true, k("OI", "OJ", "OY"), s("0", "1", ""))
	dm(true, k("O"), s("0", "", ""))
	dm(false, k("P", "PF", "PH"), s("7", "7", "7"))
	dm(false, k("Q"), s("5", "5", "5"))
	dm(false, k("R"), s("9", "9", "9"))
	dm(false, k("RS", "RZ"), s("94", "94", "94"), s("4", "4", "4"))
	dm(false, k("SCHTSCH", "SCHTSH", "SCHTCH", "SHTCH", "SHCH", "SHTSH", "STCH", "STSCH", "SC",
		"STRZ", "STRS", "STSH", "SZCZ", "SZCS"), s("2", "4", "4"))
	dm(false, k("SCH", "SH", "SZ", "S"), s("4", "4", "4"))
	dm(false, k("SHT", "SCHT", "SCHD", "ST", "SZT", "SHD", "SZD", "SD"), s("2", "43", "43"))
	dm(false, k("TCH", "TTCH", "TTSCH", "TRZ", "TRS", "TSCH", "TSH", "TS", "TTS", "TTSZ", "TC",
		"TZ", "TTZ", "TZS", "TSZ"), s("4", "4", "4"))
	dm(false, k("T", "TH"), s("3", "3", "3"))
	dm(true, k("UI", "UJ", "UY"), s("0", "1", ""))
	dm(true, k("U", "UE"), s("0", "", ""))
	dm(false, k("V", "W"), s("7", "7", "7"))
	dm(false, k("X"), s("5", "54", "54"))
	dm(true, k("Y"), s("1", "", ""))
	dm(false, k("ZDZ", "ZDZH", "ZHDZH"), s("2", "4", "4"))
	dm(false, k("ZD", "ZHD"), s("2", "43", "43"))
	dm(false, k("ZH", "ZS", "ZSCH", "ZSH", "Z"), s("4", "4", "4"))
}

// dmChunk returns the longest table entry starting at word[pos:].
func dmChunk(word string, pos int) (string, dmEntry, bool) {
	end := pos + dmMaxChunk
	if end > len(word) {
		end = len(word)
	}
	for ; end > pos; end-- {
		if e, ok := dmTable[word[pos:end]]; ok {
			return word[pos:end], e, true
		}
	}
	return "", dmEntry{}, false
}

// daitchMokotoff codes one upper-case word into six-digit codes. Each
// branch is a list of digits; a '!' marker after an uncoded sound stops the
// next sound from being dropped as a repeat.
func daitchMokotoff(word string) []string {
	type branch struct {
		digits string
		last   string
	}
	partial := []branch{{last: "!"}}
	var done []string
	first := true

	for pos := 0; pos < len(word) && len(partial) > 0; {
		chunk, entry, ok := dmChunk(word, pos)
		if !ok {
			pos++
			continue
		}
		pos += len(chunk)

		nextIsVowel := false
		if _, next, ok := dmChunk(word, pos); ok {
			nextIsVowel = next.vowel
		}

		var working []branch
		for _, alt := range entry.alts {
			code := alt.other
			switch {
			case first:
				code = alt.start
			case nextIsVowel:
				code = alt.beforeVowel
			}
			for _, b := range partial {
				if code == "" {
					working = append(working, branch{digits: b.digits, last: "!"})
					continue
				}
				if code != b.last {
					b.digits += code
					b.last = code
				}
				if len(b.digits) >= 6 {
					done = append(done, b.digits[:6])
					continue
				}
				working = append(working, b)
			}
		}
		partial = working
		first = false
	}

	for _, b := range partial {
		done = append(done, (b.digits + "000000")[:6])
	}
	return done
}

package gedcom

import (
	"regexp"
	"strings"
)

var (
	letterDigitRE  = regexp.MustCompile(`([A-Z])(\d)`)
	digitLetterRE  = regexp.MustCompile(`(\d)([A-Z])`)
	calEscapeRE    = regexp.MustCompile(`@#[^@]+@`)
	abbrevDotRE    = regexp.MustCompile(`(\w\w)\.`)
	betDashRE      = regexp.MustCompile(`^(.* BET .+) - (.+)`)
	fromDashRE     = regexp.MustCompile(`^(.* FROM .+) - (.+)`)
	escFromToRE    = regexp.MustCompile(`^ +(@#[^@]+@) +FROM +(.+) +TO +(.+)`)
	escBetAndRE    = regexp.MustCompile(`^ +(@#[^@]+@) +BET +(.+) +AND +(.+)`)
	escQualifierRE = regexp.MustCompile(`^ +(@#[^@]+@) +(FROM|BET|TO|AND|BEF|AFT|CAL|EST|INT|ABT) +(.+)`)
	datePunctRE    = regexp.MustCompile(`[.,:;-]`)
)

// NormalizeDate canonicalizes a DATE value: upper case, tokens separated by
// single spaces, CIR/APX as ABT, dashes in ranges replaced by AND/TO and
// calendar escapes moved after the qualifier. Text from an interpreted date
// ("INT 1900 (about then)") is preserved as written.
func NormalizeDate(data string) string {
	date, text := data, ""
	if i := strings.IndexByte(data, '('); i >= 0 {
		date, text = data[:i], " ("+data[i+1:]
	}

	date = " " + upperASCII(date) + " "
	date = letterDigitRE.ReplaceAllString(date, "${1} ${2}")
	date = digitLetterRE.ReplaceAllString(date, "${1} ${2}")
	date = calEscapeRE.ReplaceAllString(date, " ${0} ")
	date = abbrevDotRE.ReplaceAllString(date, "${1}")
	date = strings.ReplaceAll(date, " CIR ", " ABT ")
	date = strings.ReplaceAll(date, " APX ", " ABT ")
	// Protect B.C. from the punctuation pass below.
	date = strings.ReplaceAll(date, " B.C. ", " BC ")
	date = betDashRE.ReplaceAllString(date, "${1} AND ${2}")
	date = fromDashRE.ReplaceAllString(date, "${1} TO ${2}")
	date = escFromToRE.ReplaceAllString(date, " FROM ${1} ${2} TO ${1} ${3}")
	date = escBetAndRE.ReplaceAllString(date, " BET ${1} ${2} AND ${1} ${3}")
	date = escQualifierRE.ReplaceAllString(date, " ${2} ${1} ${3}")
	// "/" is left alone: it separates dual years such as 1741/42.
	date = datePunctRE.ReplaceAllString(date, " ")
	date = strings.ReplaceAll(date, " BC ", " B.C. ")

	return collapseSpaces(date + text)
}

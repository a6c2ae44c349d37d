package gedcom

import (
	"regexp"
	"strings"
)

// Link is an outgoing cross-reference: "1 FAMC @F1@" is {Tag: FAMC, Target: F1}.
type Link struct {
	Tag    string
	Target string
}

var linkRE = regexp.MustCompile(`(?m)^\d+ (` + TagPattern + `) @(` + XrefPattern + `)@`)

// ExtractLinks returns each distinct (tag, target) pair in order of first use.
func ExtractLinks(rec string) []Link {
	var links []Link
	seen := make(map[Link]bool)
	for _, m := range linkRE.FindAllStringSubmatch(rec, -1) {
		l := Link{Tag: m[1], Target: m[2]}
		if seen[l] {
			continue
		}
		seen[l] = true
		links = append(links, l)
	}
	return links
}

// Control records use "1 PLAC" (HEAD/PLAC/FORM); real places sit at level 2+.
var placeRE = regexp.MustCompile(`(?m)^[2-9] PLAC (.+)`)

// ExtractPlaces returns the distinct place names of a record, compared
// case-insensitively, in order of first use.
func ExtractPlaces(rec string) []string {
	var places []string
	seen := make(map[string]bool)
	for _, m := range placeRE.FindAllStringSubmatch(rec, -1) {
		p := strings.TrimSpace(m[1])
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		places = append(places, p)
	}
	return places
}

// PlaceHierarchy splits "Town, County, Country" into its levels from the
// top down: ["Country", "County", "Town"].
func PlaceHierarchy(place string) []string {
	parts := strings.Split(place, ",")
	out := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		out = append(out, strings.TrimSpace(parts[i]))
	}
	return out
}

// FactDate is a dated fact of a record.
type FactDate struct {
	Fact string
	Date Date
}

var (
	factDateRE = regexp.MustCompile(`\n1 (\w+).*(?:\n[2-9].*)*(?:\n2 DATE (.+))(?:\n[2-9].*)*`)
	factTypeRE = regexp.MustCompile(`\n2 TYPE ([A-Z]{3,5})`)
)

// ExtractFactDates returns the level-1 facts that carry a level-2 DATE,
// using the last DATE when there are several. Generic FACT/EVEN facts are
// named by their TYPE when it is a tag-like code.
func ExtractFactDates(rec string) []FactDate {
	if !strings.Contains(rec, "2 DATE ") {
		return nil
	}
	var out []FactDate
	for _, m := range factDateRE.FindAllStringSubmatch(rec, -1) {
		fact := m[1]
		if fact == "FACT" || fact == "EVEN" {
			if t := factTypeRE.FindStringSubmatch(m[0]); t != nil {
				fact = t[1]
			}
		}
		out = append(out, FactDate{Fact: fact, Date: ParseDate(m[2])})
	}
	return out
}

package records

import (
	"context"
	"regexp"
	"strconv"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
)

var (
	husbRE = regexp.MustCompile(`\n1 HUSB @(` + gedcom.XrefPattern + `)@`)
	wifeRE = regexp.MustCompile(`\n1 WIFE @(` + gedcom.XrefPattern + `)@`)
	chilRE = regexp.MustCompile(`\n1 CHIL @(` + gedcom.XrefPattern + `)@`)
	nchiRE = regexp.MustCompile(`\n1 NCHI (\d+)`)
)

func init() {
	// Family names are not indexed.
	core.Register(core.RecordHandler{
		Type:    "FAM",
		Label:   "Families",
		Table:   "families",
		Insert:  insertFamily,
		Delete:  deleteFamily,
		Indexes: core.IndexPlaces | core.IndexDates | core.IndexLinks,
	})
}

func insertFamily(ctx context.Context, st core.RecordStore, rec *core.Record) error {
	return st.InsertFamily(ctx, db.InsertFamilyParams{
		ID:      rec.Xref,
		TreeID:  rec.TreeID,
		Husb:    core.ToPgText(submatch(husbRE, rec.Gedcom)),
		Wife:    core.ToPgText(submatch(wifeRE, rec.Gedcom)),
		Gedcom:  rec.Gedcom,
		NumChil: numChildren(rec.Gedcom),
	})
}

func deleteFamily(ctx context.Context, st core.RecordStore, treeID int32, xref string) error {
	return st.DeleteFamily(ctx, db.RecordKey{Xref: xref, TreeID: treeID})
}

// numChildren is the larger of the CHIL link count and the NCHI value.
func numChildren(text string) int32 {
	n := len(chilRE.FindAllStringIndex(text, -1))
	if m := nchiRE.FindStringSubmatch(text); m != nil {
		if nchi, err := strconv.Atoi(m[1]); err == nil && nchi > n {
			n = nchi
		}
	}
	return int32(n)
}

func submatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

package records

import (
	"context"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
)

func init() {
	core.Register(core.RecordHandler{
		Type:    "INDI",
		Label:   "Individuals",
		Table:   "individuals",
		Insert:  insertIndividual,
		Delete:  deleteIndividual,
		Indexes: core.IndexPlaces | core.IndexDates | core.IndexLinks | core.IndexNames,
	})
}

func insertIndividual(ctx context.Context, st core.RecordStore, rec *core.Record) error {
	rin := rec.Xref
	if rec.Settings.UseRIN {
		if v, ok := gedcom.FirstValue(rec.Gedcom, 1, "RIN"); ok {
			rin = v
		}
	}
	return st.InsertIndividual(ctx, db.InsertIndividualParams{
		ID:     rec.Xref,
		TreeID: rec.TreeID,
		Rin:    rin,
		Sex:    sex(rec.Gedcom),
		Gedcom: rec.Gedcom,
	})
}

func deleteIndividual(ctx context.Context, st core.RecordStore, treeID int32, xref string) error {
	return st.DeleteIndividual(ctx, db.RecordKey{Xref: xref, TreeID: treeID})
}

// sex returns M, F or U from the first SEX line.
func sex(text string) string {
	switch v, _ := gedcom.FirstValue(text, 1, "SEX"); v {
	case "M", "F":
		return v
	}
	return "U"
}

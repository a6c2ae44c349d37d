package records

import (
	"context"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
)

func init() {
	core.Register(core.RecordHandler{
		Type:    "SOUR",
		Label:   "Sources",
		Table:   "sources",
		Insert:  insertSource,
		Delete:  deleteSource,
		Indexes: core.IndexLinks | core.IndexNames,
	})
}

func insertSource(ctx context.Context, st core.RecordStore, rec *core.Record) error {
	return st.InsertSource(ctx, db.InsertSourceParams{
		ID:     rec.Xref,
		TreeID: rec.TreeID,
		Name:   sourceName(rec.Xref, rec.Gedcom),
		Gedcom: rec.Gedcom,
	})
}

func deleteSource(ctx context.Context, st core.RecordStore, treeID int32, xref string) error {
	return st.DeleteSource(ctx, db.RecordKey{Xref: xref, TreeID: treeID})
}

// sourceName is the title, else the abbreviation, else the xref.
func sourceName(xref, text string) string {
	if v, ok := gedcom.FirstValue(text, 1, "TITL"); ok {
		return v
	}
	if v, ok := gedcom.FirstValue(text, 1, "ABBR"); ok {
		return v
	}
	return xref
}

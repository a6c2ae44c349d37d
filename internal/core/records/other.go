package records

import (
	"context"
	"strings"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
)

// headDateLayout renders the import date added to headers that lack one.
const headDateLayout = "2 Jan 2006"

func init() {
	core.Register(core.RecordHandler{
		Type:    "REPO",
		Label:   "Repositories",
		Table:   "other",
		Insert:  insertOther,
		Delete:  deleteOther,
		Indexes: core.IndexLinks | core.IndexNames,
	})

	// NOTE, SUBM, HEAD, TRLR and any other standard type.
	core.Register(core.RecordHandler{
		Label:   "Other records",
		Table:   "other",
		Insert:  insertOther,
		Delete:  deleteOther,
		Indexes: core.IndexLinks | core.IndexNames,
	})
}

func insertOther(ctx context.Context, st core.RecordStore, rec *core.Record) error {
	if rec.Type == "HEAD" && !strings.Contains(rec.Gedcom, "\n1 DATE ") {
		rec.Gedcom += "\n1 DATE " + strings.ToUpper(rec.Imported.Format(headDateLayout))
	}
	return st.InsertOther(ctx, db.InsertOtherParams{
		ID:     rec.Xref,
		TreeID: rec.TreeID,
		Type:   rec.Type,
		Gedcom: rec.Gedcom,
	})
}

func deleteOther(ctx context.Context, st core.RecordStore, treeID int32, xref string) error {
	return st.DeleteOther(ctx, db.RecordKey{Xref: xref, TreeID: treeID})
}

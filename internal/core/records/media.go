package records

import (
	"context"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
)

func init() {
	core.Register(core.RecordHandler{
		Type:    "OBJE",
		Label:   "Media objects",
		Table:   "media",
		Insert:  insertMedia,
		Delete:  deleteMedia,
		Indexes: core.IndexLinks | core.IndexNames,
	})
}

func insertMedia(ctx context.Context, st core.RecordStore, rec *core.Record) error {
	return st.InsertMedia(ctx, core.MediaParams(rec.TreeID, rec.Xref, rec.Gedcom))
}

func deleteMedia(ctx context.Context, st core.RecordStore, treeID int32, xref string) error {
	return st.DeleteMedia(ctx, db.RecordKey{Xref: xref, TreeID: treeID})
}

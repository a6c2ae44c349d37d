package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/jackc/pgx/v5"
)

// Importer writes records into one tree. It keeps a place cache across
// records, so a file import should use a single Importer.
//
// An Importer is not safe for concurrent use.
type Importer struct {
	store    RecordStore
	treeID   int32
	settings TreeSettings
	now      func() time.Time
	places   placeCache
}

// NewImporter returns an importer for the given tree.
func NewImporter(st RecordStore, treeID int32, settings TreeSettings) *Importer {
	if settings.MediaIDPrefix == "" {
		settings.MediaIDPrefix = "M"
	}
	return &Importer{
		store:    st,
		treeID:   treeID,
		settings: settings,
		now:      time.Now,
		places:   newPlaceCache(),
	}
}

// ImportRecord canonicalizes one raw record and stores it with its index
// rows. update is true when the text comes from an edit rather than a file;
// only file text has "@@" escapes.
//
// Records whose type starts with "_" have no handler and are reported as
// skipped. A record without a level-0 line returns gedcom.ErrInvalidRecord.
func (im *Importer) ImportRecord(ctx context.Context, raw string, update bool) (RecordOutcome, error) {
	// Places cached by a record whose savepoint was rolled back no longer exist.
	im.places.discard()

	if !update {
		raw = strings.ReplaceAll(raw, "@@", "@")
	}

	text := gedcom.Reformat(raw, gedcom.ReformatOptions{
		WordWrappedNotes: im.settings.WordWrappedNotes,
		MediaPath:        im.settings.MediaPath,
	})

	h, err := gedcom.ParseHeader(text)
	if err != nil {
		return RecordOutcome{}, err
	}
	out := RecordOutcome{Xref: h.Xref, Type: h.Type}

	if h.HasXref && im.settings.GenerateUIDs && !strings.Contains(text, "\n1 _UID ") {
		text += "\n1 _UID " + gedcom.NewUID()
	}

	text, err = im.convertInlineMedia(ctx, text, &out)
	if err != nil {
		return out, err
	}

	if im.settings.KeepMedia {
		text, err = im.relinkMedia(ctx, h.Xref, text)
		if err != nil {
			return out, err
		}
	}

	handler, ok := HandlerFor(h.Type)
	if !ok {
		out.Skipped = true
		return out, nil
	}

	rec := &Record{
		TreeID:   im.treeID,
		Xref:     h.Xref,
		Type:     h.Type,
		Gedcom:   text,
		Settings: im.settings,
		Imported: im.now(),
	}
	if err := handler.Insert(ctx, im.store, rec); err != nil {
		return out, fmt.Errorf("insert %s %s: %w", h.Type, h.Xref, err)
	}

	if err := im.updateIndexes(ctx, handler.Indexes, h, rec.Gedcom); err != nil {
		return out, err
	}
	return out, nil
}

// CommitCache keeps the places created by the last imported record. Call it
// once that record is durable (its savepoint released).
func (im *Importer) CommitCache() {
	im.places.commit()
}

// convertInlineMedia hoists embedded OBJE structures into media records,
// level 1 first, and replaces each with a link.
func (im *Importer) convertInlineMedia(ctx context.Context, text string, out *RecordOutcome) (string, error) {
	for level := 1; level <= gedcom.MaxInlineMediaLevel; level++ {
		for {
			m, ok := gedcom.FindInlineMedia(text, level)
			if !ok {
				break
			}
			xref, created, err := im.createMediaObject(ctx, m)
			if err != nil {
				return text, err
			}
			if created {
				out.MediaHoisted++
			} else {
				out.MediaReused++
			}
			text = m.ReplaceIn(text, m.Link(xref))
		}
	}
	return text, nil
}

// createMediaObject returns the xref of a media record for m, reusing one
// with the same file and title.
func (im *Importer) createMediaObject(ctx context.Context, m gedcom.InlineMedia) (string, bool, error) {
	xref, err := im.store.FindMediaByFile(ctx, db.FindMediaByFileParams{
		FileName: m.File,
		Title:    m.Title,
		TreeID:   im.treeID,
	})
	if err == nil {
		return xref, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("find media %q: %w", m.File, err)
	}

	xref, err = im.newXref(ctx, "OBJE", im.settings.MediaIDPrefix)
	if err != nil {
		return "", false, err
	}
	if err := im.store.InsertMedia(ctx, MediaParams(im.treeID, xref, m.Record(xref))); err != nil {
		return "", false, fmt.Errorf("insert media %s: %w", xref, err)
	}
	return xref, true, nil
}

// newXref allocates the next unused xref for a record type.
func (im *Importer) newXref(ctx context.Context, recordType, prefix string) (string, error) {
	for {
		n, err := im.store.NextRecordID(ctx, db.NextRecordIDParams{TreeID: im.treeID, RecordType: recordType})
		if err != nil {
			return "", fmt.Errorf("allocate %s id: %w", recordType, err)
		}
		xref := prefix + strconv.FormatInt(n, 10)
		exists, err := im.store.XrefExists(ctx, db.RecordKey{Xref: xref, TreeID: im.treeID})
		if err != nil {
			return "", fmt.Errorf("check xref %s: %w", xref, err)
		}
		if !exists {
			return xref, nil
		}
	}
}

// relinkMedia re-adds media links the record had before, for trees edited
// in programs that drop OBJE links.
func (im *Importer) relinkMedia(ctx context.Context, xref, text string) (string, error) {
	ids, err := im.store.ListLinkedMedia(ctx, db.RecordKey{Xref: xref, TreeID: im.treeID})
	if err != nil {
		return text, fmt.Errorf("list media links of %s: %w", xref, err)
	}
	for _, id := range ids {
		link := "\n1 OBJE @" + id + "@"
		if strings.Contains(text+"\n", link+"\n") {
			continue
		}
		text += link
	}
	return text, nil
}

// MediaParams builds the media row of an OBJE record. The title falls back
// to the file name, matching how inline media are looked up.
func MediaParams(treeID int32, xref, text string) db.InsertMediaParams {
	f := gedcom.ParseMediaFacts(text)
	title := f.Title
	if title == "" {
		title = f.File
	}
	return db.InsertMediaParams{
		ID:       xref,
		Ext:      f.Extension,
		Type:     f.Type,
		Title:    title,
		FileName: f.File,
		TreeID:   treeID,
		Gedcom:   text,
	}
}

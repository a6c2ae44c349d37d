package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/jackc/pgx/v5"
)

// updateIndexes writes the secondary index rows selected by set.
func (im *Importer) updateIndexes(ctx context.Context, set IndexSet, h gedcom.Header, text string) error {
	if set.Has(IndexPlaces) {
		if err := im.updatePlaces(ctx, h.Xref, text); err != nil {
			return fmt.Errorf("index places of %s: %w", h.Xref, err)
		}
	}
	if set.Has(IndexDates) {
		if err := im.updateDates(ctx, h.Xref, text); err != nil {
			return fmt.Errorf("index dates of %s: %w", h.Xref, err)
		}
	}
	if set.Has(IndexLinks) {
		if err := im.updateLinks(ctx, h.Xref, text); err != nil {
			return fmt.Errorf("index links of %s: %w", h.Xref, err)
		}
	}
	if set.Has(IndexNames) {
		if err := im.updateNames(ctx, h, text); err != nil {
			return fmt.Errorf("index names of %s: %w", h.Xref, err)
		}
	}
	return nil
}

// placeCache maps lower(name)_parentID to a place id. Entries added while
// importing a record stay pending until the record is committed.
type placeCache struct {
	committed map[string]int32
	pending   map[string]int32
}

func newPlaceCache() placeCache {
	return placeCache{
		committed: make(map[string]int32),
		pending:   make(map[string]int32),
	}
}

func placeKey(name string, parentID int32) string {
	return strings.ToLower(name) + "_" + strconv.FormatInt(int64(parentID), 10)
}

func (c *placeCache) get(key string) (int32, bool) {
	if id, ok := c.committed[key]; ok {
		return id, true
	}
	id, ok := c.pending[key]
	return id, ok
}

func (c *placeCache) put(key string, id int32) {
	c.pending[key] = id
}

func (c *placeCache) commit() {
	for k, id := range c.pending {
		c.committed[k] = id
	}
	clear(c.pending)
}

func (c *placeCache) discard() {
	clear(c.pending)
}

// updatePlaces links the record to every level of every place it mentions.
// Levels are looked up from the top down until one is missing; from there
// on every level is new and is inserted without looking.
func (im *Importer) updatePlaces(ctx context.Context, xref, text string) error {
	linked := make(map[int32]bool)
	link := func(id int32) error {
		if linked[id] {
			return nil
		}
		linked[id] = true
		return im.store.InsertPlaceLink(ctx, db.InsertPlaceLinkParams{PlaceID: id, Xref: xref, TreeID: im.treeID})
	}

	for _, place := range gedcom.ExtractPlaces(text) {
		var parentID int32
		search := true
		for _, name := range gedcom.PlaceHierarchy(place) {
			key := placeKey(name, parentID)
			if id, ok := im.places.get(key); ok {
				if err := link(id); err != nil {
					return err
				}
				parentID = id
				continue
			}

			var id int32
			if search {
				found, err := im.store.GetPlaceID(ctx, db.GetPlaceIDParams{TreeID: im.treeID, ParentID: parentID, Place: name})
				switch {
				case err == nil:
					id = found
				case errors.Is(err, pgx.ErrNoRows):
					search = false
				default:
					return fmt.Errorf("look up place %q: %w", name, err)
				}
			}
			if !search {
				created, err := im.store.InsertPlace(ctx, db.InsertPlaceParams{
					Place:      name,
					ParentID:   parentID,
					TreeID:     im.treeID,
					StdSoundex: ToPgText(gedcom.SoundexStd(name)),
					DMSoundex:  ToPgText(gedcom.SoundexDM(name)),
				})
				if err != nil {
					return fmt.Errorf("insert place %q: %w", name, err)
				}
				id = created
			}

			if err := link(id); err != nil {
				return err
			}
			im.places.put(key, id)
			parentID = id
		}
	}
	return nil
}

// updateDates writes one row per date of every dated fact, two for ranges
// and periods.
func (im *Importer) updateDates(ctx context.Context, xref, text string) error {
	for _, fd := range gedcom.ExtractFactDates(text) {
		if err := im.insertDate(ctx, xref, fd.Fact, fd.Date.Date1); err != nil {
			return err
		}
		if fd.Date.Date2 != nil {
			if err := im.insertDate(ctx, xref, fd.Fact, *fd.Date.Date2); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *Importer) insertDate(ctx context.Context, xref, fact string, d gedcom.CalendarDate) error {
	return im.store.InsertDate(ctx, db.InsertDateParams{
		Day:        int16(d.Day),
		Month:      ToPgText(d.MonthToken()),
		Mon:        int16(d.Month),
		Year:       int16(d.Year),
		JulianDay1: int32(d.MinJD),
		JulianDay2: int32(d.MaxJD),
		Fact:       fact,
		Xref:       xref,
		TreeID:     im.treeID,
		Type:       d.Calendar.Escape(),
	})
}

func (im *Importer) updateLinks(ctx context.Context, xref, text string) error {
	for _, l := range gedcom.ExtractLinks(text) {
		err := im.store.InsertLink(ctx, db.InsertLinkParams{From: xref, To: l.Target, Type: l.Tag, TreeID: im.treeID})
		if err != nil {
			return err
		}
	}
	return nil
}

// updateNames writes the name index. Individuals get full name parts and
// soundex codes; other records only a sortable display name.
func (im *Importer) updateNames(ctx context.Context, h gedcom.Header, text string) error {
	if h.Type != "INDI" {
		for n, name := range gedcom.ParseRecordNames(h, text) {
			err := im.store.InsertName(ctx, db.InsertNameParams{
				TreeID: im.treeID,
				Xref:   h.Xref,
				Num:    int32(n),
				Type:   name.Type,
				Sort:   name.Sort,
				Full:   name.Full,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	for n, name := range gedcom.ParseIndividualNames(text) {
		p := db.InsertNameParams{
			TreeID:  im.treeID,
			Xref:    h.Xref,
			Num:     int32(n),
			Type:    name.Type,
			Sort:    name.Sort,
			Full:    name.Full,
			Surname: ToPgText(name.Surname),
			Surn:    ToPgText(name.Surn),
			Givn:    ToPgText(name.Givn),
		}
		if name.Givn != gedcom.UnknownGiven {
			p.SoundexGivnStd = ToPgText(gedcom.SoundexStd(name.Givn))
			p.SoundexGivnDM = ToPgText(gedcom.SoundexDM(name.Givn))
		}
		if name.Surn != gedcom.UnknownSurname {
			p.SoundexSurnStd = ToPgText(gedcom.SoundexStd(name.Surname))
			p.SoundexSurnDM = ToPgText(gedcom.SoundexDM(name.Surname))
		}
		if err := im.store.InsertName(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/gedimport/internal/core"
	_ "github.com/JonMunkholm/gedimport/internal/core/records"
	"github.com/JonMunkholm/gedimport/internal/core/memstore"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
)

// newTree returns an empty store with one tree.
func newTree(t *testing.T) (*memstore.DB, int32) {
	t.Helper()
	store := memstore.New()
	tree, err := store.CreateTree(context.Background(), "demo")
	if err != nil {
		t.Fatalf("CreateTree() error = %v", err)
	}
	return store, tree.ID
}

func importAll(t *testing.T, im *core.Importer, records ...string) []core.RecordOutcome {
	t.Helper()
	var out []core.RecordOutcome
	for _, raw := range records {
		o, err := im.ImportRecord(context.Background(), raw, false)
		if err != nil {
			t.Fatalf("ImportRecord(%q) error = %v", raw, err)
		}
		im.CommitCache()
		out = append(out, o)
	}
	return out
}

type placeRow struct {
	Place  string
	Parent int32
}

func placeRows(ps []memstore.Place) []placeRow {
	var out []placeRow
	for _, p := range ps {
		out = append(out, placeRow{Place: p.Place, Parent: p.ParentID})
	}
	return out
}

// ----------------------------------------------------------------------------
// Individuals
// ----------------------------------------------------------------------------

func TestImportRecord_Individual(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	raw := "0 @I1@ INDI\r\n1 NAME John /Smith/\r\n1 SEX m\r\n1 BIRT\r\n2 DATE 1 JAN 1900\r\n2 PLAC London,England\r\n1 FAMS @F1@"
	out := importAll(t, im, raw)[0]

	if out.Xref != "I1" || out.Type != "INDI" || out.Skipped {
		t.Fatalf("outcome = %+v", out)
	}

	row, ok := store.Individual(treeID, "I1")
	if !ok {
		t.Fatal("individual I1 not stored")
	}
	if row.Sex != "M" {
		t.Errorf("Sex = %q, want M", row.Sex)
	}
	if row.Rin != "I1" {
		t.Errorf("Rin = %q, want I1", row.Rin)
	}
	if strings.Contains(row.Gedcom, "\r") {
		t.Errorf("Gedcom still has carriage returns: %q", row.Gedcom)
	}
	if !strings.HasPrefix(row.Gedcom, "0 @I1@ INDI\n1 NAME John /Smith/\n") {
		t.Errorf("Gedcom = %q", row.Gedcom)
	}
	if !strings.Contains(row.Gedcom, "\n2 PLAC London, England") {
		t.Errorf("place not normalized: %q", row.Gedcom)
	}

	wantPlaces := []placeRow{{Place: "England", Parent: 0}, {Place: "London", Parent: 1}}
	if diff := cmp.Diff(wantPlaces, placeRows(store.Places(treeID))); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{1, 2}, store.PlaceLinks(treeID, "I1")); diff != "" {
		t.Errorf("place links mismatch (-want +got):\n%s", diff)
	}

	dates := store.Dates(treeID, "I1")
	if len(dates) != 1 {
		t.Fatalf("dates = %+v, want one row", dates)
	}
	d := dates[0]
	if d.Fact != "BIRT" || d.Day != 1 || d.Mon != 1 || d.Year != 1900 || d.Month.String != "JAN" {
		t.Errorf("date row = %+v", d)
	}
	if d.JulianDay1 != 2415021 || d.JulianDay2 != 2415021 {
		t.Errorf("julian days = %d..%d, want 2415021", d.JulianDay1, d.JulianDay2)
	}
	if d.Type != "@#DGREGORIAN@" {
		t.Errorf("calendar = %q", d.Type)
	}

	wantLinks := []db.InsertLinkParams{{From: "I1", To: "F1", Type: "FAMS", TreeID: treeID}}
	if diff := cmp.Diff(wantLinks, store.Links(treeID, "I1")); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}

	names := store.Names(treeID, "I1")
	if len(names) != 1 {
		t.Fatalf("names = %+v, want one row", names)
	}
	n := names[0]
	if n.Type != "NAME" || n.Full != "John Smith" || n.Sort != "Smith,John" {
		t.Errorf("name row = %+v", n)
	}
	if n.Surn.String != "Smith" || n.Givn.String != "John" || n.Surname.String != "Smith" {
		t.Errorf("name parts = %+v", n)
	}
	if !n.SoundexSurnStd.Valid || !n.SoundexGivnDM.Valid {
		t.Errorf("soundex codes missing: %+v", n)
	}
}

func TestImportRecord_OversizedYear(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	importAll(t, im, "0 @I1@ INDI\n1 BIRT\n2 DATE 3 MAR 70000")

	dates := store.Dates(treeID, "I1")
	if len(dates) != 1 {
		t.Fatalf("dates = %+v, want one row", dates)
	}
	d := dates[0]
	if d.Year != 0 || d.JulianDay1 != 0 || d.JulianDay2 != 0 {
		t.Errorf("date row = %+v, want an unknown year without julian days", d)
	}
	if d.Day != 3 || d.Mon != 3 {
		t.Errorf("day/month = %d/%d, want 3/3", d.Day, d.Mon)
	}
}

func TestImportRecord_UseRIN(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{UseRIN: true})
	importAll(t, im, "0 @I1@ INDI\n1 RIN 42", "0 @I2@ INDI\n1 NAME A /B/")

	if row, _ := store.Individual(treeID, "I1"); row.Rin != "42" {
		t.Errorf("I1 Rin = %q, want 42", row.Rin)
	}
	if row, _ := store.Individual(treeID, "I2"); row.Rin != "I2" {
		t.Errorf("I2 Rin = %q, want I2", row.Rin)
	}
}

func TestImportRecord_GenerateUIDs(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{GenerateUIDs: true})
	importAll(t, im,
		"0 @I1@ INDI\n1 NAME A /B/",
		"0 @I2@ INDI\n1 _UID 0123",
		"0 TRLR",
	)

	row, _ := store.Individual(treeID, "I1")
	uid, ok := gedcom.FirstValue(row.Gedcom, 1, "_UID")
	if !ok || len(uid) != 36 {
		t.Errorf("I1 _UID = %q, want a 36 character id", uid)
	}

	row, _ = store.Individual(treeID, "I2")
	if strings.Count(row.Gedcom, "\n1 _UID ") != 1 {
		t.Errorf("existing _UID duplicated: %q", row.Gedcom)
	}

	trlr, _ := store.Other(treeID, "TRLR")
	if strings.Contains(trlr.Gedcom, "_UID") {
		t.Errorf("records without xref get no _UID: %q", trlr.Gedcom)
	}
}

// ----------------------------------------------------------------------------
// Other record types
// ----------------------------------------------------------------------------

func TestImportRecord_Family(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantHusb string
		wantWife string
		wantChil int32
	}{
		{
			name:     "both spouses",
			raw:      "0 @F1@ FAM\n1 HUSB @I1@\n1 WIFE @I2@\n1 CHIL @I3@\n1 CHIL @I4@",
			wantHusb: "I1",
			wantWife: "I2",
			wantChil: 2,
		},
		{
			name:     "NCHI above child count",
			raw:      "0 @F1@ FAM\n1 WIFE @I2@\n1 CHIL @I3@\n1 NCHI 5",
			wantWife: "I2",
			wantChil: 5,
		},
		{
			name: "no members",
			raw:  "0 @F1@ FAM\n1 MARR Y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, treeID := newTree(t)
			importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), tt.raw)

			row, ok := store.Family(treeID, "F1")
			if !ok {
				t.Fatal("family F1 not stored")
			}
			if row.Husb.String != tt.wantHusb || row.Husb.Valid != (tt.wantHusb != "") {
				t.Errorf("Husb = %+v, want %q", row.Husb, tt.wantHusb)
			}
			if row.Wife.String != tt.wantWife || row.Wife.Valid != (tt.wantWife != "") {
				t.Errorf("Wife = %+v, want %q", row.Wife, tt.wantWife)
			}
			if row.NumChil != tt.wantChil {
				t.Errorf("NumChil = %d, want %d", row.NumChil, tt.wantChil)
			}
			if names := store.Names(treeID, "F1"); len(names) != 0 {
				t.Errorf("families have no name rows, got %+v", names)
			}
		})
	}
}

func TestImportRecord_SourceName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "0 @S1@ SOUR\n1 TITL Parish register\n1 ABBR PR", want: "Parish register"},
		{raw: "0 @S1@ SOUR\n1 ABBR PR", want: "PR"},
		{raw: "0 @S1@ SOUR\n1 AUTH Someone", want: "S1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			store, treeID := newTree(t)
			importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), tt.raw)
			row, ok := store.Source(treeID, "S1")
			if !ok {
				t.Fatal("source S1 not stored")
			}
			if row.Name != tt.want {
				t.Errorf("Name = %q, want %q", row.Name, tt.want)
			}
		})
	}
}

func TestImportRecord_HeadGetsDate(t *testing.T) {
	store, treeID := newTree(t)
	importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}),
		"0 HEAD\n1 CHAR UTF-8",
		"0 @N1@ NOTE dated\n1 DATE 1 JAN 2000",
	)

	head, ok := store.Other(treeID, "HEAD")
	if !ok {
		t.Fatal("HEAD not stored")
	}
	if head.Type != "HEAD" {
		t.Errorf("Type = %q, want HEAD", head.Type)
	}
	date, ok := gedcom.FirstValue(head.Gedcom, 1, "DATE")
	if !ok || date != strings.ToUpper(date) {
		t.Errorf("HEAD date = %q, want an upper-case import date", date)
	}

	note, _ := store.Other(treeID, "N1")
	if strings.Count(note.Gedcom, "\n1 DATE ") != 1 {
		t.Errorf("only HEAD gets a date: %q", note.Gedcom)
	}
}

func TestImportRecord_UnescapesAt(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})
	ctx := context.Background()

	if _, err := im.ImportRecord(ctx, "0 @N1@ NOTE mail me@@example.com", false); err != nil {
		t.Fatalf("ImportRecord() error = %v", err)
	}
	if _, err := im.ImportRecord(ctx, "0 @N2@ NOTE mail me@@example.com", true); err != nil {
		t.Fatalf("ImportRecord(update) error = %v", err)
	}

	n1, _ := store.Other(treeID, "N1")
	if n1.Gedcom != "0 @N1@ NOTE mail me@example.com" {
		t.Errorf("file text Gedcom = %q", n1.Gedcom)
	}
	n2, _ := store.Other(treeID, "N2")
	if n2.Gedcom != "0 @N2@ NOTE mail me@@example.com" {
		t.Errorf("edited text Gedcom = %q", n2.Gedcom)
	}
}

func TestImportRecord_SkipsCustomTypes(t *testing.T) {
	store, treeID := newTree(t)
	out := importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), "0 @X1@ _PLAC\n1 NAME Somewhere")[0]

	if !out.Skipped {
		t.Errorf("Skipped = false for a custom record type")
	}
	if _, ok := store.Other(treeID, "X1"); ok {
		t.Error("custom record stored")
	}
}

func TestImportRecord_Invalid(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	for _, raw := range []string{"", "garbage", "1 NAME orphan line"} {
		_, err := im.ImportRecord(context.Background(), raw, false)
		if !errors.Is(err, gedcom.ErrInvalidRecord) {
			t.Errorf("ImportRecord(%q) error = %v, want ErrInvalidRecord", raw, err)
		}
	}
}

func TestImportRecord_Duplicate(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})
	importAll(t, im, "0 @I1@ INDI\n1 NAME A /B/")

	_, err := im.ImportRecord(context.Background(), "0 @I1@ INDI\n1 NAME C /D/", false)
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if info := core.MapError(err); info.Code != "DB001" {
		t.Errorf("MapError code = %q, want DB001", info.Code)
	}
}

// ----------------------------------------------------------------------------
// Places
// ----------------------------------------------------------------------------

func TestImportRecord_PlacesShared(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})
	importAll(t, im,
		"0 @I1@ INDI\n1 BIRT\n2 PLAC London, England\n1 DEAT\n2 PLAC London, England",
		"0 @I2@ INDI\n1 BIRT\n2 PLAC Leeds, England",
		"0 @F1@ FAM\n1 MARR\n2 PLAC london, ENGLAND",
	)

	want := []placeRow{
		{Place: "England", Parent: 0},
		{Place: "London", Parent: 1},
		{Place: "Leeds", Parent: 1},
	}
	if diff := cmp.Diff(want, placeRows(store.Places(treeID))); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{1, 2}, store.PlaceLinks(treeID, "I1")); diff != "" {
		t.Errorf("I1 links mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{1, 3}, store.PlaceLinks(treeID, "I2")); diff != "" {
		t.Errorf("I2 links mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{1, 2}, store.PlaceLinks(treeID, "F1")); diff != "" {
		t.Errorf("F1 links mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRecord_PlacesFoundAcrossImporters(t *testing.T) {
	store, treeID := newTree(t)
	importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), "0 @I1@ INDI\n1 BIRT\n2 PLAC Paris, France")
	importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), "0 @I2@ INDI\n1 BIRT\n2 PLAC Lyon, France")

	want := []placeRow{
		{Place: "France", Parent: 0},
		{Place: "Paris", Parent: 1},
		{Place: "Lyon", Parent: 1},
	}
	if diff := cmp.Diff(want, placeRows(store.Places(treeID))); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}
}

// A place cached by a record whose savepoint was rolled back must be
// inserted again by the next record.
func TestImportRecord_PlaceCacheAfterRollback(t *testing.T) {
	store, treeID := newTree(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	im := core.NewImporter(tx, treeID, core.TreeSettings{})

	if err := tx.Savepoint(ctx, "sp_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := im.ImportRecord(ctx, "0 @I1@ INDI\n1 BIRT\n2 PLAC Oslo, Norway", false); err != nil {
		t.Fatalf("ImportRecord() error = %v", err)
	}
	if err := tx.RollbackToSavepoint(ctx, "sp_1"); err != nil {
		t.Fatal(err)
	}

	if _, err := im.ImportRecord(ctx, "0 @I2@ INDI\n1 BIRT\n2 PLAC Oslo, Norway", false); err != nil {
		t.Fatalf("ImportRecord() error = %v", err)
	}
	im.CommitCache()
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	places := placeRows(store.Places(treeID))
	if len(places) != 2 || places[0].Place != "Norway" || places[1].Place != "Oslo" {
		t.Errorf("places = %+v, want Norway and Oslo", places)
	}
	if links := store.PlaceLinks(treeID, "I2"); len(links) != 2 {
		t.Errorf("I2 place links = %v, want 2", links)
	}
	if _, ok := store.Individual(treeID, "I1"); ok {
		t.Error("rolled back individual I1 was stored")
	}
}

// ----------------------------------------------------------------------------
// Inline media
// ----------------------------------------------------------------------------

func TestImportRecord_InlineMedia(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	outs := importAll(t, im,
		"0 @I1@ INDI\n1 NAME Jane /Doe/\n1 OBJE\n2 FILE photos/jane.jpg\n2 TITL Jane",
		"0 @I2@ INDI\n1 NAME Joan /Doe/\n1 OBJE\n2 FILE photos/jane.jpg\n2 TITL Jane",
	)

	if outs[0].MediaHoisted != 1 || outs[0].MediaReused != 0 {
		t.Errorf("first outcome = %+v, want one hoisted", outs[0])
	}
	if outs[1].MediaHoisted != 0 || outs[1].MediaReused != 1 {
		t.Errorf("second outcome = %+v, want one reused", outs[1])
	}

	media := store.Media(treeID)
	want := []db.InsertMediaParams{{
		ID:       "M1",
		Ext:      "jpg",
		Title:    "Jane",
		FileName: "photos/jane.jpg",
		TreeID:   treeID,
		Gedcom:   "0 @M1@ OBJE\n1 FILE photos/jane.jpg\n1 TITL Jane",
	}}
	if diff := cmp.Diff(want, media); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}

	for _, xref := range []string{"I1", "I2"} {
		row, _ := store.Individual(treeID, xref)
		if !strings.HasSuffix(row.Gedcom, "\n1 OBJE @M1@") {
			t.Errorf("%s Gedcom = %q, want a link to M1", xref, row.Gedcom)
		}
		if strings.Contains(row.Gedcom, "\n2 FILE") {
			t.Errorf("%s still has the inline block: %q", xref, row.Gedcom)
		}
		links := store.Links(treeID, xref)
		if len(links) != 1 || links[0].To != "M1" || links[0].Type != "OBJE" {
			t.Errorf("%s links = %+v", xref, links)
		}
	}
}

func TestImportRecord_InlineMediaNested(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{MediaIDPrefix: "X"})

	importAll(t, im, "0 @I1@ INDI\n1 BIRT\n2 SOUR @S1@\n3 OBJE\n4 FILE cert.png")

	row, _ := store.Individual(treeID, "I1")
	if !strings.Contains(row.Gedcom, "\n2 SOUR @S1@\n3 OBJE @X1@") {
		t.Errorf("Gedcom = %q, want a level 3 link", row.Gedcom)
	}
	media := store.Media(treeID)
	if len(media) != 1 {
		t.Fatalf("media = %+v, want one", media)
	}
	if media[0].ID != "X1" || media[0].Title != "cert.png" {
		t.Errorf("media row = %+v, want X1 titled by file", media[0])
	}
}

func TestImportRecord_InlineMediaSharedPrefix(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	out := importAll(t, im, "0 @I1@ INDI\n1 NAME Jane /Doe/"+
		"\n1 OBJE\n2 FILE a.jpg"+
		"\n1 OBJE\n2 FILE a.jpg\n2 TITL Portrait"+
		"\n1 OBJE\n2 FILE a.jpg")[0]

	if out.MediaHoisted != 2 {
		t.Errorf("MediaHoisted = %d, want 2", out.MediaHoisted)
	}

	row, _ := store.Individual(treeID, "I1")
	want := "0 @I1@ INDI\n1 NAME Jane /Doe/\n1 OBJE @M1@\n1 OBJE @M2@\n1 OBJE @M1@"
	if row.Gedcom != want {
		t.Errorf("Gedcom = %q, want %q", row.Gedcom, want)
	}

	var titles []string
	for _, m := range store.Media(treeID) {
		titles = append(titles, m.ID+"="+m.Title)
	}
	if diff := cmp.Diff([]string{"M1=a.jpg", "M2=Portrait"}, titles); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRecord_InlineMediaSkipsTakenXref(t *testing.T) {
	store, treeID := newTree(t)
	im := core.NewImporter(store, treeID, core.TreeSettings{})

	importAll(t, im,
		"0 @M1@ OBJE\n1 FILE existing.jpg",
		"0 @I1@ INDI\n1 OBJE\n2 FILE new.jpg",
	)

	row, _ := store.Individual(treeID, "I1")
	if strings.Contains(row.Gedcom, "@M1@") {
		t.Errorf("hoisted media reused a taken xref: %q", row.Gedcom)
	}
	if len(store.Media(treeID)) != 2 {
		t.Errorf("media = %+v, want two", store.Media(treeID))
	}
}

func TestImportRecord_KeepMediaRelinks(t *testing.T) {
	store, treeID := newTree(t)
	ctx := context.Background()

	err := store.InsertLink(ctx, db.InsertLinkParams{From: "I1", To: "M5", Type: "OBJE", TreeID: treeID})
	if err != nil {
		t.Fatal(err)
	}

	importAll(t, core.NewImporter(store, treeID, core.TreeSettings{KeepMedia: true}), "0 @I1@ INDI\n1 NAME A /B/")

	row, _ := store.Individual(treeID, "I1")
	if !strings.HasSuffix(row.Gedcom, "\n1 OBJE @M5@") {
		t.Errorf("Gedcom = %q, want the media link restored", row.Gedcom)
	}
}

// ----------------------------------------------------------------------------
// Names of non-individuals
// ----------------------------------------------------------------------------

func TestImportRecord_RecordNames(t *testing.T) {
	tests := []struct {
		raw      string
		xref     string
		wantFull string
	}{
		{raw: "0 @R1@ REPO\n1 NAME City archive", xref: "R1", wantFull: "City archive"},
		{raw: "0 @S1@ SOUR\n1 TITL Census", xref: "S1", wantFull: "Census"},
		{raw: "0 @N1@ NOTE First line\n1 CONT second", xref: "N1", wantFull: "First line"},
	}
	for _, tt := range tests {
		t.Run(tt.xref, func(t *testing.T) {
			store, treeID := newTree(t)
			importAll(t, core.NewImporter(store, treeID, core.TreeSettings{}), tt.raw)

			names := store.Names(treeID, tt.xref)
			if len(names) == 0 {
				t.Fatal("no name rows")
			}
			if names[0].Full != tt.wantFull {
				t.Errorf("Full = %q, want %q", names[0].Full, tt.wantFull)
			}
			if names[0].Surn.Valid || names[0].SoundexSurnStd.Valid {
				t.Errorf("non-individual name has surname parts: %+v", names[0])
			}
		})
	}
}

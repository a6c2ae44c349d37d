// Package memstore is an in-memory core.Database for tests. It models the
// tables closely enough to exercise the import pipeline: unique keys fail
// with a PostgreSQL unique_violation, misses return pgx.ErrNoRows and
// transactions and savepoints work on snapshots.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/gedimport/internal/core"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	_ core.Database = (*DB)(nil)
	_ core.Tx       = (*Tx)(nil)
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("memstore: transaction already finished")

type placeRow struct {
	ID         int32
	Place      string
	ParentID   int32
	TreeID     int32
	StdSoundex pgtype.Text
	DMSoundex  pgtype.Text
}

type placeLink struct {
	PlaceID int32
	Xref    string
	TreeID  int32
}

type nextKey struct {
	TreeID     int32
	RecordType string
}

type state struct {
	trees        []db.Tree
	settings     map[int32]map[string]string
	individuals  map[db.RecordKey]db.InsertIndividualParams
	families     map[db.RecordKey]db.InsertFamilyParams
	sources      map[db.RecordKey]db.InsertSourceParams
	media        map[db.RecordKey]db.InsertMediaParams
	other        map[db.RecordKey]db.InsertOtherParams
	nextIDs      map[nextKey]int64
	places       []placeRow
	placeLinks   map[placeLink]bool
	dates        []db.InsertDateParams
	links        map[db.InsertLinkParams]bool
	names        []db.InsertNameParams
	changes      []db.Change
	imports      []db.GedcomImport
	failures     []db.ImportFailure
	audit        []db.AuditLog
	archive      []db.AuditLogArchive
	lastTreeID   int32
	lastPlaceID  int32
	lastChangeID int32
}

func newState() *state {
	return &state{
		settings:    make(map[int32]map[string]string),
		individuals: make(map[db.RecordKey]db.InsertIndividualParams),
		families:    make(map[db.RecordKey]db.InsertFamilyParams),
		sources:     make(map[db.RecordKey]db.InsertSourceParams),
		media:       make(map[db.RecordKey]db.InsertMediaParams),
		other:       make(map[db.RecordKey]db.InsertOtherParams),
		nextIDs:     make(map[nextKey]int64),
		placeLinks:  make(map[placeLink]bool),
		links:       make(map[db.InsertLinkParams]bool),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	c := *s
	c.trees = append([]db.Tree(nil), s.trees...)
	c.settings = make(map[int32]map[string]string, len(s.settings))
	for id, m := range s.settings {
		c.settings[id] = cloneMap(m)
	}
	c.individuals = cloneMap(s.individuals)
	c.families = cloneMap(s.families)
	c.sources = cloneMap(s.sources)
	c.media = cloneMap(s.media)
	c.other = cloneMap(s.other)
	c.nextIDs = cloneMap(s.nextIDs)
	c.places = append([]placeRow(nil), s.places...)
	c.placeLinks = cloneMap(s.placeLinks)
	c.dates = append([]db.InsertDateParams(nil), s.dates...)
	c.links = cloneMap(s.links)
	c.names = append([]db.InsertNameParams(nil), s.names...)
	c.changes = append([]db.Change(nil), s.changes...)
	c.imports = append([]db.GedcomImport(nil), s.imports...)
	c.failures = append([]db.ImportFailure(nil), s.failures...)
	c.audit = append([]db.AuditLog(nil), s.audit...)
	c.archive = append([]db.AuditLogArchive(nil), s.archive...)
	return &c
}

func uniqueViolation(table, key string) error {
	return &pgconn.PgError{
		Code:           "23505",
		Message:        fmt.Sprintf("duplicate key value violates unique constraint %q", table+"_pkey"),
		Detail:         fmt.Sprintf("Key (%s) already exists.", key),
		TableName:      table,
		ConstraintName: table + "_pkey",
	}
}

// view implements the queries over one state.
type view struct {
	mu *sync.Mutex
	s  *state
}

// DB is the committed database.
type DB struct {
	view
	mu sync.Mutex
}

// New returns an empty database.
func New() *DB {
	d := &DB{}
	d.view = view{mu: &d.mu, s: newState()}
	return d
}

// Begin starts a transaction on a snapshot of the committed state.
func (d *DB) Begin(ctx context.Context) (core.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	snap := d.s.clone()
	d.mu.Unlock()

	tx := &Tx{parent: d, savepoints: make(map[string]*state)}
	tx.view = view{mu: &tx.mu, s: snap}
	return tx, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Tx is an open transaction.
type Tx struct {
	view
	mu         sync.Mutex
	parent     *DB
	savepoints map[string]*state
	done       bool
}

func (t *Tx) Savepoint(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.savepoints[name] = t.s.clone()
	return nil
}

func (t *Tx) RollbackToSavepoint(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	sp, ok := t.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	t.s = sp.clone()
	return nil
}

func (t *Tx) ReleaseSavepoint(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.savepoints[name]; !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true
	t.parent.mu.Lock()
	t.parent.s = t.s
	t.parent.mu.Unlock()
	return nil
}

// Rollback after Commit is a no-op, as with pgx.
func (t *Tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	return nil
}

// ---- trees and settings ----

func (v *view) GetTree(_ context.Context, id int32) (db.Tree, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.s.trees {
		if t.ID == id {
			return t, nil
		}
	}
	return db.Tree{}, pgx.ErrNoRows
}

func (v *view) GetTreeByName(_ context.Context, name string) (db.Tree, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.s.trees {
		if t.Name == name {
			return t, nil
		}
	}
	return db.Tree{}, pgx.ErrNoRows
}

func (v *view) CreateTree(_ context.Context, name string) (db.Tree, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.s.trees {
		if t.Name == name {
			return t, nil
		}
	}
	v.s.lastTreeID++
	t := db.Tree{
		ID:        v.s.lastTreeID,
		Name:      name,
		CreatedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	v.s.trees = append(v.s.trees, t)
	return t, nil
}

func (v *view) ListTrees(context.Context) ([]db.Tree, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := append([]db.Tree(nil), v.s.trees...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) ListTreeSettings(_ context.Context, treeID int32) ([]db.TreeSetting, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.TreeSetting
	for name, value := range v.s.settings[treeID] {
		out = append(out, db.TreeSetting{TreeID: treeID, Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) SetTreeSetting(_ context.Context, arg db.TreeSetting) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.s.settings[arg.TreeID] == nil {
		v.s.settings[arg.TreeID] = make(map[string]string)
	}
	v.s.settings[arg.TreeID][arg.Name] = arg.Value
	return nil
}

// ---- type tables ----

func (v *view) InsertIndividual(_ context.Context, arg db.InsertIndividualParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := db.RecordKey{Xref: arg.ID, TreeID: arg.TreeID}
	if _, ok := v.s.individuals[key]; ok {
		return uniqueViolation("individuals", arg.ID)
	}
	v.s.individuals[key] = arg
	return nil
}

func (v *view) InsertFamily(_ context.Context, arg db.InsertFamilyParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := db.RecordKey{Xref: arg.ID, TreeID: arg.TreeID}
	if _, ok := v.s.families[key]; ok {
		return uniqueViolation("families", arg.ID)
	}
	v.s.families[key] = arg
	return nil
}

func (v *view) InsertSource(_ context.Context, arg db.InsertSourceParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := db.RecordKey{Xref: arg.ID, TreeID: arg.TreeID}
	if _, ok := v.s.sources[key]; ok {
		return uniqueViolation("sources", arg.ID)
	}
	v.s.sources[key] = arg
	return nil
}

func (v *view) InsertMedia(_ context.Context, arg db.InsertMediaParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := db.RecordKey{Xref: arg.ID, TreeID: arg.TreeID}
	if _, ok := v.s.media[key]; ok {
		return uniqueViolation("media", arg.ID)
	}
	v.s.media[key] = arg
	return nil
}

func (v *view) InsertOther(_ context.Context, arg db.InsertOtherParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := db.RecordKey{Xref: arg.ID, TreeID: arg.TreeID}
	if _, ok := v.s.other[key]; ok {
		return uniqueViolation("other", arg.ID)
	}
	if len(arg.Type) > 15 {
		arg.Type = arg.Type[:15]
	}
	v.s.other[key] = arg
	return nil
}

func (v *view) DeleteIndividual(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.s.individuals, arg)
	return nil
}

func (v *view) DeleteFamily(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.s.families, arg)
	return nil
}

func (v *view) DeleteSource(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.s.sources, arg)
	return nil
}

func (v *view) DeleteMedia(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.s.media, arg)
	return nil
}

func (v *view) DeleteOther(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.s.other, arg)
	return nil
}

func (v *view) GetRecord(_ context.Context, arg db.RecordKey) (db.Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, ok := v.s.individuals[arg]; ok {
		return db.Record{Xref: r.ID, Type: "INDI", Gedcom: r.Gedcom}, nil
	}
	if r, ok := v.s.families[arg]; ok {
		return db.Record{Xref: r.ID, Type: "FAM", Gedcom: r.Gedcom}, nil
	}
	if r, ok := v.s.sources[arg]; ok {
		return db.Record{Xref: r.ID, Type: "SOUR", Gedcom: r.Gedcom}, nil
	}
	if r, ok := v.s.media[arg]; ok {
		return db.Record{Xref: r.ID, Type: "OBJE", Gedcom: r.Gedcom}, nil
	}
	if r, ok := v.s.other[arg]; ok {
		return db.Record{Xref: r.ID, Type: r.Type, Gedcom: r.Gedcom}, nil
	}
	return db.Record{}, pgx.ErrNoRows
}

func (v *view) FindMediaByFile(_ context.Context, arg db.FindMediaByFileParams) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []string
	for _, m := range v.s.media {
		if m.TreeID == arg.TreeID && m.FileName == arg.FileName && m.Title == arg.Title {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return "", pgx.ErrNoRows
	}
	sort.Strings(ids)
	return ids[0], nil
}

func (v *view) NextRecordID(_ context.Context, arg db.NextRecordIDParams) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := nextKey(arg)
	v.s.nextIDs[key]++
	return v.s.nextIDs[key], nil
}

func (v *view) XrefExists(_ context.Context, arg db.RecordKey) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.s.individuals[arg]; ok {
		return true, nil
	}
	if _, ok := v.s.families[arg]; ok {
		return true, nil
	}
	if _, ok := v.s.sources[arg]; ok {
		return true, nil
	}
	if _, ok := v.s.media[arg]; ok {
		return true, nil
	}
	if _, ok := v.s.other[arg]; ok {
		return true, nil
	}
	for _, c := range v.s.changes {
		if c.TreeID == arg.TreeID && c.Xref == arg.Xref {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) CountRecords(_ context.Context, treeID int32) (db.RecordCounts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var c db.RecordCounts
	for k := range v.s.individuals {
		if k.TreeID == treeID {
			c.Individuals++
		}
	}
	for k := range v.s.families {
		if k.TreeID == treeID {
			c.Families++
		}
	}
	for k := range v.s.sources {
		if k.TreeID == treeID {
			c.Sources++
		}
	}
	for k := range v.s.media {
		if k.TreeID == treeID {
			c.Media++
		}
	}
	for k := range v.s.other {
		if k.TreeID == treeID {
			c.Other++
		}
	}
	for _, p := range v.s.places {
		if p.TreeID == treeID {
			c.Places++
		}
	}
	for _, ch := range v.s.changes {
		if ch.TreeID == treeID && ch.Status == db.ChangePending {
			c.PendingChanges++
		}
	}
	return c, nil
}

// ---- index tables ----

func (v *view) GetPlaceID(_ context.Context, arg db.GetPlaceIDParams) (int32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.s.places {
		if p.TreeID == arg.TreeID && p.ParentID == arg.ParentID && strings.EqualFold(p.Place, arg.Place) {
			return p.ID, nil
		}
	}
	return 0, pgx.ErrNoRows
}

func (v *view) InsertPlace(_ context.Context, arg db.InsertPlaceParams) (int32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.s.places {
		if p.TreeID == arg.TreeID && p.ParentID == arg.ParentID && strings.EqualFold(p.Place, arg.Place) {
			return p.ID, nil
		}
	}
	v.s.lastPlaceID++
	v.s.places = append(v.s.places, placeRow{
		ID:         v.s.lastPlaceID,
		Place:      arg.Place,
		ParentID:   arg.ParentID,
		TreeID:     arg.TreeID,
		StdSoundex: arg.StdSoundex,
		DMSoundex:  arg.DMSoundex,
	})
	return v.s.lastPlaceID, nil
}

func (v *view) InsertPlaceLink(_ context.Context, arg db.InsertPlaceLinkParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s.placeLinks[placeLink(arg)] = true
	return nil
}

func (v *view) DeletePlaceLinks(_ context.Context, arg db.RecordKey) ([]int32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []int32
	for l := range v.s.placeLinks {
		if l.Xref == arg.Xref && l.TreeID == arg.TreeID {
			ids = append(ids, l.PlaceID)
			delete(v.s.placeLinks, l)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (v *view) DeleteUnlinkedPlaces(_ context.Context, arg db.DeleteUnlinkedPlacesParams) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	candidates := make(map[int32]bool, len(arg.PlaceIDs))
	for _, id := range arg.PlaceIDs {
		candidates[id] = true
	}
	linked := make(map[int32]bool)
	for l := range v.s.placeLinks {
		if l.TreeID == arg.TreeID {
			linked[l.PlaceID] = true
		}
	}
	var n int64
	kept := v.s.places[:0]
	for _, p := range v.s.places {
		if p.TreeID == arg.TreeID && candidates[p.ID] && !linked[p.ID] {
			n++
			continue
		}
		kept = append(kept, p)
	}
	v.s.places = kept
	return n, nil
}

func (v *view) InsertDate(_ context.Context, arg db.InsertDateParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(arg.Fact) > 15 {
		arg.Fact = arg.Fact[:15]
	}
	v.s.dates = append(v.s.dates, arg)
	return nil
}

func (v *view) DeleteDates(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.s.dates[:0]
	for _, d := range v.s.dates {
		if d.Xref == arg.Xref && d.TreeID == arg.TreeID {
			continue
		}
		kept = append(kept, d)
	}
	v.s.dates = kept
	return nil
}

func (v *view) InsertLink(_ context.Context, arg db.InsertLinkParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s.links[arg] = true
	return nil
}

func (v *view) DeleteLinksFrom(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for l := range v.s.links {
		if l.From == arg.Xref && l.TreeID == arg.TreeID {
			delete(v.s.links, l)
		}
	}
	return nil
}

func (v *view) ListLinkedMedia(_ context.Context, arg db.RecordKey) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []string
	for l := range v.s.links {
		if l.From == arg.Xref && l.TreeID == arg.TreeID && l.Type == "OBJE" {
			ids = append(ids, l.To)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (v *view) InsertName(_ context.Context, arg db.InsertNameParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, n := range v.s.names {
		if n.TreeID == arg.TreeID && n.Xref == arg.Xref && n.Num == arg.Num {
			return uniqueViolation("name", fmt.Sprintf("%s, %d", arg.Xref, arg.Num))
		}
	}
	v.s.names = append(v.s.names, arg)
	return nil
}

func (v *view) DeleteNames(_ context.Context, arg db.RecordKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.s.names[:0]
	for _, n := range v.s.names {
		if n.Xref == arg.Xref && n.TreeID == arg.TreeID {
			continue
		}
		kept = append(kept, n)
	}
	v.s.names = kept
	return nil
}

func (v *view) EmptyTree(_ context.Context, arg db.EmptyTreeParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.s
	for k := range s.individuals {
		if k.TreeID == arg.TreeID {
			delete(s.individuals, k)
		}
	}
	for k := range s.families {
		if k.TreeID == arg.TreeID {
			delete(s.families, k)
		}
	}
	for k := range s.sources {
		if k.TreeID == arg.TreeID {
			delete(s.sources, k)
		}
	}
	for k := range s.other {
		if k.TreeID == arg.TreeID {
			delete(s.other, k)
		}
	}
	s.places = filter(s.places, func(p placeRow) bool { return p.TreeID != arg.TreeID })
	for l := range s.placeLinks {
		if l.TreeID == arg.TreeID {
			delete(s.placeLinks, l)
		}
	}
	s.names = filter(s.names, func(n db.InsertNameParams) bool { return n.TreeID != arg.TreeID })
	s.dates = filter(s.dates, func(d db.InsertDateParams) bool { return d.TreeID != arg.TreeID })
	s.changes = filter(s.changes, func(c db.Change) bool { return c.TreeID != arg.TreeID })
	for l := range s.links {
		if l.TreeID == arg.TreeID && (!arg.KeepMedia || l.Type != "OBJE") {
			delete(s.links, l)
		}
	}
	if !arg.KeepMedia {
		for k := range s.media {
			if k.TreeID == arg.TreeID {
				delete(s.media, k)
			}
		}
		for k := range s.nextIDs {
			if k.TreeID == arg.TreeID {
				delete(s.nextIDs, k)
			}
		}
	}
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// ---- changes ----

func (v *view) InsertChange(_ context.Context, arg db.InsertChangeParams) (db.Change, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s.lastChangeID++
	c := db.Change{
		ID:        v.s.lastChangeID,
		Time:      pgtype.Timestamptz{Time: time.Now(), Valid: true},
		Status:    db.ChangePending,
		TreeID:    arg.TreeID,
		Xref:      arg.Xref,
		OldGedcom: arg.OldGedcom,
		NewGedcom: arg.NewGedcom,
		UserName:  arg.UserName,
	}
	v.s.changes = append(v.s.changes, c)
	return c, nil
}

func (v *view) ListPendingChanges(_ context.Context, arg db.RecordKey) ([]db.Change, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.Change
	for _, c := range v.s.changes {
		if c.Status == db.ChangePending && c.Xref == arg.Xref && c.TreeID == arg.TreeID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v *view) ListPendingXrefs(_ context.Context, treeID int32) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	seen := make(map[string]bool)
	for _, c := range v.s.changes {
		if c.Status == db.ChangePending && c.TreeID == treeID && !seen[c.Xref] {
			seen[c.Xref] = true
			out = append(out, c.Xref)
		}
	}
	return out, nil
}

func (v *view) SetChangeStatus(_ context.Context, arg db.SetChangeStatusParams) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var n int64
	for i, c := range v.s.changes {
		if c.Status == db.ChangePending && c.Xref == arg.Xref && c.TreeID == arg.TreeID {
			v.s.changes[i].Status = arg.Status
			n++
		}
	}
	return n, nil
}

func (v *view) ListChanges(_ context.Context, arg db.ListChangesParams) ([]db.Change, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.Change
	for i := len(v.s.changes) - 1; i >= 0; i-- {
		c := v.s.changes[i]
		if c.TreeID == arg.TreeID && (arg.Status == "" || c.Status == arg.Status) {
			out = append(out, c)
		}
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func page[T any](items []T, limit, offset int32) []T {
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

// ---- imports ----

func (v *view) CreateImport(_ context.Context, arg db.CreateImportParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s.imports = append(v.s.imports, db.GedcomImport{
		ID:        arg.ID,
		TreeID:    arg.TreeID,
		FileName:  arg.FileName,
		Status:    arg.Status,
		StartedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	})
	return nil
}

func (v *view) FinishImport(_ context.Context, arg db.FinishImportParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, imp := range v.s.imports {
		if imp.ID == arg.ID {
			imp.Charset = arg.Charset
			imp.Status = arg.Status
			imp.RecordsTotal = arg.RecordsTotal
			imp.RecordsImported = arg.RecordsImported
			imp.RecordsFailed = arg.RecordsFailed
			imp.MediaHoisted = arg.MediaHoisted
			imp.Error = arg.Error
			imp.FinishedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			v.s.imports[i] = imp
		}
	}
	return nil
}

func (v *view) GetImport(_ context.Context, id pgtype.UUID) (db.GedcomImport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, imp := range v.s.imports {
		if imp.ID == id {
			return imp, nil
		}
	}
	return db.GedcomImport{}, pgx.ErrNoRows
}

func (v *view) ListImports(_ context.Context, arg db.ListImportsParams) ([]db.GedcomImport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.GedcomImport
	for i := len(v.s.imports) - 1; i >= 0; i-- {
		if v.s.imports[i].TreeID == arg.TreeID {
			out = append(out, v.s.imports[i])
		}
	}
	return page(out, arg.Limit, 0), nil
}

func (v *view) InsertImportFailure(_ context.Context, arg db.ImportFailure) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s.failures = append(v.s.failures, arg)
	return nil
}

func (v *view) ListImportFailures(_ context.Context, id pgtype.UUID) ([]db.ImportFailure, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.ImportFailure
	for _, f := range v.s.failures {
		if f.ImportID == id {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordNumber < out[j].RecordNumber })
	return out, nil
}

// ---- audit ----

func (v *view) InsertAuditLog(_ context.Context, arg db.InsertAuditLogParams) (db.AuditLog, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a := db.AuditLog{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Action:       arg.Action,
		Severity:     arg.Severity,
		TreeName:     arg.TreeName,
		Xref:         arg.Xref,
		UserName:     arg.UserName,
		IPAddress:    arg.IPAddress,
		UserAgent:    arg.UserAgent,
		ImportID:     arg.ImportID,
		ChangeID:     arg.ChangeID,
		RowsAffected: arg.RowsAffected,
		Reason:       arg.Reason,
		Details:      arg.Details,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	v.s.audit = append(v.s.audit, a)
	return a, nil
}

func (v *view) GetAuditLogByID(_ context.Context, id pgtype.UUID) (db.AuditLog, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, a := range v.s.audit {
		if a.ID == id {
			return a, nil
		}
	}
	return db.AuditLog{}, pgx.ErrNoRows
}

func auditMatches(a db.AuditLog, arg db.ListAuditLogParams) bool {
	if arg.TreeName != "" && a.TreeName != arg.TreeName {
		return false
	}
	if arg.Action != "" && a.Action != arg.Action {
		return false
	}
	if arg.From.Valid && a.CreatedAt.Time.Before(arg.From.Time) {
		return false
	}
	if arg.To.Valid && !a.CreatedAt.Time.Before(arg.To.Time) {
		return false
	}
	return true
}

func (v *view) ListAuditLog(_ context.Context, arg db.ListAuditLogParams) ([]db.AuditLog, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.AuditLog
	for i := len(v.s.audit) - 1; i >= 0; i-- {
		if auditMatches(v.s.audit[i], arg) {
			out = append(out, v.s.audit[i])
		}
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func (v *view) CountAuditLog(_ context.Context, arg db.ListAuditLogParams) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var n int64
	for _, a := range v.s.audit {
		if auditMatches(a, arg) {
			n++
		}
	}
	return n, nil
}

func (v *view) ListAuditLogArchive(_ context.Context, arg db.ListAuditLogParams) ([]db.AuditLogArchive, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.AuditLogArchive
	for i := len(v.s.archive) - 1; i >= 0; i-- {
		if auditMatches(v.s.archive[i].AuditLog, arg) {
			out = append(out, v.s.archive[i])
		}
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func (v *view) ArchiveOldAuditLogs(_ context.Context, arg db.ArchiveOldAuditLogsParams) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -int(arg.DaysToKeep))
	var n int64
	kept := v.s.audit[:0]
	for _, a := range v.s.audit {
		if a.CreatedAt.Time.Before(cutoff) && (arg.BatchSize <= 0 || n < int64(arg.BatchSize)) {
			v.s.archive = append(v.s.archive, db.AuditLogArchive{
				AuditLog:   a,
				ArchivedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
			})
			n++
			continue
		}
		kept = append(kept, a)
	}
	v.s.audit = kept
	return n, nil
}

func (v *view) PurgeOldArchives(_ context.Context, yearsToKeep int32) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := time.Now().AddDate(-int(yearsToKeep), 0, 0)
	before := len(v.s.archive)
	v.s.archive = filter(v.s.archive, func(a db.AuditLogArchive) bool { return !a.CreatedAt.Time.Before(cutoff) })
	return int64(before - len(v.s.archive)), nil
}

// ---- inspection helpers for tests ----

// Individual returns the stored individual row.
func (v *view) Individual(treeID int32, xref string) (db.InsertIndividualParams, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.s.individuals[db.RecordKey{Xref: xref, TreeID: treeID}]
	return r, ok
}

// Family returns the stored family row.
func (v *view) Family(treeID int32, xref string) (db.InsertFamilyParams, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.s.families[db.RecordKey{Xref: xref, TreeID: treeID}]
	return r, ok
}

// Source returns the stored source row.
func (v *view) Source(treeID int32, xref string) (db.InsertSourceParams, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.s.sources[db.RecordKey{Xref: xref, TreeID: treeID}]
	return r, ok
}

// Media returns every media row of a tree, sorted by xref.
func (v *view) Media(treeID int32) []db.InsertMediaParams {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.InsertMediaParams
	for k, m := range v.s.media {
		if k.TreeID == treeID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Other returns the stored row of the other table.
func (v *view) Other(treeID int32, xref string) (db.InsertOtherParams, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.s.other[db.RecordKey{Xref: xref, TreeID: treeID}]
	return r, ok
}

// Place is a row of the places table as seen by tests.
type Place struct {
	ID         int32
	Place      string
	ParentID   int32
	StdSoundex string
	DMSoundex  string
}

// Places returns the places of a tree in insertion order.
func (v *view) Places(treeID int32) []Place {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Place
	for _, p := range v.s.places {
		if p.TreeID == treeID {
			out = append(out, Place{
				ID:         p.ID,
				Place:      p.Place,
				ParentID:   p.ParentID,
				StdSoundex: p.StdSoundex.String,
				DMSoundex:  p.DMSoundex.String,
			})
		}
	}
	return out
}

// PlaceLinks returns the place ids linked to a record, sorted.
func (v *view) PlaceLinks(treeID int32, xref string) []int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []int32
	for l := range v.s.placeLinks {
		if l.TreeID == treeID && l.Xref == xref {
			ids = append(ids, l.PlaceID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dates returns the date rows of a record in insertion order.
func (v *view) Dates(treeID int32, xref string) []db.InsertDateParams {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.InsertDateParams
	for _, d := range v.s.dates {
		if d.TreeID == treeID && d.Xref == xref {
			out = append(out, d)
		}
	}
	return out
}

// Links returns the outgoing links of a record, sorted by type then target.
func (v *view) Links(treeID int32, xref string) []db.InsertLinkParams {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.InsertLinkParams
	for l := range v.s.links {
		if l.TreeID == treeID && l.From == xref {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].To < out[j].To
	})
	return out
}

// Names returns the name rows of a record ordered by number.
func (v *view) Names(treeID int32, xref string) []db.InsertNameParams {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.InsertNameParams
	for _, n := range v.s.names {
		if n.TreeID == treeID && n.Xref == xref {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Changes returns every change of a tree in id order.
func (v *view) Changes(treeID int32) []db.Change {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []db.Change
	for _, c := range v.s.changes {
		if c.TreeID == treeID {
			out = append(out, c)
		}
	}
	return out
}

// AuditActions returns the actions logged, oldest first.
func (v *view) AuditActions() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.s.audit))
	for _, a := range v.s.audit {
		out = append(out, a.Action)
	}
	return out
}

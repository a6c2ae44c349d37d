package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertIndividual = `
INSERT INTO individuals (i_id, i_file, i_rin, i_sex, i_gedcom) VALUES ($1, $2, $3, $4, $5)`

type InsertIndividualParams struct {
	ID     string
	TreeID int32
	Rin    string
	Sex    string
	Gedcom string
}

func (q *Queries) InsertIndividual(ctx context.Context, arg InsertIndividualParams) error {
	_, err := q.db.Exec(ctx, insertIndividual, arg.ID, arg.TreeID, arg.Rin, arg.Sex, arg.Gedcom)
	return err
}

const insertFamily = `
INSERT INTO families (f_id, f_file, f_husb, f_wife, f_gedcom, f_numchil) VALUES ($1, $2, $3, $4, $5, $6)`

type InsertFamilyParams struct {
	ID      string
	TreeID  int32
	Husb    pgtype.Text
	Wife    pgtype.Text
	Gedcom  string
	NumChil int32
}

func (q *Queries) InsertFamily(ctx context.Context, arg InsertFamilyParams) error {
	_, err := q.db.Exec(ctx, insertFamily, arg.ID, arg.TreeID, arg.Husb, arg.Wife, arg.Gedcom, arg.NumChil)
	return err
}

const insertSource = `
INSERT INTO sources (s_id, s_file, s_name, s_gedcom) VALUES ($1, $2, LEFT($3, 255), $4)`

type InsertSourceParams struct {
	ID     string
	TreeID int32
	Name   string
	Gedcom string
}

func (q *Queries) InsertSource(ctx context.Context, arg InsertSourceParams) error {
	_, err := q.db.Exec(ctx, insertSource, arg.ID, arg.TreeID, arg.Name, arg.Gedcom)
	return err
}

const insertOther = `
INSERT INTO other (o_id, o_file, o_type, o_gedcom) VALUES ($1, $2, LEFT($3, 15), $4)`

type InsertOtherParams struct {
	ID     string
	TreeID int32
	Type   string
	Gedcom string
}

func (q *Queries) InsertOther(ctx context.Context, arg InsertOtherParams) error {
	_, err := q.db.Exec(ctx, insertOther, arg.ID, arg.TreeID, arg.Type, arg.Gedcom)
	return err
}

const insertMedia = `
INSERT INTO media (m_id, m_ext, m_type, m_titl, m_filename, m_file, m_gedcom)
VALUES ($1, LEFT($2, 6), LEFT($3, 20), LEFT($4, 255), LEFT($5, 512), $6, $7)`

type InsertMediaParams struct {
	ID       string
	Ext      string
	Type     string
	Title    string
	FileName string
	TreeID   int32
	Gedcom   string
}

func (q *Queries) InsertMedia(ctx context.Context, arg InsertMediaParams) error {
	_, err := q.db.Exec(ctx, insertMedia, arg.ID, arg.Ext, arg.Type, arg.Title, arg.FileName, arg.TreeID, arg.Gedcom)
	return err
}

const deleteIndividual = `DELETE FROM individuals WHERE i_id = $1 AND i_file = $2`

func (q *Queries) DeleteIndividual(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteIndividual, arg.Xref, arg.TreeID)
	return err
}

const deleteFamily = `DELETE FROM families WHERE f_id = $1 AND f_file = $2`

func (q *Queries) DeleteFamily(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteFamily, arg.Xref, arg.TreeID)
	return err
}

const deleteSource = `DELETE FROM sources WHERE s_id = $1 AND s_file = $2`

func (q *Queries) DeleteSource(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteSource, arg.Xref, arg.TreeID)
	return err
}

const deleteMedia = `DELETE FROM media WHERE m_id = $1 AND m_file = $2`

func (q *Queries) DeleteMedia(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteMedia, arg.Xref, arg.TreeID)
	return err
}

const deleteOther = `DELETE FROM other WHERE o_id = $1 AND o_file = $2`

func (q *Queries) DeleteOther(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteOther, arg.Xref, arg.TreeID)
	return err
}

const getRecord = `
SELECT i_id, 'INDI', i_gedcom FROM individuals WHERE i_id = $1 AND i_file = $2
UNION ALL
SELECT f_id, 'FAM', f_gedcom FROM families WHERE f_id = $1 AND f_file = $2
UNION ALL
SELECT s_id, 'SOUR', s_gedcom FROM sources WHERE s_id = $1 AND s_file = $2
UNION ALL
SELECT m_id, 'OBJE', m_gedcom FROM media WHERE m_id = $1 AND m_file = $2
UNION ALL
SELECT o_id, o_type, o_gedcom FROM other WHERE o_id = $1 AND o_file = $2
LIMIT 1`

// GetRecord returns the stored text of a record of any type, or
// pgx.ErrNoRows.
func (q *Queries) GetRecord(ctx context.Context, arg RecordKey) (Record, error) {
	row := q.db.QueryRow(ctx, getRecord, arg.Xref, arg.TreeID)
	var r Record
	err := row.Scan(&r.Xref, &r.Type, &r.Gedcom)
	return r, err
}

const findMediaByFile = `
SELECT m_id FROM media WHERE m_filename = $1 AND m_titl = $2 AND m_file = $3
ORDER BY m_id LIMIT 1`

type FindMediaByFileParams struct {
	FileName string
	Title    string
	TreeID   int32
}

// FindMediaByFile returns the xref of a media object with the same file
// and title, or pgx.ErrNoRows.
func (q *Queries) FindMediaByFile(ctx context.Context, arg FindMediaByFileParams) (string, error) {
	row := q.db.QueryRow(ctx, findMediaByFile, arg.FileName, arg.Title, arg.TreeID)
	var id string
	err := row.Scan(&id)
	return id, err
}

const nextRecordID = `
INSERT INTO next_id (gedcom_id, record_type, next_id) VALUES ($1, $2, 2)
ON CONFLICT (gedcom_id, record_type) DO UPDATE SET next_id = next_id.next_id + 1
RETURNING next_id - 1`

type NextRecordIDParams struct {
	TreeID     int32
	RecordType string
}

// NextRecordID returns the next unused sequence number for a record type,
// starting at 1.
func (q *Queries) NextRecordID(ctx context.Context, arg NextRecordIDParams) (int64, error) {
	row := q.db.QueryRow(ctx, nextRecordID, arg.TreeID, arg.RecordType)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const xrefExists = `
SELECT EXISTS (SELECT 1 FROM individuals WHERE i_id = $1 AND i_file = $2)
    OR EXISTS (SELECT 1 FROM families WHERE f_id = $1 AND f_file = $2)
    OR EXISTS (SELECT 1 FROM sources WHERE s_id = $1 AND s_file = $2)
    OR EXISTS (SELECT 1 FROM media WHERE m_id = $1 AND m_file = $2)
    OR EXISTS (SELECT 1 FROM other WHERE o_id = $1 AND o_file = $2)
    OR EXISTS (SELECT 1 FROM change WHERE xref = $1 AND gedcom_id = $2)`

func (q *Queries) XrefExists(ctx context.Context, arg RecordKey) (bool, error) {
	row := q.db.QueryRow(ctx, xrefExists, arg.Xref, arg.TreeID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const countRecords = `
SELECT
    (SELECT count(*) FROM individuals WHERE i_file = $1),
    (SELECT count(*) FROM families WHERE f_file = $1),
    (SELECT count(*) FROM sources WHERE s_file = $1),
    (SELECT count(*) FROM media WHERE m_file = $1),
    (SELECT count(*) FROM other WHERE o_file = $1),
    (SELECT count(*) FROM places WHERE p_file = $1),
    (SELECT count(*) FROM change WHERE gedcom_id = $1 AND status = 'pending')`

type RecordCounts struct {
	Individuals    int64
	Families       int64
	Sources        int64
	Media          int64
	Other          int64
	Places         int64
	PendingChanges int64
}

func (q *Queries) CountRecords(ctx context.Context, treeID int32) (RecordCounts, error) {
	row := q.db.QueryRow(ctx, countRecords, treeID)
	var c RecordCounts
	err := row.Scan(&c.Individuals, &c.Families, &c.Sources, &c.Media, &c.Other, &c.Places, &c.PendingChanges)
	return c, err
}

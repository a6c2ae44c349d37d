package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPlaceID = `
SELECT p_id FROM places WHERE p_file = $1 AND p_parent_id = $2 AND lower(p_place) = lower($3)`

type GetPlaceIDParams struct {
	TreeID   int32
	ParentID int32
	Place    string
}

func (q *Queries) GetPlaceID(ctx context.Context, arg GetPlaceIDParams) (int32, error) {
	row := q.db.QueryRow(ctx, getPlaceID, arg.TreeID, arg.ParentID, arg.Place)
	var id int32
	err := row.Scan(&id)
	return id, err
}

// Concurrent imports into the same tree can race on a place; the no-op
// update returns the winner's id.
const insertPlace = `
INSERT INTO places (p_place, p_parent_id, p_file, p_std_soundex, p_dm_soundex)
VALUES (LEFT($1, 150), $2, $3, $4, $5)
ON CONFLICT (p_parent_id, p_file, lower(p_place)) DO UPDATE SET p_place = places.p_place
RETURNING p_id`

type InsertPlaceParams struct {
	Place      string
	ParentID   int32
	TreeID     int32
	StdSoundex pgtype.Text
	DMSoundex  pgtype.Text
}

func (q *Queries) InsertPlace(ctx context.Context, arg InsertPlaceParams) (int32, error) {
	row := q.db.QueryRow(ctx, insertPlace, arg.Place, arg.ParentID, arg.TreeID, arg.StdSoundex, arg.DMSoundex)
	var id int32
	err := row.Scan(&id)
	return id, err
}

const insertPlaceLink = `
INSERT INTO placelinks (pl_p_id, pl_gid, pl_file) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`

type InsertPlaceLinkParams struct {
	PlaceID int32
	Xref    string
	TreeID  int32
}

func (q *Queries) InsertPlaceLink(ctx context.Context, arg InsertPlaceLinkParams) error {
	_, err := q.db.Exec(ctx, insertPlaceLink, arg.PlaceID, arg.Xref, arg.TreeID)
	return err
}

const deletePlaceLinks = `
DELETE FROM placelinks WHERE pl_gid = $1 AND pl_file = $2 RETURNING pl_p_id`

// DeletePlaceLinks removes a record's place links and returns the place
// ids they pointed at.
func (q *Queries) DeletePlaceLinks(ctx context.Context, arg RecordKey) ([]int32, error) {
	rows, err := q.db.Query(ctx, deletePlaceLinks, arg.Xref, arg.TreeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const deleteUnlinkedPlaces = `
DELETE FROM places p
WHERE p.p_file = $1 AND p.p_id = ANY($2::int[])
  AND NOT EXISTS (SELECT 1 FROM placelinks pl WHERE pl.pl_p_id = p.p_id AND pl.pl_file = p.p_file)`

type DeleteUnlinkedPlacesParams struct {
	TreeID   int32
	PlaceIDs []int32
}

func (q *Queries) DeleteUnlinkedPlaces(ctx context.Context, arg DeleteUnlinkedPlacesParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUnlinkedPlaces, arg.TreeID, arg.PlaceIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertDate = `
INSERT INTO dates (d_day, d_month, d_mon, d_year, d_julianday1, d_julianday2, d_fact, d_gid, d_file, d_type)
VALUES ($1, $2, $3, $4, $5, $6, LEFT($7, 15), $8, $9, $10)`

type InsertDateParams struct {
	Day        int16
	Month      pgtype.Text
	Mon        int16
	Year       int16
	JulianDay1 int32
	JulianDay2 int32
	Fact       string
	Xref       string
	TreeID     int32
	Type       string
}

func (q *Queries) InsertDate(ctx context.Context, arg InsertDateParams) error {
	_, err := q.db.Exec(ctx, insertDate,
		arg.Day, arg.Month, arg.Mon, arg.Year, arg.JulianDay1, arg.JulianDay2,
		arg.Fact, arg.Xref, arg.TreeID, arg.Type)
	return err
}

const deleteDates = `DELETE FROM dates WHERE d_gid = $1 AND d_file = $2`

func (q *Queries) DeleteDates(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteDates, arg.Xref, arg.TreeID)
	return err
}

const insertLink = `
INSERT INTO link (l_from, l_to, l_type, l_file) VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING`

type InsertLinkParams struct {
	From   string
	To     string
	Type   string
	TreeID int32
}

func (q *Queries) InsertLink(ctx context.Context, arg InsertLinkParams) error {
	_, err := q.db.Exec(ctx, insertLink, arg.From, arg.To, arg.Type, arg.TreeID)
	return err
}

const deleteLinksFrom = `DELETE FROM link WHERE l_from = $1 AND l_file = $2`

func (q *Queries) DeleteLinksFrom(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteLinksFrom, arg.Xref, arg.TreeID)
	return err
}

const listLinkedMedia = `
SELECT l_to FROM link WHERE l_from = $1 AND l_file = $2 AND l_type = 'OBJE' ORDER BY l_to`

func (q *Queries) ListLinkedMedia(ctx context.Context, arg RecordKey) ([]string, error) {
	rows, err := q.db.Query(ctx, listLinkedMedia, arg.Xref, arg.TreeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const insertName = `
INSERT INTO name (n_file, n_id, n_num, n_type, n_sort, n_full, n_surname, n_surn, n_givn,
    n_soundex_givn_std, n_soundex_surn_std, n_soundex_givn_dm, n_soundex_surn_dm)
VALUES ($1, $2, $3, LEFT($4, 15), LEFT($5, 255), LEFT($6, 255), LEFT($7, 255), LEFT($8, 255), LEFT($9, 255),
    $10, $11, $12, $13)`

type InsertNameParams struct {
	TreeID         int32
	Xref           string
	Num            int32
	Type           string
	Sort           string
	Full           string
	Surname        pgtype.Text
	Surn           pgtype.Text
	Givn           pgtype.Text
	SoundexGivnStd pgtype.Text
	SoundexSurnStd pgtype.Text
	SoundexGivnDM  pgtype.Text
	SoundexSurnDM  pgtype.Text
}

func (q *Queries) InsertName(ctx context.Context, arg InsertNameParams) error {
	_, err := q.db.Exec(ctx, insertName,
		arg.TreeID, arg.Xref, arg.Num, arg.Type, arg.Sort, arg.Full,
		arg.Surname, arg.Surn, arg.Givn,
		arg.SoundexGivnStd, arg.SoundexSurnStd, arg.SoundexGivnDM, arg.SoundexSurnDM)
	return err
}

const deleteNames = `DELETE FROM name WHERE n_id = $1 AND n_file = $2`

func (q *Queries) DeleteNames(ctx context.Context, arg RecordKey) error {
	_, err := q.db.Exec(ctx, deleteNames, arg.Xref, arg.TreeID)
	return err
}

type EmptyTreeParams struct {
	TreeID    int32
	KeepMedia bool
}

var emptyTreeStatements = []string{
	`DELETE FROM individuals WHERE i_file = $1`,
	`DELETE FROM families WHERE f_file = $1`,
	`DELETE FROM sources WHERE s_file = $1`,
	`DELETE FROM other WHERE o_file = $1`,
	`DELETE FROM places WHERE p_file = $1`,
	`DELETE FROM placelinks WHERE pl_file = $1`,
	`DELETE FROM name WHERE n_file = $1`,
	`DELETE FROM dates WHERE d_file = $1`,
	`DELETE FROM change WHERE gedcom_id = $1`,
}

// EmptyTree deletes every record and index row of a tree. With KeepMedia
// the media table and OBJE links survive so a re-import can relink them.
// Run it inside a transaction.
func (q *Queries) EmptyTree(ctx context.Context, arg EmptyTreeParams) error {
	stmts := emptyTreeStatements
	if arg.KeepMedia {
		stmts = append(stmts[:len(stmts):len(stmts)], `DELETE FROM link WHERE l_file = $1 AND l_type <> 'OBJE'`)
	} else {
		stmts = append(stmts[:len(stmts):len(stmts)],
			`DELETE FROM link WHERE l_file = $1`,
			`DELETE FROM media WHERE m_file = $1`,
			`DELETE FROM next_id WHERE gedcom_id = $1`,
		)
	}
	for _, stmt := range stmts {
		if _, err := q.db.Exec(ctx, stmt, arg.TreeID); err != nil {
			return err
		}
	}
	return nil
}

package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const changeColumns = `change_id, change_time, status, gedcom_id, xref, old_gedcom, new_gedcom, user_name`

func scanChange(row pgx.Row) (Change, error) {
	var c Change
	err := row.Scan(&c.ID, &c.Time, &c.Status, &c.TreeID, &c.Xref, &c.OldGedcom, &c.NewGedcom, &c.UserName)
	return c, err
}

func collectChanges(rows pgx.Rows, err error) ([]Change, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Change
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertChange = `
INSERT INTO change (gedcom_id, xref, old_gedcom, new_gedcom, user_name)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + changeColumns

type InsertChangeParams struct {
	TreeID    int32
	Xref      string
	OldGedcom string
	NewGedcom string
	UserName  string
}

func (q *Queries) InsertChange(ctx context.Context, arg InsertChangeParams) (Change, error) {
	row := q.db.QueryRow(ctx, insertChange, arg.TreeID, arg.Xref, arg.OldGedcom, arg.NewGedcom, arg.UserName)
	return scanChange(row)
}

const listPendingChanges = `
SELECT ` + changeColumns + ` FROM change
WHERE status = 'pending' AND xref = $1 AND gedcom_id = $2
ORDER BY change_id`

func (q *Queries) ListPendingChanges(ctx context.Context, arg RecordKey) ([]Change, error) {
	return collectChanges(q.db.Query(ctx, listPendingChanges, arg.Xref, arg.TreeID))
}

const listPendingXrefs = `
SELECT xref FROM change WHERE status = 'pending' AND gedcom_id = $1
GROUP BY xref ORDER BY min(change_id)`

// ListPendingXrefs returns every xref with pending changes, oldest first.
func (q *Queries) ListPendingXrefs(ctx context.Context, treeID int32) ([]string, error) {
	rows, err := q.db.Query(ctx, listPendingXrefs, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var xrefs []string
	for rows.Next() {
		var x string
		if err := rows.Scan(&x); err != nil {
			return nil, err
		}
		xrefs = append(xrefs, x)
	}
	return xrefs, rows.Err()
}

const setChangeStatus = `
UPDATE change SET status = $3 WHERE status = 'pending' AND xref = $1 AND gedcom_id = $2`

type SetChangeStatusParams struct {
	Xref   string
	TreeID int32
	Status string
}

// SetChangeStatus resolves every pending change of one record.
func (q *Queries) SetChangeStatus(ctx context.Context, arg SetChangeStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setChangeStatus, arg.Xref, arg.TreeID, arg.Status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listChanges = `
SELECT ` + changeColumns + ` FROM change
WHERE gedcom_id = $1 AND ($2 = '' OR status = $2)
ORDER BY change_id DESC
LIMIT $3 OFFSET $4`

type ListChangesParams struct {
	TreeID int32
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListChanges(ctx context.Context, arg ListChangesParams) ([]Change, error) {
	return collectChanges(q.db.Query(ctx, listChanges, arg.TreeID, arg.Status, arg.Limit, arg.Offset))
}

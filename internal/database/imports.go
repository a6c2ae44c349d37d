package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const importColumns = `import_id, gedcom_id, file_name, charset, status, records_total,
    records_imported, records_failed, media_hoisted, error, started_at, finished_at`

func scanImport(row pgx.Row) (GedcomImport, error) {
	var i GedcomImport
	err := row.Scan(&i.ID, &i.TreeID, &i.FileName, &i.Charset, &i.Status, &i.RecordsTotal,
		&i.RecordsImported, &i.RecordsFailed, &i.MediaHoisted, &i.Error, &i.StartedAt, &i.FinishedAt)
	return i, err
}

const createImport = `
INSERT INTO gedcom_import (import_id, gedcom_id, file_name, status) VALUES ($1, $2, LEFT($3, 255), $4)`

type CreateImportParams struct {
	ID       pgtype.UUID
	TreeID   int32
	FileName string
	Status   string
}

func (q *Queries) CreateImport(ctx context.Context, arg CreateImportParams) error {
	_, err := q.db.Exec(ctx, createImport, arg.ID, arg.TreeID, arg.FileName, arg.Status)
	return err
}

const finishImport = `
UPDATE gedcom_import
SET charset = $2, status = $3, records_total = $4, records_imported = $5,
    records_failed = $6, media_hoisted = $7, error = $8, finished_at = now()
WHERE import_id = $1`

type FinishImportParams struct {
	ID              pgtype.UUID
	Charset         string
	Status          string
	RecordsTotal    int32
	RecordsImported int32
	RecordsFailed   int32
	MediaHoisted    int32
	Error           pgtype.Text
}

func (q *Queries) FinishImport(ctx context.Context, arg FinishImportParams) error {
	_, err := q.db.Exec(ctx, finishImport, arg.ID, arg.Charset, arg.Status, arg.RecordsTotal,
		arg.RecordsImported, arg.RecordsFailed, arg.MediaHoisted, arg.Error)
	return err
}

const getImport = `SELECT ` + importColumns + ` FROM gedcom_import WHERE import_id = $1`

func (q *Queries) GetImport(ctx context.Context, id pgtype.UUID) (GedcomImport, error) {
	return scanImport(q.db.QueryRow(ctx, getImport, id))
}

const listImports = `
SELECT ` + importColumns + ` FROM gedcom_import
WHERE gedcom_id = $1 ORDER BY started_at DESC LIMIT $2`

type ListImportsParams struct {
	TreeID int32
	Limit  int32
}

func (q *Queries) ListImports(ctx context.Context, arg ListImportsParams) ([]GedcomImport, error) {
	rows, err := q.db.Query(ctx, listImports, arg.TreeID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GedcomImport
	for rows.Next() {
		i, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertImportFailure = `
INSERT INTO gedcom_import_failure (import_id, record_number, xref, reason, record)
VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) InsertImportFailure(ctx context.Context, arg ImportFailure) error {
	_, err := q.db.Exec(ctx, insertImportFailure, arg.ImportID, arg.RecordNumber, arg.Xref, arg.Reason, arg.Record)
	return err
}

const listImportFailures = `
SELECT import_id, record_number, xref, reason, record FROM gedcom_import_failure
WHERE import_id = $1 ORDER BY record_number`

func (q *Queries) ListImportFailures(ctx context.Context, id pgtype.UUID) ([]ImportFailure, error) {
	rows, err := q.db.Query(ctx, listImportFailures, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportFailure
	for rows.Next() {
		var f ImportFailure
		if err := rows.Scan(&f.ImportID, &f.RecordNumber, &f.Xref, &f.Reason, &f.Record); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

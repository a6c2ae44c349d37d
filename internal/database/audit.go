package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const auditColumns = `id, action, severity, tree_name, xref, user_name, ip_address, user_agent,
    import_id, change_id, rows_affected, reason, details, created_at`

func scanAuditLog(row pgx.Row) (AuditLog, error) {
	var a AuditLog
	err := row.Scan(&a.ID, &a.Action, &a.Severity, &a.TreeName, &a.Xref, &a.UserName, &a.IPAddress,
		&a.UserAgent, &a.ImportID, &a.ChangeID, &a.RowsAffected, &a.Reason, &a.Details, &a.CreatedAt)
	return a, err
}

const insertAuditLog = `
INSERT INTO audit_log (action, severity, tree_name, xref, user_name, ip_address, user_agent,
    import_id, change_id, rows_affected, reason, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + auditColumns

type InsertAuditLogParams struct {
	Action       string
	Severity     string
	TreeName     string
	Xref         pgtype.Text
	UserName     pgtype.Text
	IPAddress    pgtype.Text
	UserAgent    pgtype.Text
	ImportID     pgtype.UUID
	ChangeID     pgtype.Int4
	RowsAffected pgtype.Int4
	Reason       pgtype.Text
	Details      []byte
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, insertAuditLog, arg.Action, arg.Severity, arg.TreeName, arg.Xref,
		arg.UserName, arg.IPAddress, arg.UserAgent, arg.ImportID, arg.ChangeID, arg.RowsAffected,
		arg.Reason, arg.Details)
	return scanAuditLog(row)
}

const getAuditLogByID = `SELECT ` + auditColumns + ` FROM audit_log WHERE id = $1`

func (q *Queries) GetAuditLogByID(ctx context.Context, id pgtype.UUID) (AuditLog, error) {
	return scanAuditLog(q.db.QueryRow(ctx, getAuditLogByID, id))
}

// An empty TreeName or Action matches everything.
type ListAuditLogParams struct {
	TreeName string
	Action   string
	From     pgtype.Timestamptz
	To       pgtype.Timestamptz
	Limit    int32
	Offset   int32
}

const auditFilter = `
WHERE ($1 = '' OR tree_name = $1)
  AND ($2 = '' OR action = $2)
  AND created_at >= $3 AND created_at < $4`

const listAuditLog = `SELECT ` + auditColumns + ` FROM audit_log` + auditFilter + `
ORDER BY created_at DESC LIMIT $5 OFFSET $6`

func (q *Queries) ListAuditLog(ctx context.Context, arg ListAuditLogParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLog, arg.TreeName, arg.Action, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const countAuditLog = `SELECT count(*) FROM audit_log` + auditFilter

func (q *Queries) CountAuditLog(ctx context.Context, arg ListAuditLogParams) (int64, error) {
	row := q.db.QueryRow(ctx, countAuditLog, arg.TreeName, arg.Action, arg.From, arg.To)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const listAuditLogArchive = `SELECT ` + auditColumns + `, archived_at FROM audit_log_archive` + auditFilter + `
ORDER BY created_at DESC LIMIT $5 OFFSET $6`

func (q *Queries) ListAuditLogArchive(ctx context.Context, arg ListAuditLogParams) ([]AuditLogArchive, error) {
	rows, err := q.db.Query(ctx, listAuditLogArchive, arg.TreeName, arg.Action, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLogArchive
	for rows.Next() {
		var a AuditLogArchive
		if err := rows.Scan(&a.ID, &a.Action, &a.Severity, &a.TreeName, &a.Xref, &a.UserName, &a.IPAddress,
			&a.UserAgent, &a.ImportID, &a.ChangeID, &a.RowsAffected, &a.Reason, &a.Details, &a.CreatedAt,
			&a.ArchivedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const archiveOldAuditLogs = `
WITH moved AS (
    DELETE FROM audit_log
    WHERE id IN (
        SELECT id FROM audit_log
        WHERE created_at < now() - make_interval(days => $1::int)
        ORDER BY created_at
        LIMIT $2
    )
    RETURNING ` + auditColumns + `
)
INSERT INTO audit_log_archive (` + auditColumns + `)
SELECT ` + auditColumns + ` FROM moved`

type ArchiveOldAuditLogsParams struct {
	DaysToKeep int32
	BatchSize  int32
}

// ArchiveOldAuditLogs moves one batch of entries older than DaysToKeep to
// the archive table.
func (q *Queries) ArchiveOldAuditLogs(ctx context.Context, arg ArchiveOldAuditLogsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, archiveOldAuditLogs, arg.DaysToKeep, arg.BatchSize)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const purgeOldArchives = `
DELETE FROM audit_log_archive WHERE created_at < now() - make_interval(years => $1::int)`

func (q *Queries) PurgeOldArchives(ctx context.Context, yearsToKeep int32) (int64, error) {
	tag, err := q.db.Exec(ctx, purgeOldArchives, yearsToKeep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

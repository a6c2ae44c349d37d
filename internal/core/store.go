package core

import (
	"context"
	"fmt"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordStore is what importing and deleting a single record needs.
type RecordStore interface {
	InsertIndividual(ctx context.Context, arg db.InsertIndividualParams) error
	InsertFamily(ctx context.Context, arg db.InsertFamilyParams) error
	InsertSource(ctx context.Context, arg db.InsertSourceParams) error
	InsertMedia(ctx context.Context, arg db.InsertMediaParams) error
	InsertOther(ctx context.Context, arg db.InsertOtherParams) error
	DeleteIndividual(ctx context.Context, arg db.RecordKey) error
	DeleteFamily(ctx context.Context, arg db.RecordKey) error
	DeleteSource(ctx context.Context, arg db.RecordKey) error
	DeleteMedia(ctx context.Context, arg db.RecordKey) error
	DeleteOther(ctx context.Context, arg db.RecordKey) error

	FindMediaByFile(ctx context.Context, arg db.FindMediaByFileParams) (string, error)
	NextRecordID(ctx context.Context, arg db.NextRecordIDParams) (int64, error)
	XrefExists(ctx context.Context, arg db.RecordKey) (bool, error)
	ListLinkedMedia(ctx context.Context, arg db.RecordKey) ([]string, error)

	GetPlaceID(ctx context.Context, arg db.GetPlaceIDParams) (int32, error)
	InsertPlace(ctx context.Context, arg db.InsertPlaceParams) (int32, error)
	InsertPlaceLink(ctx context.Context, arg db.InsertPlaceLinkParams) error
	DeletePlaceLinks(ctx context.Context, arg db.RecordKey) ([]int32, error)
	DeleteUnlinkedPlaces(ctx context.Context, arg db.DeleteUnlinkedPlacesParams) (int64, error)
	InsertDate(ctx context.Context, arg db.InsertDateParams) error
	DeleteDates(ctx context.Context, arg db.RecordKey) error
	InsertLink(ctx context.Context, arg db.InsertLinkParams) error
	DeleteLinksFrom(ctx context.Context, arg db.RecordKey) error
	InsertName(ctx context.Context, arg db.InsertNameParams) error
	DeleteNames(ctx context.Context, arg db.RecordKey) error
}

// Store is the full query surface of the service. *database.Queries
// satisfies it.
type Store interface {
	RecordStore

	GetTree(ctx context.Context, id int32) (db.Tree, error)
	GetTreeByName(ctx context.Context, name string) (db.Tree, error)
	CreateTree(ctx context.Context, name string) (db.Tree, error)
	ListTrees(ctx context.Context) ([]db.Tree, error)
	ListTreeSettings(ctx context.Context, treeID int32) ([]db.TreeSetting, error)
	SetTreeSetting(ctx context.Context, arg db.TreeSetting) error
	GetRecord(ctx context.Context, arg db.RecordKey) (db.Record, error)
	CountRecords(ctx context.Context, treeID int32) (db.RecordCounts, error)
	EmptyTree(ctx context.Context, arg db.EmptyTreeParams) error

	InsertChange(ctx context.Context, arg db.InsertChangeParams) (db.Change, error)
	ListPendingChanges(ctx context.Context, arg db.RecordKey) ([]db.Change, error)
	ListPendingXrefs(ctx context.Context, treeID int32) ([]string, error)
	SetChangeStatus(ctx context.Context, arg db.SetChangeStatusParams) (int64, error)
	ListChanges(ctx context.Context, arg db.ListChangesParams) ([]db.Change, error)

	CreateImport(ctx context.Context, arg db.CreateImportParams) error
	FinishImport(ctx context.Context, arg db.FinishImportParams) error
	GetImport(ctx context.Context, id pgtype.UUID) (db.GedcomImport, error)
	ListImports(ctx context.Context, arg db.ListImportsParams) ([]db.GedcomImport, error)
	InsertImportFailure(ctx context.Context, arg db.ImportFailure) error
	ListImportFailures(ctx context.Context, id pgtype.UUID) ([]db.ImportFailure, error)

	InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) (db.AuditLog, error)
	GetAuditLogByID(ctx context.Context, id pgtype.UUID) (db.AuditLog, error)
	ListAuditLog(ctx context.Context, arg db.ListAuditLogParams) ([]db.AuditLog, error)
	CountAuditLog(ctx context.Context, arg db.ListAuditLogParams) (int64, error)
	ListAuditLogArchive(ctx context.Context, arg db.ListAuditLogParams) ([]db.AuditLogArchive, error)
	ArchiveOldAuditLogs(ctx context.Context, arg db.ArchiveOldAuditLogsParams) (int64, error)
	PurgeOldArchives(ctx context.Context, yearsToKeep int32) (int64, error)
}

// Tx is a Store bound to an open transaction.
type Tx interface {
	Store
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Database is a Store that can open transactions.
type Database interface {
	Store
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
}

// NewPostgres returns a Database backed by a pgx pool.
func NewPostgres(pool *pgxpool.Pool) Database {
	return &pgDatabase{Queries: db.New(pool), pool: pool}
}

type pgDatabase struct {
	*db.Queries
	pool *pgxpool.Pool
}

func (p *pgDatabase) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{Queries: p.Queries.WithTx(tx), tx: tx}, nil
}

func (p *pgDatabase) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type pgTx struct {
	*db.Queries
	tx pgx.Tx
}

// Savepoint names are generated internally, never taken from input.
func (t *pgTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+name)
	return err
}

func (t *pgTx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *pgTx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

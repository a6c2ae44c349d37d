package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Tree struct {
	ID        int32
	Name      string
	CreatedAt pgtype.Timestamptz
}

type TreeSetting struct {
	TreeID int32
	Name   string
	Value  string
}

// RecordKey identifies one record in one tree.
type RecordKey struct {
	Xref   string
	TreeID int32
}

// Record is the stored text of a record of any type.
type Record struct {
	Xref   string
	Type   string
	Gedcom string
}

type Change struct {
	ID        int32
	Time      pgtype.Timestamptz
	Status    string
	TreeID    int32
	Xref      string
	OldGedcom string
	NewGedcom string
	UserName  string
}

const (
	ChangePending  = "pending"
	ChangeAccepted = "accepted"
	ChangeRejected = "rejected"
)

type GedcomImport struct {
	ID              pgtype.UUID
	TreeID          int32
	FileName        string
	Charset         string
	Status          string
	RecordsTotal    int32
	RecordsImported int32
	RecordsFailed   int32
	MediaHoisted    int32
	Error           pgtype.Text
	StartedAt       pgtype.Timestamptz
	FinishedAt      pgtype.Timestamptz
}

type ImportFailure struct {
	ImportID     pgtype.UUID
	RecordNumber int32
	Xref         pgtype.Text
	Reason       string
	Record       string
}

type AuditLog struct {
	ID           pgtype.UUID
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
	CreatedAt    pgtype.Timestamptz
}

type AuditLogArchive struct {
	AuditLog
	ArchivedAt pgtype.Timestamptz
}

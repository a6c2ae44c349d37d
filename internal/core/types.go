package core

import (
	"context"
	"time"
)

// IndexSet selects which secondary indexes a record type maintains.
type IndexSet uint8

const (
	IndexPlaces IndexSet = 1 << iota
	IndexDates
	IndexLinks
	IndexNames
)

// Has reports whether every index in i is selected.
func (s IndexSet) Has(i IndexSet) bool {
	return s&i == i
}

// Record is a reformatted record on its way into the type tables.
// Insert functions may extend Gedcom; the index updaters see the result.
type Record struct {
	TreeID   int32
	Xref     string
	Type     string
	Gedcom   string
	Settings TreeSettings
	Imported time.Time
}

// InsertFunc writes the type row of a record.
type InsertFunc func(ctx context.Context, st RecordStore, rec *Record) error

// DeleteFunc removes the type row of a record.
type DeleteFunc func(ctx context.Context, st RecordStore, treeID int32, xref string) error

// RecordHandler describes how one level-0 record type is stored.
type RecordHandler struct {
	Type    string // level-0 tag; "" registers the fallback for other types
	Label   string
	Table   string
	Insert  InsertFunc
	Delete  DeleteFunc
	Indexes IndexSet
}

// RecordTypeInfo is the listing form of a handler.
type RecordTypeInfo struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Table   string   `json:"table"`
	Indexes []string `json:"indexes"`
}

// RecordOutcome describes what ImportRecord did with one record.
type RecordOutcome struct {
	Xref         string
	Type         string
	Skipped      bool // custom "_" record types are not stored
	MediaHoisted int  // new media objects created from inline OBJE blocks
	MediaReused  int  // inline OBJE blocks linked to an existing object
}

// ImportPhase indicates the current stage of a file import.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseReading   ImportPhase = "reading"
	PhaseImporting ImportPhase = "importing"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// ImportOptions controls a file import.
type ImportOptions struct {
	// Replace empties the tree first. Media survive when the tree's
	// keep_media setting is on.
	Replace bool
	// UserName is recorded in the audit log.
	UserName string
}

// ImportProgress represents the current state of a file import.
type ImportProgress struct {
	ImportID     string      `json:"importId"`
	Tree         string      `json:"tree"`
	Phase        ImportPhase `json:"phase"`
	FileName     string      `json:"fileName"`
	Charset      string      `json:"charset,omitempty"`
	Records      int         `json:"records"`
	Imported     int         `json:"imported"`
	Failed       int         `json:"failed"`
	Skipped      int         `json:"skipped"`
	MediaHoisted int         `json:"mediaHoisted"`
	Error        string      `json:"error,omitempty"`
	// The record count is unknown while streaming, so progress is by bytes.
	BytesRead  int64 `json:"bytesRead"`
	BytesTotal int64 `json:"bytesTotal"`
}

// Percent returns progress as 0-100 based on bytes consumed.
func (p ImportProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.BytesTotal > 0 {
		pct := int((p.BytesRead * 100) / p.BytesTotal)
		if pct > 100 {
			pct = 100
		}
		return pct
	}
	return 0
}

// FailedRecord is a record that could not be imported.
type FailedRecord struct {
	Number int    `json:"number"` // 1-based position in the file
	Xref   string `json:"xref,omitempty"`
	Reason string `json:"reason"`
	Record string `json:"record"`
}

// ImportResult is the final state of a file import.
type ImportResult struct {
	ImportID      string         `json:"importId"`
	Tree          string         `json:"tree"`
	FileName      string         `json:"fileName"`
	Charset       string         `json:"charset"`
	Records       int            `json:"records"`
	Imported      int            `json:"imported"`
	Skipped       int            `json:"skipped"`
	MediaHoisted  int            `json:"mediaHoisted"`
	ByType        map[string]int `json:"byType"`
	FailedRecords []FailedRecord `json:"failedRecords,omitempty"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"`
}

// ProgressCallback is called as a file import advances.
type ProgressCallback func(ImportProgress)

// ChangeResult summarizes an accept or reject of pending changes.
type ChangeResult struct {
	Tree     string   `json:"tree"`
	Xrefs    []string `json:"xrefs"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
}

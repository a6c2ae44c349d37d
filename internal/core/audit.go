package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/logging"
)

// DefaultHistoryLimit is the page size of audit and change listings.
const DefaultHistoryLimit = 50

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport        AuditAction = "import"
	ActionTreeEmpty     AuditAction = "tree_empty"
	ActionChangeSubmit  AuditAction = "change_submit"
	ActionChangeAccept  AuditAction = "change_accept"
	ActionChangeReject  AuditAction = "change_reject"
	ActionSettingChange AuditAction = "setting_change"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	TreeName     string         `json:"tree"`
	Xref         string         `json:"xref,omitempty"`
	UserName     string         `json:"userName,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	ImportID     string         `json:"importId,omitempty"`
	ChangeID     int            `json:"changeId,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	ArchivedAt   *time.Time     `json:"archivedAt,omitempty"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// IPAddress, UserAgent and UserName default to the RequestMeta carried by
// ctx.
type AuditLogParams struct {
	Action       AuditAction
	TreeName     string
	Xref         string
	UserName     string
	IPAddress    string
	UserAgent    string
	ImportID     string
	ChangeID     int
	RowsAffected int
	Reason       string
	Details      map[string]any
}

// auditSeverity returns the severity for an action.
func auditSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport, ActionChangeAccept:
		return SeverityHigh
	case ActionTreeEmpty:
		return SeverityCritical
	case ActionChangeSubmit, ActionSettingChange:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit writes an audit entry. Audit failures never fail the audited
// operation; they are logged and returned for callers that care.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	meta := RequestMetaFrom(ctx)
	if params.IPAddress == "" {
		params.IPAddress = meta.IPAddress
	}
	if params.UserAgent == "" {
		params.UserAgent = meta.UserAgent
	}
	if params.UserName == "" {
		params.UserName = meta.UserName
	}

	var details []byte
	if params.Details != nil {
		if b, err := json.Marshal(params.Details); err == nil {
			details = b
		}
	}

	row, err := s.store.InsertAuditLog(ctx, db.InsertAuditLogParams{
		Action:       string(params.Action),
		Severity:     string(auditSeverity(params.Action)),
		TreeName:     params.TreeName,
		Xref:         ToPgText(params.Xref),
		UserName:     ToPgText(params.UserName),
		IPAddress:    ToPgText(params.IPAddress),
		UserAgent:    ToPgText(params.UserAgent),
		ImportID:     ToPgUUID(params.ImportID),
		ChangeID:     ToPgInt4(params.ChangeID),
		RowsAffected: ToPgInt4(params.RowsAffected),
		Reason:       ToPgText(params.Reason),
		Details:      details,
	})
	if err != nil {
		logging.FromContext(ctx).Error("audit log write failed",
			slog.String("action", string(params.Action)),
			slog.String("tree", params.TreeName),
			slog.Any("error", err),
		)
		return nil, err
	}
	return auditRowToEntry(row), nil
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	TreeName  string
	Action    AuditAction
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func (f AuditLogFilter) params() db.ListAuditLogParams {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	return db.ListAuditLogParams{
		TreeName: f.TreeName,
		Action:   string(f.Action),
		From:     ToPgTimestamptz(f.StartTime),
		To:       ToPgTimestamptz(f.EndTime),
		Limit:    int32(f.Limit),
		Offset:   int32(f.Offset),
	}
}

// AuditLogResult is one page of audit entries.
type AuditLogResult struct {
	Entries    []AuditEntry `json:"entries"`
	TotalCount int64        `json:"totalCount"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// GetAuditLog retrieves one page of audit entries, newest first.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) (*AuditLogResult, error) {
	p := filter.params()

	total, err := s.store.CountAuditLog(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("count audit log: %w", err)
	}
	rows, err := s.store.ListAuditLog(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *auditRowToEntry(row))
	}

	pageSize := int(p.Limit)
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	return &AuditLogResult{
		Entries:    entries,
		TotalCount: total,
		Page:       int(p.Offset)/pageSize + 1,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetAuditLogByID retrieves a single audit log entry by ID.
func (s *Service) GetAuditLogByID(ctx context.Context, id string) (*AuditEntry, error) {
	row, err := s.store.GetAuditLogByID(ctx, ToPgUUID(id))
	if err != nil {
		return nil, err
	}
	return auditRowToEntry(row), nil
}

// GetAuditLogArchive retrieves archived entries, newest first.
func (s *Service) GetAuditLogArchive(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	rows, err := s.store.ListAuditLogArchive(ctx, filter.params())
	if err != nil {
		return nil, fmt.Errorf("list audit archive: %w", err)
	}
	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := auditRowToEntry(row.AuditLog)
		if row.ArchivedAt.Valid {
			at := row.ArchivedAt.Time
			e.ArchivedAt = &at
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// auditRowToEntry converts a db.AuditLog to an AuditEntry.
func auditRowToEntry(row db.AuditLog) *AuditEntry {
	entry := &AuditEntry{
		ID:        PgUUIDToString(row.ID),
		Action:    AuditAction(row.Action),
		Severity:  AuditSeverity(row.Severity),
		TreeName:  row.TreeName,
		Xref:      FromPgText(row.Xref),
		UserName:  FromPgText(row.UserName),
		IPAddress: FromPgText(row.IPAddress),
		UserAgent: FromPgText(row.UserAgent),
		ImportID:  PgUUIDToString(row.ImportID),
		Reason:    FromPgText(row.Reason),
		CreatedAt: row.CreatedAt.Time,
	}
	if row.ChangeID.Valid {
		entry.ChangeID = int(row.ChangeID.Int32)
	}
	if row.RowsAffected.Valid {
		entry.RowsAffected = int(row.RowsAffected.Int32)
	}
	if row.Details != nil {
		_ = json.Unmarshal(row.Details, &entry.Details)
	}
	return entry
}

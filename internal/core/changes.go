package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/JonMunkholm/gedimport/internal/logging"
	"github.com/JonMunkholm/gedimport/internal/metrics"
	"github.com/jackc/pgx/v5"
)

// ChangeInfo is a pending, accepted or rejected edit of one record.
type ChangeInfo struct {
	ID        int       `json:"id"`
	Time      time.Time `json:"time"`
	Status    string    `json:"status"`
	Xref      string    `json:"xref"`
	OldGedcom string    `json:"oldGedcom"`
	NewGedcom string    `json:"newGedcom"`
	UserName  string    `json:"userName"`
}

func changeRowToInfo(c db.Change) ChangeInfo {
	return ChangeInfo{
		ID:        int(c.ID),
		Time:      c.Time.Time,
		Status:    c.Status,
		Xref:      c.Xref,
		OldGedcom: c.OldGedcom,
		NewGedcom: c.NewGedcom,
		UserName:  c.UserName,
	}
}

// SubmitChange stores a pending edit of a record. An empty newGedcom asks
// for the record to be deleted. The old text is the latest pending version
// of the record, or its stored text.
func (s *Service) SubmitChange(ctx context.Context, treeName, xref, newGedcom, userName string) (*ChangeInfo, error) {
	if newGedcom != "" {
		h, err := gedcom.ParseXrefHeader(newGedcom)
		if err != nil {
			return nil, fmt.Errorf("submit change for %s: %w", xref, err)
		}
		if h.Xref != xref {
			return nil, fmt.Errorf("submit change for %s: record is %s: %w", xref, h.Xref, gedcom.ErrInvalidRecord)
		}
	}

	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	key := db.RecordKey{Xref: xref, TreeID: tree.ID}

	oldGedcom, err := s.currentText(ctx, key)
	if err != nil {
		return nil, err
	}
	if oldGedcom == "" && newGedcom == "" {
		return nil, fmt.Errorf("delete %s: %w", xref, pgx.ErrNoRows)
	}

	row, err := s.store.InsertChange(ctx, db.InsertChangeParams{
		TreeID:    tree.ID,
		Xref:      xref,
		OldGedcom: oldGedcom,
		NewGedcom: newGedcom,
		UserName:  userName,
	})
	if err != nil {
		return nil, fmt.Errorf("insert change for %s: %w", xref, err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionChangeSubmit,
		TreeName: treeName,
		Xref:     xref,
		UserName: userName,
		ChangeID: int(row.ID),
	})

	info := changeRowToInfo(row)
	return &info, nil
}

// currentText returns the latest text of a record including pending edits,
// or "" if the record does not exist.
func (s *Service) currentText(ctx context.Context, key db.RecordKey) (string, error) {
	pending, err := s.store.ListPendingChanges(ctx, key)
	if err != nil {
		return "", fmt.Errorf("list pending changes: %w", err)
	}
	if len(pending) > 0 {
		return pending[len(pending)-1].NewGedcom, nil
	}

	rec, err := s.store.GetRecord(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get record %s: %w", key.Xref, err)
	}
	return rec.Gedcom, nil
}

// AcceptAllChanges applies every pending change of a record, oldest first,
// and marks them accepted. All of it happens in one transaction.
func (s *Service) AcceptAllChanges(ctx context.Context, treeName, xref string) (*ChangeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChangeTimeout)
	defer cancel()

	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	accepted, err := s.acceptChanges(ctx, tx, tree, xref)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.auditAccepted(ctx, treeName, accepted)
	metrics.RecordChanges("accepted", len(accepted))

	return &ChangeResult{Tree: treeName, Xrefs: []string{xref}, Accepted: len(accepted)}, nil
}

// acceptChanges replays the pending changes of one record within tx and
// returns them.
func (s *Service) acceptChanges(ctx context.Context, tx Tx, tree db.Tree, xref string) ([]db.Change, error) {
	key := db.RecordKey{Xref: xref, TreeID: tree.ID}
	changes, err := tx.ListPendingChanges(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPendingChanges, xref)
	}

	settings, err := s.loadSettings(ctx, tx, tree.ID)
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		text, del := c.NewGedcom, c.NewGedcom == ""
		if del {
			text = c.OldGedcom
		}
		if err := updateRecord(ctx, tx, tree.ID, settings, text, del); err != nil {
			return nil, fmt.Errorf("apply change %d: %w", c.ID, err)
		}
	}

	if _, err := tx.SetChangeStatus(ctx, db.SetChangeStatusParams{
		Xref:   xref,
		TreeID: tree.ID,
		Status: db.ChangeAccepted,
	}); err != nil {
		return nil, fmt.Errorf("mark changes accepted: %w", err)
	}
	return changes, nil
}

func (s *Service) auditAccepted(ctx context.Context, treeName string, changes []db.Change) {
	for _, c := range changes {
		s.LogAudit(ctx, AuditLogParams{
			Action:   ActionChangeAccept,
			TreeName: treeName,
			Xref:     c.Xref,
			UserName: c.UserName,
			ChangeID: int(c.ID),
		})
	}
}

// AcceptTree accepts the pending changes of every record in a tree. Each
// record is applied in its own transaction; on error the records already
// accepted stay accepted and are reported in the result.
func (s *Service) AcceptTree(ctx context.Context, treeName string) (*ChangeResult, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	xrefs, err := s.store.ListPendingXrefs(ctx, tree.ID)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}

	result := &ChangeResult{Tree: treeName, Xrefs: []string{}}
	for _, xref := range xrefs {
		r, err := s.AcceptAllChanges(ctx, treeName, xref)
		if err != nil {
			return result, err
		}
		result.Xrefs = append(result.Xrefs, xref)
		result.Accepted += r.Accepted
	}

	logging.FromContext(ctx).Info("accepted pending changes",
		"tree", treeName,
		"records", len(result.Xrefs),
		"changes", result.Accepted,
	)
	return result, nil
}

// RejectAllChanges marks every pending change of a record rejected. The
// stored record is left as it is.
func (s *Service) RejectAllChanges(ctx context.Context, treeName, xref string) (*ChangeResult, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}

	n, err := s.store.SetChangeStatus(ctx, db.SetChangeStatusParams{
		Xref:   xref,
		TreeID: tree.ID,
		Status: db.ChangeRejected,
	})
	if err != nil {
		return nil, fmt.Errorf("mark changes rejected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPendingChanges, xref)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:       ActionChangeReject,
		TreeName:     treeName,
		Xref:         xref,
		RowsAffected: int(n),
	})
	metrics.RecordChanges("rejected", int(n))

	return &ChangeResult{Tree: treeName, Xrefs: []string{xref}, Rejected: int(n)}, nil
}

// ListChanges returns a tree's changes, newest first. An empty status
// lists every change.
func (s *Service) ListChanges(ctx context.Context, treeName, status string, limit, offset int) ([]ChangeInfo, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.store.ListChanges(ctx, db.ListChangesParams{
		TreeID: tree.ID,
		Status: status,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	infos := make([]ChangeInfo, len(rows))
	for i, row := range rows {
		infos[i] = changeRowToInfo(row)
	}
	return infos, nil
}

// UpdateRecord replaces a stored record with text, or deletes it when del
// is set. text must start with "0 @XREF@ TYPE".
func (s *Service) UpdateRecord(ctx context.Context, treeName, text string, del bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChangeTimeout)
	defer cancel()

	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	settings, err := s.loadSettings(ctx, tx, tree.ID)
	if err != nil {
		return err
	}
	if err := updateRecord(ctx, tx, tree.ID, settings, text, del); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// updateRecord removes every row of the record that text identifies and,
// unless del is set, imports text in its place.
func updateRecord(ctx context.Context, st RecordStore, treeID int32, settings TreeSettings, text string, del bool) error {
	h, err := gedcom.ParseXrefHeader(text)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	key := db.RecordKey{Xref: h.Xref, TreeID: treeID}

	placeIDs, err := st.DeletePlaceLinks(ctx, key)
	if err != nil {
		return fmt.Errorf("delete place links of %s: %w", h.Xref, err)
	}
	if len(placeIDs) > 0 {
		if _, err := st.DeleteUnlinkedPlaces(ctx, db.DeleteUnlinkedPlacesParams{TreeID: treeID, PlaceIDs: placeIDs}); err != nil {
			return fmt.Errorf("delete unused places: %w", err)
		}
	}
	if err := st.DeleteDates(ctx, key); err != nil {
		return fmt.Errorf("delete dates of %s: %w", h.Xref, err)
	}
	if err := st.DeleteNames(ctx, key); err != nil {
		return fmt.Errorf("delete names of %s: %w", h.Xref, err)
	}
	if err := st.DeleteLinksFrom(ctx, key); err != nil {
		return fmt.Errorf("delete links of %s: %w", h.Xref, err)
	}
	if handler, ok := HandlerFor(h.Type); ok {
		if err := handler.Delete(ctx, st, treeID, h.Xref); err != nil {
			return fmt.Errorf("delete %s %s: %w", h.Type, h.Xref, err)
		}
	}

	if del {
		return nil
	}
	_, err = NewImporter(st, treeID, settings).ImportRecord(ctx, text, true)
	return err
}

// EmptyTree deletes every record of a tree. With keepMedia, media objects
// and the links to them survive for the next import to reattach.
func (s *Service) EmptyTree(ctx context.Context, treeName string, keepMedia bool, userName string) error {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return err
	}

	counts, err := s.store.CountRecords(ctx, tree.ID)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := tx.EmptyTree(ctx, db.EmptyTreeParams{TreeID: tree.ID, KeepMedia: keepMedia}); err != nil {
		return fmt.Errorf("empty tree %s: %w", treeName, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rows := counts.Individuals + counts.Families + counts.Sources + counts.Other
	if !keepMedia {
		rows += counts.Media
	}
	s.LogAudit(ctx, AuditLogParams{
		Action:       ActionTreeEmpty,
		TreeName:     treeName,
		UserName:     userName,
		RowsAffected: int(rows),
		Details:      map[string]any{"keepMedia": keepMedia},
	})
	return nil
}

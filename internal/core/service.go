package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/gedimport/internal/config"
	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/jackc/pgx/v5"
)

// Fallbacks for import settings left at zero.
const (
	defaultImportTimeout    = 30 * time.Minute
	defaultChangeTimeout    = 2 * time.Minute
	defaultProgressInterval = 100
	defaultResultRetention  = 5 * time.Minute
)

// Service provides the GEDCOM import pipeline and the change applier.
type Service struct {
	store    Database
	cfg      config.ImportConfig
	defaults TreeSettings
	limiter  *ImportLimiter

	mu      sync.RWMutex
	imports map[string]*activeImport
}

// NewService creates a new Service instance.
func NewService(store Database, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = &config.Config{}
	}
	ic := cfg.Import
	if ic.Timeout <= 0 {
		ic.Timeout = defaultImportTimeout
	}
	if ic.ChangeTimeout <= 0 {
		ic.ChangeTimeout = defaultChangeTimeout
	}
	if ic.ProgressInterval <= 0 {
		ic.ProgressInterval = defaultProgressInterval
	}
	if ic.ResultRetention <= 0 {
		ic.ResultRetention = defaultResultRetention
	}

	return &Service{
		store:    store,
		cfg:      ic,
		defaults: DefaultTreeSettings(cfg.Tree),
		limiter:  NewImportLimiter(ic.MaxConcurrent, ic.MaxWaitTime),
		imports:  make(map[string]*activeImport),
	}
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Limiter returns the import concurrency limiter.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Shutdown cancels running imports and waits for them to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, imp := range s.imports {
		imp.Cancel()
	}
	s.mu.RUnlock()
	return s.limiter.WaitForDrain(ctx)
}

// lookupTree finds a tree by name.
func (s *Service) lookupTree(ctx context.Context, name string) (db.Tree, error) {
	tree, err := s.store.GetTreeByName(ctx, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Tree{}, fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}
	if err != nil {
		return db.Tree{}, fmt.Errorf("look up tree %s: %w", name, err)
	}
	return tree, nil
}

// ensureTree finds a tree by name, creating it if it does not exist.
func (s *Service) ensureTree(ctx context.Context, name string) (db.Tree, error) {
	tree, err := s.lookupTree(ctx, name)
	if err == nil || !errors.Is(err, ErrTreeNotFound) {
		return tree, err
	}
	tree, err = s.store.CreateTree(ctx, name)
	if err != nil {
		return db.Tree{}, fmt.Errorf("create tree %s: %w", name, err)
	}
	return tree, nil
}

// TreeInfo describes a tree and its record counts.
type TreeInfo struct {
	ID             int32     `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
	Individuals    int64     `json:"individuals"`
	Families       int64     `json:"families"`
	Sources        int64     `json:"sources"`
	Media          int64     `json:"media"`
	Other          int64     `json:"other"`
	Places         int64     `json:"places"`
	PendingChanges int64     `json:"pendingChanges"`
}

// ListTrees returns every tree, without counts.
func (s *Service) ListTrees(ctx context.Context) ([]TreeInfo, error) {
	trees, err := s.store.ListTrees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	infos := make([]TreeInfo, len(trees))
	for i, t := range trees {
		infos[i] = TreeInfo{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt.Time}
	}
	return infos, nil
}

// TreeStats returns a tree with its record counts.
func (s *Service) TreeStats(ctx context.Context, treeName string) (*TreeInfo, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	c, err := s.store.CountRecords(ctx, tree.ID)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	return &TreeInfo{
		ID:             tree.ID,
		Name:           tree.Name,
		CreatedAt:      tree.CreatedAt.Time,
		Individuals:    c.Individuals,
		Families:       c.Families,
		Sources:        c.Sources,
		Media:          c.Media,
		Other:          c.Other,
		Places:         c.Places,
		PendingChanges: c.PendingChanges,
	}, nil
}

// RecordTypes lists the registered record handlers.
func (s *Service) RecordTypes() []RecordTypeInfo {
	handlers := All()
	infos := make([]RecordTypeInfo, len(handlers))
	for i, h := range handlers {
		infos[i] = h.Info()
	}
	return infos
}

// StoredRecord is the stored text of one record.
type StoredRecord struct {
	Tree   string `json:"tree"`
	Xref   string `json:"xref"`
	Type   string `json:"type"`
	Gedcom string `json:"gedcom"`
}

// GetRecord returns the stored text of a record. The error wraps
// pgx.ErrNoRows when the tree has no such record.
func (s *Service) GetRecord(ctx context.Context, treeName, xref string) (*StoredRecord, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, db.RecordKey{Xref: xref, TreeID: tree.ID})
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", xref, err)
	}
	return &StoredRecord{Tree: tree.Name, Xref: rec.Xref, Type: rec.Type, Gedcom: rec.Gedcom}, nil
}

package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gedimport/internal/config"
	db "github.com/JonMunkholm/gedimport/internal/database"
)

// Tree setting names, as stored in gedcom_setting.
const (
	SettingGenerateUIDs     = "GENERATE_UIDS"
	SettingUseRIN           = "USE_RIN"
	SettingKeepMedia        = "keep_media"
	SettingWordWrappedNotes = "WORD_WRAPPED_NOTES"
	SettingMediaPath        = "GEDCOM_MEDIA_PATH"
	SettingMediaIDPrefix    = "MEDIA_ID_PREFIX"
)

// TreeSettings are the per-tree options that affect importing.
type TreeSettings struct {
	GenerateUIDs     bool   `json:"generateUids"`
	UseRIN           bool   `json:"useRin"`
	KeepMedia        bool   `json:"keepMedia"`
	WordWrappedNotes bool   `json:"wordWrappedNotes"`
	MediaPath        string `json:"mediaPath"`
	MediaIDPrefix    string `json:"mediaIdPrefix"`
}

// DefaultTreeSettings returns the configured defaults.
func DefaultTreeSettings(cfg config.TreeConfig) TreeSettings {
	s := TreeSettings{
		GenerateUIDs:     cfg.GenerateUIDs,
		UseRIN:           cfg.UseRIN,
		KeepMedia:        cfg.KeepMedia,
		WordWrappedNotes: cfg.WordWrappedNotes,
		MediaPath:        cfg.MediaPath,
		MediaIDPrefix:    cfg.MediaIDPrefix,
	}
	if s.MediaIDPrefix == "" {
		s.MediaIDPrefix = "M"
	}
	return s
}

// apply overrides s with stored settings. Unknown names are ignored.
func (s *TreeSettings) apply(rows []db.TreeSetting) {
	for _, row := range rows {
		switch row.Name {
		case SettingGenerateUIDs:
			s.GenerateUIDs = settingBool(row.Value)
		case SettingUseRIN:
			s.UseRIN = settingBool(row.Value)
		case SettingKeepMedia:
			s.KeepMedia = settingBool(row.Value)
		case SettingWordWrappedNotes:
			s.WordWrappedNotes = settingBool(row.Value)
		case SettingMediaPath:
			s.MediaPath = row.Value
		case SettingMediaIDPrefix:
			if row.Value != "" {
				s.MediaIDPrefix = row.Value
			}
		}
	}
}

// Settings are stored as "1"/"0" but older trees hold "true"/"false" too.
func settingBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// validateSetting checks a setting name and normalizes its value.
func validateSetting(name, value string) (string, error) {
	switch name {
	case SettingGenerateUIDs, SettingUseRIN, SettingKeepMedia, SettingWordWrappedNotes:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("%w: %s expects a boolean, got %q", ErrInvalidSetting, name, value)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case SettingMediaPath:
		return value, nil
	case SettingMediaIDPrefix:
		value = strings.TrimSpace(value)
		if value == "" || strings.ContainsAny(value, "@ \t\n") {
			return "", fmt.Errorf("%w: %s must be a non-empty xref prefix", ErrInvalidSetting, name)
		}
		return value, nil
	}
	return "", fmt.Errorf("%w: unknown setting %q", ErrInvalidSetting, name)
}

// TreeSettings returns the effective settings of a tree.
func (s *Service) TreeSettings(ctx context.Context, treeName string) (TreeSettings, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return TreeSettings{}, err
	}
	return s.loadSettings(ctx, s.store, tree.ID)
}

func (s *Service) loadSettings(ctx context.Context, st Store, treeID int32) (TreeSettings, error) {
	settings := s.defaults
	rows, err := st.ListTreeSettings(ctx, treeID)
	if err != nil {
		return settings, fmt.Errorf("load tree settings: %w", err)
	}
	settings.apply(rows)
	return settings, nil
}

// SetTreeSetting stores one setting for a tree, creating the tree if needed.
func (s *Service) SetTreeSetting(ctx context.Context, treeName, name, value string) error {
	normalized, err := validateSetting(name, value)
	if err != nil {
		return err
	}
	tree, err := s.ensureTree(ctx, treeName)
	if err != nil {
		return err
	}
	if err := s.store.SetTreeSetting(ctx, db.TreeSetting{TreeID: tree.ID, Name: name, Value: normalized}); err != nil {
		return fmt.Errorf("save setting %s: %w", name, err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionSettingChange,
		TreeName: treeName,
		Reason:   name + "=" + normalized,
	})
	return nil
}

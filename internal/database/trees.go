package database

import (
	"context"
)

const getTree = `
SELECT gedcom_id, gedcom_name, created_at FROM gedcom WHERE gedcom_id = $1`

func (q *Queries) GetTree(ctx context.Context, id int32) (Tree, error) {
	row := q.db.QueryRow(ctx, getTree, id)
	var t Tree
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

const getTreeByName = `
SELECT gedcom_id, gedcom_name, created_at FROM gedcom WHERE gedcom_name = $1`

func (q *Queries) GetTreeByName(ctx context.Context, name string) (Tree, error) {
	row := q.db.QueryRow(ctx, getTreeByName, name)
	var t Tree
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

// The no-op update makes RETURNING yield the existing row on conflict.
const createTree = `
INSERT INTO gedcom (gedcom_name) VALUES ($1)
ON CONFLICT (gedcom_name) DO UPDATE SET gedcom_name = EXCLUDED.gedcom_name
RETURNING gedcom_id, gedcom_name, created_at`

// CreateTree returns the tree with the given name, creating it if needed.
func (q *Queries) CreateTree(ctx context.Context, name string) (Tree, error) {
	row := q.db.QueryRow(ctx, createTree, name)
	var t Tree
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

const listTrees = `
SELECT gedcom_id, gedcom_name, created_at FROM gedcom ORDER BY gedcom_name`

func (q *Queries) ListTrees(ctx context.Context) ([]Tree, error) {
	rows, err := q.db.Query(ctx, listTrees)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tree
	for rows.Next() {
		var t Tree
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const listTreeSettings = `
SELECT gedcom_id, setting_name, setting_value FROM gedcom_setting
WHERE gedcom_id = $1 ORDER BY setting_name`

func (q *Queries) ListTreeSettings(ctx context.Context, treeID int32) ([]TreeSetting, error) {
	rows, err := q.db.Query(ctx, listTreeSettings, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TreeSetting
	for rows.Next() {
		var s TreeSetting
		if err := rows.Scan(&s.TreeID, &s.Name, &s.Value); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const setTreeSetting = `
INSERT INTO gedcom_setting (gedcom_id, setting_name, setting_value) VALUES ($1, $2, $3)
ON CONFLICT (gedcom_id, setting_name) DO UPDATE SET setting_value = EXCLUDED.setting_value`

func (q *Queries) SetTreeSetting(ctx context.Context, arg TreeSetting) error {
	_, err := q.db.Exec(ctx, setTreeSetting, arg.TreeID, arg.Name, arg.Value)
	return err
}

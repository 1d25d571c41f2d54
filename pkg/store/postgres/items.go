package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

const itemColumns = `id, tree_id, stage_id, title, content_url, thumbnail_url, note,
    position_x, position_y, created_at, updated_at`

func scanItem(row pgx.Row) (store.LoveTreeItem, error) {
	var it store.LoveTreeItem
	err := row.Scan(&it.ID, &it.TreeID, &it.StageID, &it.Title, &it.ContentURL, &it.ThumbnailURL,
		&it.Note, &it.PositionX, &it.PositionY, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func scanItemRow(row pgx.CollectableRow) (store.LoveTreeItem, error) {
	return scanItem(row)
}

func (s *Store) GetLoveTreeItem(ctx context.Context, id string) (store.LoveTreeItem, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTreeItem{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM love_tree_items WHERE id = $1`, id))
	return it, database.Classify(err, "love tree item", id)
}

func (s *Store) GetLoveTreeItems(ctx context.Context, treeID string) ([]store.LoveTreeItem, error) {
	if err := store.RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM love_tree_items
WHERE tree_id = $1
ORDER BY stage_id, created_at`, treeID)
	if err != nil {
		return nil, database.Classify(err, "love tree", treeID)
	}
	items, err := collect(rows, scanItemRow)
	return items, database.Classify(err, "love tree", treeID)
}

func (s *Store) CreateLoveTreeItem(ctx context.Context, in store.NewLoveTreeItem) (store.LoveTreeItem, error) {
	if err := store.Validate(in); err != nil {
		return store.LoveTreeItem{}, err
	}
	if !store.IsStage(in.StageID) {
		return store.LoveTreeItem{}, errors.NewInvalidInput("stageId", "unknown stage")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.stamp()
	it := store.LoveTreeItem{
		ID:           uuid.NewString(),
		TreeID:       in.TreeID,
		StageID:      in.StageID,
		Title:        in.Title,
		ContentURL:   in.ContentURL,
		ThumbnailURL: in.ThumbnailURL,
		Note:         in.Note,
		PositionX:    in.PositionX,
		PositionY:    in.PositionY,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.Exec(ctx, `INSERT INTO love_tree_items (`+itemColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		it.ID, it.TreeID, it.StageID, it.Title, it.ContentURL, it.ThumbnailURL, it.Note,
		it.PositionX, it.PositionY, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return store.LoveTreeItem{}, database.Classify(err, "love tree", in.TreeID)
	}
	return it, nil
}

func (s *Store) UpdateLoveTreeItem(ctx context.Context, id string, patch store.LoveTreeItemPatch) (store.LoveTreeItem, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTreeItem{}, err
	}
	if err := store.Validate(patch); err != nil {
		return store.LoveTreeItem{}, err
	}
	if patch.StageID != nil && !store.IsStage(*patch.StageID) {
		return store.LoveTreeItem{}, errors.NewInvalidInput("stageId", "unknown stage")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	it, err := scanItem(s.db.QueryRow(ctx, `UPDATE love_tree_items SET
    stage_id = COALESCE($2, stage_id),
    title = COALESCE($3, title),
    note = COALESCE($4, note),
    position_x = COALESCE($5, position_x),
    position_y = COALESCE($6, position_y),
    updated_at = $7
WHERE id = $1
RETURNING `+itemColumns,
		id, patch.StageID, patch.Title, patch.Note, patch.PositionX, patch.PositionY, s.stamp()))
	return it, database.Classify(err, "love tree item", id)
}

func (s *Store) DeleteLoveTreeItem(ctx context.Context, id string) (store.LoveTreeItem, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTreeItem{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	it, err := scanItem(s.db.QueryRow(ctx, `DELETE FROM love_tree_items WHERE id = $1 RETURNING `+itemColumns, id))
	return it, database.Classify(err, "love tree item", id)
}

func (s *Store) GetStages(ctx context.Context) ([]store.Stage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT id, name, description, color, position FROM stages ORDER BY position`)
	if err != nil {
		return nil, database.Classify(err, "stage", "")
	}
	stages, err := collect(rows, func(row pgx.CollectableRow) (store.Stage, error) {
		var st store.Stage
		err := row.Scan(&st.ID, &st.Name, &st.Description, &st.Color, &st.Position)
		return st, err
	})
	return stages, database.Classify(err, "stage", "")
}

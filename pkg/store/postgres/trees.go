package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

const treeColumns = `t.id, t.user_id, t.title, t.description, t.idol_name, t.is_public,
    (SELECT count(*) FROM love_tree_items i WHERE i.tree_id = t.id) AS item_count,
    (SELECT count(*) FROM likes l WHERE l.tree_id = t.id) AS like_count,
    (SELECT count(*) FROM comments c WHERE c.tree_id = t.id) AS comment_count,
    t.created_at, t.updated_at`

func scanTree(row pgx.Row) (store.LoveTree, error) {
	var t store.LoveTree
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.IdolName, &t.IsPublic,
		&t.ItemCount, &t.LikeCount, &t.CommentCount, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanTreeRow(row pgx.CollectableRow) (store.LoveTree, error) {
	return scanTree(row)
}

func (s *Store) queryTrees(ctx context.Context, query string, args ...any) ([]store.LoveTree, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(err, "love tree", "")
	}
	trees, err := collect(rows, scanTreeRow)
	return trees, database.Classify(err, "love tree", "")
}

func (s *Store) GetLoveTree(ctx context.Context, id string) (store.LoveTree, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTree{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTree(s.db.QueryRow(ctx, `SELECT `+treeColumns+` FROM love_trees t WHERE t.id = $1`, id))
	return t, database.Classify(err, "love tree", id)
}

func (s *Store) GetUserLoveTrees(ctx context.Context, userID string) ([]store.LoveTree, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return nil, err
	}
	return s.queryTrees(ctx, `SELECT `+treeColumns+` FROM love_trees t
WHERE t.user_id = $1
ORDER BY t.created_at DESC`, userID)
}

func (s *Store) GetPopularLoveTrees(ctx context.Context, limit int) ([]store.LoveTree, error) {
	return s.queryTrees(ctx, `SELECT `+treeColumns+` FROM love_trees t
WHERE t.is_public
ORDER BY like_count DESC, t.created_at DESC
LIMIT $1`, store.NormalizeLimit(limit))
}

func (s *Store) SearchLoveTrees(ctx context.Context, query string, limit int) ([]store.LoveTree, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errors.NewInvalidInput("query", "is required")
	}
	return s.queryTrees(ctx, `SELECT `+treeColumns+` FROM love_trees t
WHERE t.is_public AND (t.title ILIKE $1 OR t.idol_name ILIKE $1 OR t.description ILIKE $1)
ORDER BY like_count DESC, t.created_at DESC
LIMIT $2`, likePattern(q), store.NormalizeLimit(limit))
}

func (s *Store) CreateLoveTree(ctx context.Context, in store.NewLoveTree) (store.LoveTree, error) {
	if err := store.Validate(in); err != nil {
		return store.LoveTree{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.stamp()
	t := store.LoveTree{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		IdolName:    in.IdolName,
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(ctx, `INSERT INTO love_trees (id, user_id, title, description, idol_name, is_public, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.Title, t.Description, t.IdolName, t.IsPublic, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return store.LoveTree{}, database.Classify(err, "user", in.UserID)
	}
	return t, nil
}

func (s *Store) UpdateLoveTree(ctx context.Context, id string, patch store.LoveTreePatch) (store.LoveTree, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTree{}, err
	}
	if err := store.Validate(patch); err != nil {
		return store.LoveTree{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTree(s.db.QueryRow(ctx, `WITH t AS (
    UPDATE love_trees SET
        title = COALESCE($2, title),
        description = COALESCE($3, description),
        idol_name = COALESCE($4, idol_name),
        is_public = COALESCE($5, is_public),
        updated_at = $6
    WHERE id = $1
    RETURNING *
) SELECT `+treeColumns+` FROM t`,
		id, patch.Title, patch.Description, patch.IdolName, patch.IsPublic, s.stamp()))
	return t, database.Classify(err, "love tree", id)
}

// DeleteLoveTree deletes the tree; items, comments, likes and recommendations go with
// it by cascade. The returned counts are those before the delete.
func (s *Store) DeleteLoveTree(ctx context.Context, id string) (store.LoveTree, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.LoveTree{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTree(s.db.QueryRow(ctx, `WITH t AS (
    DELETE FROM love_trees WHERE id = $1 RETURNING *
) SELECT `+treeColumns+` FROM t`, id))
	return t, database.Classify(err, "love tree", id)
}

package postgres

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

// isForeignKeyViolation reports whether err violates the named foreign key.
func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23503" && pgErr.ConstraintName == constraint
}

// Comments

const commentColumns = `id, tree_id, user_id, body, created_at`

func scanComment(row pgx.Row) (store.Comment, error) {
	var c store.Comment
	err := row.Scan(&c.ID, &c.TreeID, &c.UserID, &c.Body, &c.CreatedAt)
	return c, err
}

func (s *Store) GetComments(ctx context.Context, treeID string) ([]store.Comment, error) {
	if err := store.RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+commentColumns+` FROM comments
WHERE tree_id = $1
ORDER BY created_at`, treeID)
	if err != nil {
		return nil, database.Classify(err, "love tree", treeID)
	}
	comments, err := collect(rows, func(row pgx.CollectableRow) (store.Comment, error) { return scanComment(row) })
	return comments, database.Classify(err, "love tree", treeID)
}

func (s *Store) CreateComment(ctx context.Context, in store.NewComment) (store.Comment, error) {
	if err := store.Validate(in); err != nil {
		return store.Comment{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c := store.Comment{
		ID:        uuid.NewString(),
		TreeID:    in.TreeID,
		UserID:    in.UserID,
		Body:      in.Body,
		CreatedAt: s.stamp(),
	}
	_, err := s.db.Exec(ctx, `INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TreeID, c.UserID, c.Body, c.CreatedAt)
	switch {
	case err == nil:
		return c, nil
	case isForeignKeyViolation(err, "comments_user_id_fkey"):
		return store.Comment{}, database.Classify(err, "user", in.UserID)
	default:
		return store.Comment{}, database.Classify(err, "love tree", in.TreeID)
	}
}

func (s *Store) DeleteComment(ctx context.Context, id string) (store.Comment, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.Comment{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanComment(s.db.QueryRow(ctx, `DELETE FROM comments WHERE id = $1 RETURNING `+commentColumns, id))
	return c, database.Classify(err, "comment", id)
}

// Likes

func (s *Store) ToggleLike(ctx context.Context, userID, treeID string) (bool, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return false, err
	}
	if err := store.RequireID("treeId", treeID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var liked bool
	err := s.db.QueryRow(ctx, `WITH removed AS (
    DELETE FROM likes WHERE tree_id = $1 AND user_id = $2 RETURNING 1
), inserted AS (
    INSERT INTO likes (tree_id, user_id, created_at)
    SELECT $1, $2, $3 WHERE NOT EXISTS (SELECT 1 FROM removed)
    RETURNING 1
) SELECT EXISTS (SELECT 1 FROM inserted)`, treeID, userID, s.stamp()).Scan(&liked)
	return liked, database.Classify(err, "love tree", treeID)
}

func (s *Store) HasLiked(ctx context.Context, userID, treeID string) (bool, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return false, err
	}
	if err := store.RequireID("treeId", treeID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE tree_id = $1 AND user_id = $2)`,
		treeID, userID).Scan(&ok)
	return ok, database.Classify(err, "like", treeID)
}

// Recommendations

const recommendationColumns = `id, tree_id, from_user_id, title, content_url, note, created_at`

func (s *Store) GetRecommendations(ctx context.Context, treeID string) ([]store.Recommendation, error) {
	if err := store.RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+recommendationColumns+` FROM recommendations
WHERE tree_id = $1
ORDER BY created_at DESC`, treeID)
	if err != nil {
		return nil, database.Classify(err, "love tree", treeID)
	}
	recs, err := collect(rows, func(row pgx.CollectableRow) (store.Recommendation, error) {
		var r store.Recommendation
		err := row.Scan(&r.ID, &r.TreeID, &r.FromUserID, &r.Title, &r.ContentURL, &r.Note, &r.CreatedAt)
		return r, err
	})
	return recs, database.Classify(err, "love tree", treeID)
}

func (s *Store) CreateRecommendation(ctx context.Context, in store.NewRecommendation) (store.Recommendation, error) {
	if err := store.Validate(in); err != nil {
		return store.Recommendation{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r := store.Recommendation{
		ID:         uuid.NewString(),
		TreeID:     in.TreeID,
		FromUserID: in.FromUserID,
		Title:      in.Title,
		ContentURL: in.ContentURL,
		Note:       in.Note,
		CreatedAt:  s.stamp(),
	}
	_, err := s.db.Exec(ctx, `INSERT INTO recommendations (`+recommendationColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.TreeID, r.FromUserID, r.Title, r.ContentURL, r.Note, r.CreatedAt)
	if err != nil {
		return store.Recommendation{}, database.Classify(err, "love tree", in.TreeID)
	}
	return r, nil
}

// Notifications

const notificationColumns = `id, user_id, kind, actor_id, tree_id, message, read, created_at`

func scanNotification(row pgx.Row) (store.Notification, error) {
	var n store.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.ActorID, &n.TreeID, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

func (s *Store) GetNotifications(ctx context.Context, userID string, page store.Page) ([]store.Notification, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, database.Classify(err, "user", userID)
	}
	ns, err := collect(rows, func(row pgx.CollectableRow) (store.Notification, error) { return scanNotification(row) })
	return ns, database.Classify(err, "user", userID)
}

func (s *Store) GetUnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	return n, database.Classify(err, "user", userID)
}

func (s *Store) CreateNotification(ctx context.Context, in store.NewNotification) (store.Notification, error) {
	if err := store.Validate(in); err != nil {
		return store.Notification{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n := store.Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Kind:      in.Kind,
		ActorID:   in.ActorID,
		TreeID:    in.TreeID,
		Message:   in.Message,
		CreatedAt: s.stamp(),
	}
	_, err := s.db.Exec(ctx, `INSERT INTO notifications (`+notificationColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Kind, n.ActorID, n.TreeID, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return store.Notification{}, database.Classify(err, "notification", n.ID)
	}
	return n, nil
}

// MarkNotificationRead marks one of userID's notifications read. Another user's
// notification is reported as not found.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (store.Notification, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return store.Notification{}, err
	}
	if err := store.RequireID("id", id); err != nil {
		return store.Notification{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := scanNotification(s.db.QueryRow(ctx, `UPDATE notifications SET read = TRUE
WHERE id = $1 AND user_id = $2
RETURNING `+notificationColumns, id, userID))
	return n, database.Classify(err, "notification", id)
}

package postgres

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

const userColumns = `u.id, u.username, u.display_name, u.avatar_url, u.bio,
    (SELECT count(*) FROM follows f WHERE f.following_id = u.id) AS follower_count,
    (SELECT count(*) FROM follows f WHERE f.follower_id = u.id) AS following_count,
    u.created_at, u.updated_at`

func scanUser(row pgx.Row) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Bio,
		&u.FollowerCount, &u.FollowingCount, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanUserRow(row pgx.CollectableRow) (store.User, error) {
	return scanUser(row)
}

// isUniqueViolation reports whether err is a unique violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func usernameTaken(username string, err error) error {
	return errors.NewConflictWithCause("user", "username "+username+" is taken", err)
}

func (s *Store) GetUser(ctx context.Context, id string) (store.User, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	return u, database.Classify(err, "user", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if err := store.RequireID("username", username); err != nil {
		return store.User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.username) = lower($1)`, username))
	return u, database.Classify(err, "user", username)
}

func (s *Store) CreateUser(ctx context.Context, in store.NewUser) (store.User, error) {
	if err := store.Validate(in); err != nil {
		return store.User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.stamp()
	u := store.User{
		ID:          uuid.NewString(),
		Username:    in.Username,
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
		Bio:         in.Bio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(ctx, `INSERT INTO users (id, username, display_name, avatar_url, bio, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.DisplayName, u.AvatarURL, u.Bio, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err, "users_username_key") {
		return store.User{}, usernameTaken(in.Username, err)
	}
	if err != nil {
		return store.User{}, database.Classify(err, "user", u.ID)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (store.User, error) {
	if err := store.RequireID("id", id); err != nil {
		return store.User{}, err
	}
	if err := store.Validate(patch); err != nil {
		return store.User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx, `WITH u AS (
    UPDATE users SET
        display_name = COALESCE($2, display_name),
        avatar_url = COALESCE($3, avatar_url),
        bio = COALESCE($4, bio),
        updated_at = $5
    WHERE id = $1
    RETURNING *
) SELECT `+userColumns+` FROM u`,
		id, patch.DisplayName, patch.AvatarURL, patch.Bio, s.stamp()))
	return u, database.Classify(err, "user", id)
}

func (s *Store) UpsertUser(ctx context.Context, in store.UserUpsert) (store.User, error) {
	if err := store.Validate(in); err != nil {
		return store.User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.stamp()
	u, err := scanUser(s.db.QueryRow(ctx, `WITH u AS (
    INSERT INTO users (id, username, display_name, avatar_url, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $5)
    ON CONFLICT (id) DO UPDATE SET
        username = EXCLUDED.username,
        display_name = EXCLUDED.display_name,
        avatar_url = EXCLUDED.avatar_url,
        updated_at = EXCLUDED.updated_at
    RETURNING *
) SELECT `+userColumns+` FROM u`,
		in.ID, in.Username, in.DisplayName, in.AvatarURL, now))
	if isUniqueViolation(err, "users_username_key") {
		return store.User{}, usernameTaken(in.Username, err)
	}
	return u, database.Classify(err, "user", in.ID)
}

func (s *Store) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := store.RequireID("followerId", followerID); err != nil {
		return false, err
	}
	if err := store.RequireID("followingId", followingID); err != nil {
		return false, err
	}
	if followerID == followingID {
		return false, errors.NewInvalidInput("followingId", "cannot follow yourself")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var following bool
	err := s.db.QueryRow(ctx, `WITH removed AS (
    DELETE FROM follows WHERE follower_id = $1 AND following_id = $2 RETURNING 1
), inserted AS (
    INSERT INTO follows (follower_id, following_id, created_at)
    SELECT $1, $2, $3 WHERE NOT EXISTS (SELECT 1 FROM removed)
    RETURNING 1
) SELECT EXISTS (SELECT 1 FROM inserted)`, followerID, followingID, s.stamp()).Scan(&following)
	return following, database.Classify(err, "user", followingID)
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := store.RequireID("followerId", followerID); err != nil {
		return false, err
	}
	if err := store.RequireID("followingId", followingID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&ok)
	return ok, database.Classify(err, "follow", followerID)
}

func (s *Store) GetFollowers(ctx context.Context, userID string) ([]store.User, error) {
	return s.follows(ctx, userID, `SELECT `+userColumns+`
FROM follows fl JOIN users u ON u.id = fl.follower_id
WHERE fl.following_id = $1
ORDER BY fl.created_at DESC`)
}

func (s *Store) GetFollowing(ctx context.Context, userID string) ([]store.User, error) {
	return s.follows(ctx, userID, `SELECT `+userColumns+`
FROM follows fl JOIN users u ON u.id = fl.following_id
WHERE fl.follower_id = $1
ORDER BY fl.created_at DESC`)
}

func (s *Store) follows(ctx context.Context, userID, query string) ([]store.User, error) {
	if err := store.RequireID("userId", userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, database.Classify(err, "user", userID)
	}
	users, err := collect(rows, scanUserRow)
	return users, database.Classify(err, "user", userID)
}

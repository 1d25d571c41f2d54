package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
)

// entry keeps insertion order so equal timestamps still sort deterministically.
type entry[T any] struct {
	val T
	seq uint64
}

type likeKey struct{ treeID, userID string }

type followKey struct{ followerID, followingID string }

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time
	seq uint64

	users         map[string]*entry[User]
	usernames     map[string]string
	trees         map[string]*entry[LoveTree]
	items         map[string]*entry[LoveTreeItem]
	comments      map[string]*entry[Comment]
	likes         map[likeKey]*entry[Like]
	recs          map[string]*entry[Recommendation]
	notifications map[string]*entry[Notification]
	follows       map[followKey]*entry[Follow]
	stages        []Stage
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty store seeded with DefaultStages.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:           time.Now,
		users:         make(map[string]*entry[User]),
		usernames:     make(map[string]string),
		trees:         make(map[string]*entry[LoveTree]),
		items:         make(map[string]*entry[LoveTreeItem]),
		comments:      make(map[string]*entry[Comment]),
		likes:         make(map[likeKey]*entry[Like]),
		recs:          make(map[string]*entry[Recommendation]),
		notifications: make(map[string]*entry[Notification]),
		follows:       make(map[followKey]*entry[Follow]),
		stages:        slices.Clone(DefaultStages),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) next() uint64 {
	m.seq++
	return m.seq
}

func (m *Memory) stamp() time.Time {
	return m.now().UTC()
}

// values returns the entries of src matching keep, oldest first.
func values[K comparable, T any](src map[K]*entry[T], keep func(T) bool) []*entry[T] {
	out := make([]*entry[T], 0)
	for _, e := range src {
		if keep == nil || keep(e.val) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *entry[T]) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func unwrap[T any](entries []*entry[T]) []T {
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.val
	}
	return out
}

func newestFirst[T any](entries []*entry[T]) []*entry[T] {
	slices.Reverse(entries)
	return entries
}

// Users

func (m *Memory) userView(u User) User {
	for k := range m.follows {
		if k.followingID == u.ID {
			u.FollowerCount++
		}
		if k.followerID == u.ID {
			u.FollowingCount++
		}
	}
	return u
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	if err := RequireID("id", id); err != nil {
		return User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.users[id]
	if !ok {
		return User{}, lterrors.NewNotFound("user", id)
	}
	return m.userView(e.val), nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (User, error) {
	if err := RequireID("username", username); err != nil {
		return User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return User{}, lterrors.NewNotFound("user", username)
	}
	return m.userView(m.users[id].val), nil
}

func (m *Memory) CreateUser(_ context.Context, in NewUser) (User, error) {
	if err := Validate(in); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(in.Username)
	if _, taken := m.usernames[name]; taken {
		return User{}, lterrors.NewConflict("user", "username "+in.Username+" is taken")
	}

	now := m.stamp()
	u := User{
		ID:          uuid.NewString(),
		Username:    in.Username,
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
		Bio:         in.Bio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.users[u.ID] = &entry[User]{val: u, seq: m.next()}
	m.usernames[name] = u.ID
	return u, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, patch UserPatch) (User, error) {
	if err := RequireID("id", id); err != nil {
		return User{}, err
	}
	if err := Validate(patch); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.users[id]
	if !ok {
		return User{}, lterrors.NewNotFound("user", id)
	}
	if patch.DisplayName != nil {
		e.val.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		e.val.AvatarURL = *patch.AvatarURL
	}
	if patch.Bio != nil {
		e.val.Bio = *patch.Bio
	}
	e.val.UpdatedAt = m.stamp()
	return m.userView(e.val), nil
}

func (m *Memory) UpsertUser(_ context.Context, in UserUpsert) (User, error) {
	if err := Validate(in); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(in.Username)
	if owner, taken := m.usernames[name]; taken && owner != in.ID {
		return User{}, lterrors.NewConflict("user", "username "+in.Username+" is taken")
	}

	now := m.stamp()
	e, ok := m.users[in.ID]
	if !ok {
		e = &entry[User]{val: User{ID: in.ID, CreatedAt: now}, seq: m.next()}
		m.users[in.ID] = e
	} else {
		delete(m.usernames, strings.ToLower(e.val.Username))
	}
	e.val.Username = in.Username
	e.val.DisplayName = in.DisplayName
	e.val.AvatarURL = in.AvatarURL
	e.val.UpdatedAt = now
	m.usernames[name] = in.ID
	return m.userView(e.val), nil
}

// Love trees

func (m *Memory) treeView(t LoveTree) LoveTree {
	t.ItemCount, t.LikeCount, t.CommentCount = 0, 0, 0
	for _, e := range m.items {
		if e.val.TreeID == t.ID {
			t.ItemCount++
		}
	}
	for k := range m.likes {
		if k.treeID == t.ID {
			t.LikeCount++
		}
	}
	for _, e := range m.comments {
		if e.val.TreeID == t.ID {
			t.CommentCount++
		}
	}
	return t
}

func (m *Memory) treeViews(entries []*entry[LoveTree]) []LoveTree {
	out := make([]LoveTree, len(entries))
	for i, e := range entries {
		out[i] = m.treeView(e.val)
	}
	return out
}

// byPopularity orders by likes, then newest first.
func byPopularity(trees []LoveTree) {
	slices.SortStableFunc(trees, func(a, b LoveTree) int {
		if c := cmp.Compare(b.LikeCount, a.LikeCount); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func (m *Memory) GetLoveTree(_ context.Context, id string) (LoveTree, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTree{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.trees[id]
	if !ok {
		return LoveTree{}, lterrors.NewNotFound("love tree", id)
	}
	return m.treeView(e.val), nil
}

func (m *Memory) GetUserLoveTrees(_ context.Context, userID string) ([]LoveTree, error) {
	if err := RequireID("userId", userID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.treeViews(newestFirst(values(m.trees, func(t LoveTree) bool { return t.UserID == userID }))), nil
}

func (m *Memory) GetPopularLoveTrees(_ context.Context, limit int) ([]LoveTree, error) {
	limit = NormalizeLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	trees := m.treeViews(newestFirst(values(m.trees, func(t LoveTree) bool { return t.IsPublic })))
	byPopularity(trees)
	if len(trees) > limit {
		trees = trees[:limit]
	}
	return trees, nil
}

func (m *Memory) SearchLoveTrees(_ context.Context, query string, limit int) ([]LoveTree, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, lterrors.NewInvalidInput("query", "is required")
	}
	limit = NormalizeLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	match := func(t LoveTree) bool {
		return t.IsPublic && (strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.IdolName), q) ||
			strings.Contains(strings.ToLower(t.Description), q))
	}
	trees := m.treeViews(newestFirst(values(m.trees, match)))
	byPopularity(trees)
	if len(trees) > limit {
		trees = trees[:limit]
	}
	return trees, nil
}

func (m *Memory) CreateLoveTree(_ context.Context, in NewLoveTree) (LoveTree, error) {
	if err := Validate(in); err != nil {
		return LoveTree{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[in.UserID]; !ok {
		return LoveTree{}, lterrors.NewNotFound("user", in.UserID)
	}
	now := m.stamp()
	t := LoveTree{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		IdolName:    in.IdolName,
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.trees[t.ID] = &entry[LoveTree]{val: t, seq: m.next()}
	return t, nil
}

func (m *Memory) UpdateLoveTree(_ context.Context, id string, patch LoveTreePatch) (LoveTree, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTree{}, err
	}
	if err := Validate(patch); err != nil {
		return LoveTree{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.trees[id]
	if !ok {
		return LoveTree{}, lterrors.NewNotFound("love tree", id)
	}
	if patch.Title != nil {
		e.val.Title = *patch.Title
	}
	if patch.Description != nil {
		e.val.Description = *patch.Description
	}
	if patch.IdolName != nil {
		e.val.IdolName = *patch.IdolName
	}
	if patch.IsPublic != nil {
		e.val.IsPublic = *patch.IsPublic
	}
	e.val.UpdatedAt = m.stamp()
	return m.treeView(e.val), nil
}

// DeleteLoveTree removes the tree with its items, comments, likes and recommendations.
func (m *Memory) DeleteLoveTree(_ context.Context, id string) (LoveTree, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTree{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.trees[id]
	if !ok {
		return LoveTree{}, lterrors.NewNotFound("love tree", id)
	}
	deleted := m.treeView(e.val)

	delete(m.trees, id)
	for k, it := range m.items {
		if it.val.TreeID == id {
			delete(m.items, k)
		}
	}
	for k, c := range m.comments {
		if c.val.TreeID == id {
			delete(m.comments, k)
		}
	}
	for k := range m.likes {
		if k.treeID == id {
			delete(m.likes, k)
		}
	}
	for k, r := range m.recs {
		if r.val.TreeID == id {
			delete(m.recs, k)
		}
	}
	return deleted, nil
}

// Items

func (m *Memory) GetLoveTreeItem(_ context.Context, id string) (LoveTreeItem, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTreeItem{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[id]
	if !ok {
		return LoveTreeItem{}, lterrors.NewNotFound("love tree item", id)
	}
	return e.val, nil
}

// GetLoveTreeItems returns the items of a tree ordered by stage, then creation.
func (m *Memory) GetLoveTreeItems(_ context.Context, treeID string) ([]LoveTreeItem, error) {
	if err := RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := unwrap(values(m.items, func(it LoveTreeItem) bool { return it.TreeID == treeID }))
	slices.SortStableFunc(items, func(a, b LoveTreeItem) int { return cmp.Compare(a.StageID, b.StageID) })
	return items, nil
}

func (m *Memory) CreateLoveTreeItem(_ context.Context, in NewLoveTreeItem) (LoveTreeItem, error) {
	if err := Validate(in); err != nil {
		return LoveTreeItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trees[in.TreeID]; !ok {
		return LoveTreeItem{}, lterrors.NewNotFound("love tree", in.TreeID)
	}
	if !IsStage(in.StageID) {
		return LoveTreeItem{}, lterrors.NewInvalidInput("stageId", "unknown stage")
	}
	now := m.stamp()
	it := LoveTreeItem{
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
	m.items[it.ID] = &entry[LoveTreeItem]{val: it, seq: m.next()}
	return it, nil
}

func (m *Memory) UpdateLoveTreeItem(_ context.Context, id string, patch LoveTreeItemPatch) (LoveTreeItem, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTreeItem{}, err
	}
	if err := Validate(patch); err != nil {
		return LoveTreeItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[id]
	if !ok {
		return LoveTreeItem{}, lterrors.NewNotFound("love tree item", id)
	}
	if patch.StageID != nil {
		if !IsStage(*patch.StageID) {
			return LoveTreeItem{}, lterrors.NewInvalidInput("stageId", "unknown stage")
		}
		e.val.StageID = *patch.StageID
	}
	if patch.Title != nil {
		e.val.Title = *patch.Title
	}
	if patch.Note != nil {
		e.val.Note = *patch.Note
	}
	if patch.PositionX != nil {
		e.val.PositionX = *patch.PositionX
	}
	if patch.PositionY != nil {
		e.val.PositionY = *patch.PositionY
	}
	e.val.UpdatedAt = m.stamp()
	return e.val, nil
}

func (m *Memory) DeleteLoveTreeItem(_ context.Context, id string) (LoveTreeItem, error) {
	if err := RequireID("id", id); err != nil {
		return LoveTreeItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[id]
	if !ok {
		return LoveTreeItem{}, lterrors.NewNotFound("love tree item", id)
	}
	delete(m.items, id)
	return e.val, nil
}

func (m *Memory) GetStages(_ context.Context) ([]Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.stages), nil
}

// Comments

// GetComments returns a tree's comments oldest first.
func (m *Memory) GetComments(_ context.Context, treeID string) ([]Comment, error) {
	if err := RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return unwrap(values(m.comments, func(c Comment) bool { return c.TreeID == treeID })), nil
}

func (m *Memory) CreateComment(_ context.Context, in NewComment) (Comment, error) {
	if err := Validate(in); err != nil {
		return Comment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trees[in.TreeID]; !ok {
		return Comment{}, lterrors.NewNotFound("love tree", in.TreeID)
	}
	if _, ok := m.users[in.UserID]; !ok {
		return Comment{}, lterrors.NewNotFound("user", in.UserID)
	}
	c := Comment{
		ID:        uuid.NewString(),
		TreeID:    in.TreeID,
		UserID:    in.UserID,
		Body:      in.Body,
		CreatedAt: m.stamp(),
	}
	m.comments[c.ID] = &entry[Comment]{val: c, seq: m.next()}
	return c, nil
}

func (m *Memory) DeleteComment(_ context.Context, id string) (Comment, error) {
	if err := RequireID("id", id); err != nil {
		return Comment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.comments[id]
	if !ok {
		return Comment{}, lterrors.NewNotFound("comment", id)
	}
	delete(m.comments, id)
	return e.val, nil
}

// Likes

func (m *Memory) ToggleLike(_ context.Context, userID, treeID string) (bool, error) {
	if err := RequireID("userId", userID); err != nil {
		return false, err
	}
	if err := RequireID("treeId", treeID); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trees[treeID]; !ok {
		return false, lterrors.NewNotFound("love tree", treeID)
	}
	k := likeKey{treeID: treeID, userID: userID}
	if _, ok := m.likes[k]; ok {
		delete(m.likes, k)
		return false, nil
	}
	m.likes[k] = &entry[Like]{val: Like{TreeID: treeID, UserID: userID, CreatedAt: m.stamp()}, seq: m.next()}
	return true, nil
}

func (m *Memory) HasLiked(_ context.Context, userID, treeID string) (bool, error) {
	if err := RequireID("userId", userID); err != nil {
		return false, err
	}
	if err := RequireID("treeId", treeID); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.likes[likeKey{treeID: treeID, userID: userID}]
	return ok, nil
}

// Recommendations

// GetRecommendations returns a tree's recommendations newest first.
func (m *Memory) GetRecommendations(_ context.Context, treeID string) ([]Recommendation, error) {
	if err := RequireID("treeId", treeID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return unwrap(newestFirst(values(m.recs, func(r Recommendation) bool { return r.TreeID == treeID }))), nil
}

func (m *Memory) CreateRecommendation(_ context.Context, in NewRecommendation) (Recommendation, error) {
	if err := Validate(in); err != nil {
		return Recommendation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trees[in.TreeID]; !ok {
		return Recommendation{}, lterrors.NewNotFound("love tree", in.TreeID)
	}
	r := Recommendation{
		ID:         uuid.NewString(),
		TreeID:     in.TreeID,
		FromUserID: in.FromUserID,
		Title:      in.Title,
		ContentURL: in.ContentURL,
		Note:       in.Note,
		CreatedAt:  m.stamp(),
	}
	m.recs[r.ID] = &entry[Recommendation]{val: r, seq: m.next()}
	return r, nil
}

// Notifications

// GetNotifications returns one page of a user's notifications, newest first.
func (m *Memory) GetNotifications(_ context.Context, userID string, page Page) ([]Notification, error) {
	if err := RequireID("userId", userID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := unwrap(newestFirst(values(m.notifications, func(n Notification) bool { return n.UserID == userID })))
	if page.Offset >= len(all) {
		return []Notification{}, nil
	}
	end := min(page.Offset+page.Limit, len(all))
	return all[page.Offset:end], nil
}

func (m *Memory) GetUnreadNotificationCount(_ context.Context, userID string) (int, error) {
	if err := RequireID("userId", userID); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.notifications {
		if e.val.UserID == userID && !e.val.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateNotification(_ context.Context, in NewNotification) (Notification, error) {
	if err := Validate(in); err != nil {
		return Notification{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Kind:      in.Kind,
		ActorID:   in.ActorID,
		TreeID:    in.TreeID,
		Message:   in.Message,
		CreatedAt: m.stamp(),
	}
	m.notifications[n.ID] = &entry[Notification]{val: n, seq: m.next()}
	return n, nil
}

// MarkNotificationRead marks one of userID's notifications read. Another user's
// notification is reported as not found.
func (m *Memory) MarkNotificationRead(_ context.Context, userID, id string) (Notification, error) {
	if err := RequireID("userId", userID); err != nil {
		return Notification{}, err
	}
	if err := RequireID("id", id); err != nil {
		return Notification{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.notifications[id]
	if !ok || e.val.UserID != userID {
		return Notification{}, lterrors.NewNotFound("notification", id)
	}
	e.val.Read = true
	return e.val, nil
}

// Follows

func (m *Memory) ToggleFollow(_ context.Context, followerID, followingID string) (bool, error) {
	if err := RequireID("followerId", followerID); err != nil {
		return false, err
	}
	if err := RequireID("followingId", followingID); err != nil {
		return false, err
	}
	if followerID == followingID {
		return false, lterrors.NewInvalidInput("followingId", "cannot follow yourself")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []string{followerID, followingID} {
		if _, ok := m.users[id]; !ok {
			return false, lterrors.NewNotFound("user", id)
		}
	}
	k := followKey{followerID: followerID, followingID: followingID}
	if _, ok := m.follows[k]; ok {
		delete(m.follows, k)
		return false, nil
	}
	m.follows[k] = &entry[Follow]{
		val: Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: m.stamp()},
		seq: m.next(),
	}
	return true, nil
}

func (m *Memory) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	if err := RequireID("followerId", followerID); err != nil {
		return false, err
	}
	if err := RequireID("followingId", followingID); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.follows[followKey{followerID: followerID, followingID: followingID}]
	return ok, nil
}

// GetFollowers returns the users following userID, most recent follow first.
func (m *Memory) GetFollowers(_ context.Context, userID string) ([]User, error) {
	if err := RequireID("userId", userID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	follows := newestFirst(values(m.follows, func(f Follow) bool { return f.FollowingID == userID }))
	return m.followUsers(follows, func(f Follow) string { return f.FollowerID }), nil
}

// GetFollowing returns the users userID follows, most recent follow first.
func (m *Memory) GetFollowing(_ context.Context, userID string) ([]User, error) {
	if err := RequireID("userId", userID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	follows := newestFirst(values(m.follows, func(f Follow) bool { return f.FollowerID == userID }))
	return m.followUsers(follows, func(f Follow) string { return f.FollowingID }), nil
}

func (m *Memory) followUsers(follows []*entry[Follow], pick func(Follow) string) []User {
	out := make([]User, 0, len(follows))
	for _, f := range follows {
		if u, ok := m.users[pick(f.val)]; ok {
			out = append(out, m.userView(u.val))
		}
	}
	return out
}

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T) (*Memory, User, LoveTree) {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()

	u, err := m.CreateUser(ctx, NewUser{Username: "mina", DisplayName: "Mina"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	tree, err := m.CreateLoveTree(ctx, NewLoveTree{UserID: u.ID, Title: "My journey", IdolName: "Jimin", IsPublic: true})
	if err != nil {
		t.Fatalf("CreateLoveTree() error = %v", err)
	}
	return m, u, tree
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m, u, _ := newFixture(t)

	got, err := m.GetUserByUsername(ctx, "MINA")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetUserByUsername() id = %s, want %s", got.ID, u.ID)
	}

	if _, err := m.CreateUser(ctx, NewUser{Username: "Mina", DisplayName: "Other"}); !lterrors.IsConflict(err) {
		t.Errorf("CreateUser() duplicate error = %v, want Conflict", err)
	}

	updated, err := m.UpdateUser(ctx, u.ID, UserPatch{Bio: ptr("hello")})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Bio != "hello" || updated.DisplayName != "Mina" {
		t.Errorf("UpdateUser() = %+v, want bio set and display name kept", updated)
	}

	if _, err := m.GetUser(ctx, "missing"); !lterrors.IsNotFound(err) {
		t.Errorf("GetUser() error = %v, want NotFound", err)
	}
	if _, err := m.GetUser(ctx, ""); !lterrors.IsInvalidInput(err) {
		t.Errorf("GetUser(\"\") error = %v, want InvalidInput", err)
	}
}

func TestMemoryCreateUserValidation(t *testing.T) {
	m := NewMemory()
	_, err := m.CreateUser(context.Background(), NewUser{Username: "ab", DisplayName: "x"})

	var iie *lterrors.InvalidInputError
	if !lterrors.As(err, &iie) {
		t.Fatalf("CreateUser() error = %v, want InvalidInput", err)
	}
	if iie.Field() != "username" {
		t.Errorf("Field() = %q, want json field name username", iie.Field())
	}
}

func TestMemoryUpsertUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.UpsertUser(ctx, UserUpsert{ID: "ext-1", Username: "yuna", DisplayName: "Yuna"})
	if err != nil {
		t.Fatalf("UpsertUser() create error = %v", err)
	}
	if created.ID != "ext-1" {
		t.Errorf("UpsertUser() id = %s, want ext-1", created.ID)
	}

	renamed, err := m.UpsertUser(ctx, UserUpsert{ID: "ext-1", Username: "yuna2", DisplayName: "Yuna"})
	if err != nil {
		t.Fatalf("UpsertUser() update error = %v", err)
	}
	if !renamed.CreatedAt.Equal(created.CreatedAt) {
		t.Error("UpsertUser() changed CreatedAt on update")
	}
	if _, err := m.GetUserByUsername(ctx, "yuna"); !lterrors.IsNotFound(err) {
		t.Errorf("old username still resolves, error = %v", err)
	}
	if _, err := m.UpsertUser(ctx, UserUpsert{ID: "ext-2", Username: "yuna2", DisplayName: "X"}); !lterrors.IsConflict(err) {
		t.Errorf("UpsertUser() taken username error = %v, want Conflict", err)
	}
}

func TestMemoryTreeAggregates(t *testing.T) {
	ctx := context.Background()
	m, u, tree := newFixture(t)

	if _, err := m.CreateLoveTreeItem(ctx, NewLoveTreeItem{TreeID: tree.ID, StageID: 1, Title: "MV", ContentURL: "https://example.com/mv"}); err != nil {
		t.Fatalf("CreateLoveTreeItem() error = %v", err)
	}
	if _, err := m.CreateComment(ctx, NewComment{TreeID: tree.ID, UserID: u.ID, Body: "so cute"}); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	liked, err := m.ToggleLike(ctx, u.ID, tree.ID)
	if err != nil || !liked {
		t.Fatalf("ToggleLike() = %v, %v, want true", liked, err)
	}

	got, err := m.GetLoveTree(ctx, tree.ID)
	if err != nil {
		t.Fatalf("GetLoveTree() error = %v", err)
	}
	if got.ItemCount != 1 || got.CommentCount != 1 || got.LikeCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", got.ItemCount, got.CommentCount, got.LikeCount)
	}

	liked, _ = m.ToggleLike(ctx, u.ID, tree.ID)
	if liked {
		t.Error("second ToggleLike() = true, want false")
	}
	if has, _ := m.HasLiked(ctx, u.ID, tree.ID); has {
		t.Error("HasLiked() = true after unlike")
	}
}

func TestMemoryItemValidation(t *testing.T) {
	ctx := context.Background()
	m, _, tree := newFixture(t)

	tests := []struct {
		name  string
		in    NewLoveTreeItem
		check func(error) bool
	}{
		{"unknown stage", NewLoveTreeItem{TreeID: tree.ID, StageID: 99, Title: "x", ContentURL: "https://a.b"}, lterrors.IsInvalidInput},
		{"bad url", NewLoveTreeItem{TreeID: tree.ID, StageID: 1, Title: "x", ContentURL: "nope"}, lterrors.IsInvalidInput},
		{"missing tree", NewLoveTreeItem{TreeID: "gone", StageID: 1, Title: "x", ContentURL: "https://a.b"}, lterrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.CreateLoveTreeItem(ctx, tt.in); !tt.check(err) {
				t.Errorf("CreateLoveTreeItem() error = %v", err)
			}
		})
	}
}

func TestMemoryItemsOrderedByStage(t *testing.T) {
	ctx := context.Background()
	m, _, tree := newFixture(t)

	for _, stage := range []int{3, 1, 2} {
		if _, err := m.CreateLoveTreeItem(ctx, NewLoveTreeItem{TreeID: tree.ID, StageID: stage, Title: "x", ContentURL: "https://a.b"}); err != nil {
			t.Fatalf("CreateLoveTreeItem() error = %v", err)
		}
	}
	items, _ := m.GetLoveTreeItems(ctx, tree.ID)
	for i, want := range []int{1, 2, 3} {
		if items[i].StageID != want {
			t.Errorf("items[%d].StageID = %d, want %d", i, items[i].StageID, want)
		}
	}

	moved, err := m.UpdateLoveTreeItem(ctx, items[0].ID, LoveTreeItemPatch{StageID: ptr(5), PositionX: ptr(12.5)})
	if err != nil {
		t.Fatalf("UpdateLoveTreeItem() error = %v", err)
	}
	if moved.StageID != 5 || moved.PositionX != 12.5 {
		t.Errorf("UpdateLoveTreeItem() = %+v", moved)
	}
}

func TestMemoryDeleteLoveTreeCascades(t *testing.T) {
	ctx := context.Background()
	m, u, tree := newFixture(t)

	item, _ := m.CreateLoveTreeItem(ctx, NewLoveTreeItem{TreeID: tree.ID, StageID: 1, Title: "x", ContentURL: "https://a.b"})
	_, _ = m.CreateComment(ctx, NewComment{TreeID: tree.ID, UserID: u.ID, Body: "hi"})
	_, _ = m.ToggleLike(ctx, u.ID, tree.ID)
	_, _ = m.CreateRecommendation(ctx, NewRecommendation{TreeID: tree.ID, FromUserID: u.ID, Title: "x", ContentURL: "https://a.b"})

	deleted, err := m.DeleteLoveTree(ctx, tree.ID)
	if err != nil {
		t.Fatalf("DeleteLoveTree() error = %v", err)
	}
	if deleted.ID != tree.ID || deleted.UserID != u.ID || deleted.ItemCount != 1 {
		t.Errorf("DeleteLoveTree() = %+v, want the deleted record with its counts", deleted)
	}

	if _, err := m.GetLoveTreeItem(ctx, item.ID); !lterrors.IsNotFound(err) {
		t.Errorf("item survived tree delete, error = %v", err)
	}
	comments, _ := m.GetComments(ctx, tree.ID)
	recs, _ := m.GetRecommendations(ctx, tree.ID)
	liked, _ := m.HasLiked(ctx, u.ID, tree.ID)
	if len(comments) != 0 || len(recs) != 0 || liked {
		t.Errorf("children survived: comments=%d recs=%d liked=%v", len(comments), len(recs), liked)
	}
	if _, err := m.DeleteLoveTree(ctx, tree.ID); !lterrors.IsNotFound(err) {
		t.Errorf("second DeleteLoveTree() error = %v, want NotFound", err)
	}
}

func TestMemoryPopularAndSearch(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m := NewMemory(WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	a, _ := m.CreateUser(ctx, NewUser{Username: "alpha", DisplayName: "A"})
	b, _ := m.CreateUser(ctx, NewUser{Username: "bravo", DisplayName: "B"})

	quiet, _ := m.CreateLoveTree(ctx, NewLoveTree{UserID: a.ID, Title: "Quiet", IdolName: "Taeyeon", IsPublic: true})
	loved, _ := m.CreateLoveTree(ctx, NewLoveTree{UserID: a.ID, Title: "Loved", IdolName: "Jimin", IsPublic: true})
	_, _ = m.CreateLoveTree(ctx, NewLoveTree{UserID: a.ID, Title: "Secret Jimin", IdolName: "Jimin"})
	_, _ = m.ToggleLike(ctx, a.ID, loved.ID)
	_, _ = m.ToggleLike(ctx, b.ID, loved.ID)

	popular, _ := m.GetPopularLoveTrees(ctx, 10)
	if len(popular) != 2 {
		t.Fatalf("GetPopularLoveTrees() len = %d, want 2 public trees", len(popular))
	}
	if popular[0].ID != loved.ID || popular[1].ID != quiet.ID {
		t.Errorf("GetPopularLoveTrees() order = %s, %s", popular[0].Title, popular[1].Title)
	}

	limited, _ := m.GetPopularLoveTrees(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("GetPopularLoveTrees(1) len = %d", len(limited))
	}

	found, _ := m.SearchLoveTrees(ctx, "  JIMIN ", 10)
	if len(found) != 1 || found[0].ID != loved.ID {
		t.Errorf("SearchLoveTrees() = %+v, want only the public Jimin tree", found)
	}
	if _, err := m.SearchLoveTrees(ctx, " ", 10); !lterrors.IsInvalidInput(err) {
		t.Errorf("SearchLoveTrees(blank) error = %v, want InvalidInput", err)
	}

	mine, _ := m.GetUserLoveTrees(ctx, a.ID)
	if len(mine) != 3 || mine[0].Title != "Secret Jimin" {
		t.Errorf("GetUserLoveTrees() = %d trees, first %q; want 3 newest first", len(mine), mine[0].Title)
	}
}

func TestMemoryNotifications(t *testing.T) {
	ctx := context.Background()
	m, u, _ := newFixture(t)

	for i := 0; i < 5; i++ {
		if _, err := m.CreateNotification(ctx, NewNotification{UserID: u.ID, Kind: NotificationLike, Message: "liked"}); err != nil {
			t.Fatalf("CreateNotification() error = %v", err)
		}
	}
	if _, err := m.CreateNotification(ctx, NewNotification{UserID: u.ID, Kind: "poke", Message: "x"}); !lterrors.IsInvalidInput(err) {
		t.Errorf("CreateNotification() unknown kind error = %v", err)
	}

	page, _ := m.GetNotifications(ctx, u.ID, Page{Limit: 2, Offset: 4})
	if len(page) != 1 {
		t.Errorf("last page len = %d, want 1", len(page))
	}
	empty, _ := m.GetNotifications(ctx, u.ID, Page{Limit: 2, Offset: 10})
	if empty == nil || len(empty) != 0 {
		t.Errorf("past-the-end page = %v, want empty non-nil", empty)
	}

	first, _ := m.GetNotifications(ctx, u.ID, Page{})
	if _, err := m.MarkNotificationRead(ctx, u.ID, first[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	if _, err := m.MarkNotificationRead(ctx, "someone-else", first[1].ID); !lterrors.IsNotFound(err) {
		t.Errorf("MarkNotificationRead() foreign error = %v, want NotFound", err)
	}
	unread, _ := m.GetUnreadNotificationCount(ctx, u.ID)
	if unread != 4 {
		t.Errorf("GetUnreadNotificationCount() = %d, want 4", unread)
	}
}

func TestMemoryFollows(t *testing.T) {
	ctx := context.Background()
	m, a, _ := newFixture(t)
	b, _ := m.CreateUser(ctx, NewUser{Username: "bora", DisplayName: "Bora"})

	if _, err := m.ToggleFollow(ctx, a.ID, a.ID); !lterrors.IsInvalidInput(err) {
		t.Errorf("self follow error = %v, want InvalidInput", err)
	}

	following, err := m.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil || !following {
		t.Fatalf("ToggleFollow() = %v, %v", following, err)
	}
	if ok, _ := m.IsFollowing(ctx, a.ID, b.ID); !ok {
		t.Error("IsFollowing() = false after follow")
	}

	followers, _ := m.GetFollowers(ctx, b.ID)
	if len(followers) != 1 || followers[0].ID != a.ID || followers[0].FollowingCount != 1 {
		t.Errorf("GetFollowers() = %+v", followers)
	}
	gotB, _ := m.GetUser(ctx, b.ID)
	if gotB.FollowerCount != 1 {
		t.Errorf("FollowerCount = %d, want 1", gotB.FollowerCount)
	}

	following, _ = m.ToggleFollow(ctx, a.ID, b.ID)
	if following {
		t.Error("second ToggleFollow() = true, want false")
	}
	list, _ := m.GetFollowing(ctx, a.ID)
	if len(list) != 0 {
		t.Errorf("GetFollowing() len = %d after unfollow", len(list))
	}
}

func TestMemoryConcurrentLikes(t *testing.T) {
	ctx := context.Background()
	m, _, tree := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := m.UpsertUser(ctx, UserUpsert{ID: "u" + string(rune('a'+i%26)) + string(rune('a'+i/26)), Username: "fan" + string(rune('a'+i%26)) + string(rune('a'+i/26)), DisplayName: "Fan"})
			if err != nil {
				t.Errorf("UpsertUser() error = %v", err)
				return
			}
			_, _ = m.ToggleLike(ctx, u.ID, tree.ID)
		}(i)
	}
	wg.Wait()

	got, _ := m.GetLoveTree(ctx, tree.ID)
	if got.LikeCount != 50 {
		t.Errorf("LikeCount = %d, want 50", got.LikeCount)
	}
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		in, want Page
	}{
		{Page{}, Page{Limit: DefaultPageLimit}},
		{Page{Limit: 500, Offset: -3}, Page{Limit: MaxPageLimit}},
		{Page{Limit: 7, Offset: 14}, Page{Limit: 7, Offset: 14}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestGetStagesReturnsCopy(t *testing.T) {
	m := NewMemory()
	stages, _ := m.GetStages(context.Background())
	stages[0].Name = "mutated"

	again, _ := m.GetStages(context.Background())
	if again[0].Name != DefaultStages[0].Name {
		t.Error("GetStages() exposed internal state")
	}
}

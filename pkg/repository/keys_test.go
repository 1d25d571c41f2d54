package repository

import (
	"path"
	"testing"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/store"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{UserKey("u1"), "user:u1"},
		{UsernameKey("Minji"), "username:minji"},
		{TreeKey("t1"), "tree:t1"},
		{UserTreesKey("u1"), "user-trees:u1"},
		{PopularTreesKey(10), "popular-trees:10"},
		{PopularTreesKey(0), "popular-trees:20"},
		{PopularTreesKey(1000), "popular-trees:100"},
		{PopularTreesPattern(), "popular-trees:*"},
		{ItemKey("i1"), "item:i1"},
		{ItemsKey("t1"), "items:t1"},
		{StagesKey(), "stages:all"},
		{CommentsKey("t1"), "comments:t1"},
		{LikeKey("t1", "u1"), "like:t1:u1"},
		{LikePattern("t1"), "like:t1:*"},
		{LikePattern("t*1"), `like:t\*1:*`},
		{RecommendationsKey("t1"), "recommendations:t1"},
		{NotificationsKey("u1", store.Page{}), "notifications:u1:20:0"},
		{NotificationsKey("u1", store.Page{Limit: 5, Offset: -3}), "notifications:u1:5:0"},
		{NotificationsPattern("u1"), "notifications:u1:*"},
		{UnreadCountKey("u1"), "notifications-unread:u1"},
		{FollowKey("a", "b"), "follow:a:b"},
		{FollowersKey("b"), "followers:b"},
		{FollowingKey("a"), "following:a"},
		{SearchKey("  Jimin   Park ", 0), "search:jimin park:20"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestPatternsMatchOnlyTheirKeys(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		match   bool
	}{
		{PopularTreesPattern(), PopularTreesKey(5), true},
		{PopularTreesPattern(), TreeKey("popular"), false},
		{LikePattern("t1"), LikeKey("t1", "u9"), true},
		{LikePattern("t1"), LikeKey("t10", "u9"), false},
		{LikePattern("t?"), LikeKey("t1", "u9"), false},
		{NotificationsPattern("u1"), NotificationsKey("u1", store.Page{Limit: 50, Offset: 100}), true},
		{NotificationsPattern("u1"), UnreadCountKey("u1"), false},
	}
	for _, tt := range tests {
		ok, err := path.Match(tt.pattern, tt.key)
		if err != nil {
			t.Fatalf("path.Match(%q) error = %v", tt.pattern, err)
		}
		if ok != tt.match {
			t.Errorf("%q matches %q = %v, want %v", tt.pattern, tt.key, ok, tt.match)
		}
	}
}

func TestTierDurations(t *testing.T) {
	tests := []struct {
		tier Tier
		want time.Duration
		name string
	}{
		{TierShort, 5 * time.Minute, "short"},
		{TierMedium, 30 * time.Minute, "medium"},
		{TierLong, time.Hour, "long"},
		{TierVeryLong, 24 * time.Hour, "very_long"},
		{Tier(-1), 30 * time.Minute, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.tier.Duration(); got != tt.want {
			t.Errorf("%v.Duration() = %v, want %v", tt.tier, got, tt.want)
		}
		if got := tt.tier.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

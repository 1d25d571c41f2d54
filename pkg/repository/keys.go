package repository

import (
	"strconv"
	"strings"

	"github.com/Combine-Capital/lovetree/pkg/cache"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

// Key namespaces. Every cached read lives under exactly one of them.
const (
	nsUser            = "user"
	nsUsername        = "username"
	nsTree            = "tree"
	nsUserTrees       = "user-trees"
	nsPopularTrees    = "popular-trees"
	nsItem            = "item"
	nsItems           = "items"
	nsStages          = "stages"
	nsComments        = "comments"
	nsLike            = "like"
	nsRecommendations = "recommendations"
	nsNotifications   = "notifications"
	nsUnread          = "notifications-unread"
	nsFollow          = "follow"
	nsFollowers       = "followers"
	nsFollowing       = "following"
	nsSearch          = "search"
)

// UserKey is user:{id}.
func UserKey(id string) string { return cache.Key(nsUser, id) }

// UsernameKey folds case, matching the store's case-insensitive lookup.
func UsernameKey(username string) string {
	return cache.Key(nsUsername, strings.ToLower(username))
}

// TreeKey is tree:{id}.
func TreeKey(id string) string { return cache.Key(nsTree, id) }

// UserTreesKey is user-trees:{userID}, the trees a user owns.
func UserTreesKey(userID string) string { return cache.Key(nsUserTrees, userID) }

// PopularTreesKey keys the popular list by its effective limit.
func PopularTreesKey(limit int) string {
	return cache.Key(nsPopularTrees, strconv.Itoa(store.NormalizeLimit(limit)))
}

// PopularTreesPattern matches every cached popular list regardless of limit.
func PopularTreesPattern() string { return cache.Pattern(nsPopularTrees) }

// ItemKey is item:{id}.
func ItemKey(id string) string { return cache.Key(nsItem, id) }

// ItemsKey is items:{treeID}, the items placed on a tree.
func ItemsKey(treeID string) string { return cache.Key(nsItems, treeID) }

// StagesKey holds the whole stage list.
func StagesKey() string { return cache.Key(nsStages, "all") }

// CommentsKey is comments:{treeID}.
func CommentsKey(treeID string) string { return cache.Key(nsComments, treeID) }

// LikeKey is like:{treeID}:{userID}, whether the user liked the tree.
func LikeKey(treeID, userID string) string { return cache.Key(nsLike, treeID, userID) }

// LikePattern matches every like flag of one tree.
func LikePattern(treeID string) string { return cache.Pattern(nsLike, escapeGlob(treeID)) }

// RecommendationsKey is recommendations:{treeID}.
func RecommendationsKey(treeID string) string { return cache.Key(nsRecommendations, treeID) }

// NotificationsKey keys one page of a user's notifications by its effective bounds.
func NotificationsKey(userID string, page store.Page) string {
	page = page.Normalize()
	return cache.Key(nsNotifications, userID, strconv.Itoa(page.Limit), strconv.Itoa(page.Offset))
}

// NotificationsPattern matches every cached page of a user's notifications.
func NotificationsPattern(userID string) string {
	return cache.Pattern(nsNotifications, escapeGlob(userID))
}

// UnreadCountKey is notifications-unread:{userID}.
func UnreadCountKey(userID string) string { return cache.Key(nsUnread, userID) }

// FollowKey is follow:{followerID}:{followingID}.
func FollowKey(followerID, followingID string) string {
	return cache.Key(nsFollow, followerID, followingID)
}

// FollowersKey lists the users following userID.
func FollowersKey(userID string) string { return cache.Key(nsFollowers, userID) }

// FollowingKey lists the users userID follows.
func FollowingKey(userID string) string { return cache.Key(nsFollowing, userID) }

// SearchKey normalizes the query so "  Jimin " and "jimin" share an entry.
func SearchKey(query string, limit int) string {
	return cache.Key(nsSearch, NormalizeQuery(query), strconv.Itoa(store.NormalizeLimit(limit)))
}

// NormalizeQuery lowercases q and collapses runs of whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob makes an identifier safe to embed in a DeleteByPattern pattern.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// Package store defines the persistent store contract of the lovetree domain and an
// in-process implementation of it.
//
// Implementations report failures with the lovetree error types: NotFound for a missing
// entity, InvalidInput for a bad argument, Conflict for a uniqueness violation and
// Temporary for transport failures. The cache-aside repository in pkg/repository
// implements the same interface, so callers cannot tell a cached store from a raw one.
package store

import "context"

// Store is the system of record.
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, in NewUser) (User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error)
	UpsertUser(ctx context.Context, in UserUpsert) (User, error)

	// Love trees
	GetLoveTree(ctx context.Context, id string) (LoveTree, error)
	GetUserLoveTrees(ctx context.Context, userID string) ([]LoveTree, error)
	GetPopularLoveTrees(ctx context.Context, limit int) ([]LoveTree, error)
	CreateLoveTree(ctx context.Context, in NewLoveTree) (LoveTree, error)
	UpdateLoveTree(ctx context.Context, id string, patch LoveTreePatch) (LoveTree, error)
	DeleteLoveTree(ctx context.Context, id string) (LoveTree, error)
	SearchLoveTrees(ctx context.Context, query string, limit int) ([]LoveTree, error)

	// Items
	GetLoveTreeItem(ctx context.Context, id string) (LoveTreeItem, error)
	GetLoveTreeItems(ctx context.Context, treeID string) ([]LoveTreeItem, error)
	CreateLoveTreeItem(ctx context.Context, in NewLoveTreeItem) (LoveTreeItem, error)
	UpdateLoveTreeItem(ctx context.Context, id string, patch LoveTreeItemPatch) (LoveTreeItem, error)
	DeleteLoveTreeItem(ctx context.Context, id string) (LoveTreeItem, error)

	GetStages(ctx context.Context) ([]Stage, error)

	// Comments
	GetComments(ctx context.Context, treeID string) ([]Comment, error)
	CreateComment(ctx context.Context, in NewComment) (Comment, error)
	DeleteComment(ctx context.Context, id string) (Comment, error)

	// Likes
	ToggleLike(ctx context.Context, userID, treeID string) (bool, error)
	HasLiked(ctx context.Context, userID, treeID string) (bool, error)

	// Recommendations
	GetRecommendations(ctx context.Context, treeID string) ([]Recommendation, error)
	CreateRecommendation(ctx context.Context, in NewRecommendation) (Recommendation, error)

	// Notifications
	GetNotifications(ctx context.Context, userID string, page Page) ([]Notification, error)
	GetUnreadNotificationCount(ctx context.Context, userID string) (int, error)
	CreateNotification(ctx context.Context, in NewNotification) (Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (Notification, error)

	// Follows
	ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	GetFollowers(ctx context.Context, userID string) ([]User, error)
	GetFollowing(ctx context.Context, userID string) ([]User, error)
}

// DefaultStages is the stage reference data every store starts with.
var DefaultStages = []Stage{
	{ID: 1, Name: "First Encounter", Description: "The moment it all began", Color: "#F9A8D4", Position: 1},
	{ID: 2, Name: "Curiosity", Description: "Digging into everything about them", Color: "#F472B6", Position: 2},
	{ID: 3, Name: "Falling", Description: "No way back now", Color: "#EC4899", Position: 3},
	{ID: 4, Name: "Devotion", Description: "A true fan", Color: "#DB2777", Position: 4},
	{ID: 5, Name: "Forever", Description: "Part of who you are", Color: "#9D174D", Position: 5},
}

package store

import "time"

// User is a fan profile. Follower counts are derived from follows.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	FollowerCount  int       `json:"followerCount"`
	FollowingCount int       `json:"followingCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Stage is one step of the falling-in-love journey. Stages are reference data.
type Stage struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Position    int    `json:"position"`
}

// LoveTree is a user's graph of content items about one idol. The counts are aggregates
// over items, likes and comments, which is why writes to those invalidate the tree.
type LoveTree struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	IdolName     string    `json:"idolName"`
	IsPublic     bool      `json:"isPublic"`
	ItemCount    int       `json:"itemCount"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LoveTreeItem is a piece of content placed on a tree at a stage.
type LoveTreeItem struct {
	ID           string    `json:"id"`
	TreeID       string    `json:"treeId"`
	StageID      int       `json:"stageId"`
	Title        string    `json:"title"`
	ContentURL   string    `json:"contentUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Note         string    `json:"note,omitempty"`
	PositionX    float64   `json:"positionX"`
	PositionY    float64   `json:"positionY"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	TreeID    string    `json:"treeId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Like struct {
	TreeID    string    `json:"treeId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recommendation is content another fan suggests adding to a tree.
type Recommendation struct {
	ID         string    `json:"id"`
	TreeID     string    `json:"treeId"`
	FromUserID string    `json:"fromUserId"`
	Title      string    `json:"title"`
	ContentURL string    `json:"contentUrl"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification kinds.
const (
	NotificationLike           = "like"
	NotificationComment        = "comment"
	NotificationFollow         = "follow"
	NotificationRecommendation = "recommendation"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actorId,omitempty"`
	TreeID    string    `json:"treeId,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Follow struct {
	FollowerID  string    `json:"followerId"`
	FollowingID string    `json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewUser creates a user with a generated ID.
type NewUser struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
	Bio         string `json:"bio" validate:"max=500"`
}

// UserUpsert creates or replaces a user with a known ID, as an identity provider would
// on sign-in.
type UserUpsert struct {
	ID          string `json:"id" validate:"required"`
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
}

// UserPatch changes profile fields. Usernames are immutable after creation.
type UserPatch struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=64"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
}

type NewLoveTree struct {
	UserID      string `json:"userId" validate:"required"`
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	IdolName    string `json:"idolName" validate:"required,max=120"`
	IsPublic    bool   `json:"isPublic"`
}

type LoveTreePatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IdolName    *string `json:"idolName" validate:"omitempty,min=1,max=120"`
	IsPublic    *bool   `json:"isPublic"`
}

type NewLoveTreeItem struct {
	TreeID       string  `json:"treeId" validate:"required"`
	StageID      int     `json:"stageId" validate:"required,min=1"`
	Title        string  `json:"title" validate:"required,max=200"`
	ContentURL   string  `json:"contentUrl" validate:"required,url"`
	ThumbnailURL string  `json:"thumbnailUrl" validate:"omitempty,url"`
	Note         string  `json:"note" validate:"max=2000"`
	PositionX    float64 `json:"positionX"`
	PositionY    float64 `json:"positionY"`
}

type LoveTreeItemPatch struct {
	StageID   *int     `json:"stageId" validate:"omitempty,min=1"`
	Title     *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Note      *string  `json:"note" validate:"omitempty,max=2000"`
	PositionX *float64 `json:"positionX"`
	PositionY *float64 `json:"positionY"`
}

type NewComment struct {
	TreeID string `json:"treeId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Body   string `json:"body" validate:"required,max=2000"`
}

type NewRecommendation struct {
	TreeID     string `json:"treeId" validate:"required"`
	FromUserID string `json:"fromUserId" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	ContentURL string `json:"contentUrl" validate:"required,url"`
	Note       string `json:"note" validate:"max=1000"`
}

type NewNotification struct {
	UserID  string `json:"userId" validate:"required"`
	Kind    string `json:"kind" validate:"required,oneof=like comment follow recommendation"`
	ActorID string `json:"actorId"`
	TreeID  string `json:"treeId"`
	Message string `json:"message" validate:"required,max=500"`
}

// Page selects a window of a list.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// NormalizeLimit clamps a bare limit the same way.
func NormalizeLimit(limit int) int {
	return Page{Limit: limit}.Normalize().Limit
}

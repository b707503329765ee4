package model

import (
	"errors"
	"time"
)

// PostStatus is stored on every post. Only PostStatusInProgress is ever assigned.
type PostStatus string

const (
	PostStatusInProgress PostStatus = "In Progress"
	PostStatusCompleted  PostStatus = "Completed"
	PostStatusOverdue    PostStatus = "Overdue"
)

// Post represents a user's post with its metadata.
type Post struct {
	ID          string     `db:"id" bson:"_id" json:"id"`
	UserID      string     `db:"user_id" bson:"user_id" json:"-"`
	Title       string     `db:"title" bson:"title" json:"title"`
	Description string     `db:"description" bson:"description" json:"description"`
	ImageURL    string     `db:"image_url" bson:"image_url" json:"image_url"`
	ImageKey    string     `db:"image_key" bson:"image_key" json:"-"`
	Status      PostStatus `db:"status" bson:"status" json:"status"`
	Likes       int        `db:"like_count" bson:"likes" json:"likes"`
	LikedBy     []string   `db:"-" bson:"liked_by" json:"-"`
	Comments    []string   `db:"-" bson:"comments" json:"comments"`
	CreatedAt   time.Time  `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" bson:"updated_at" json:"updated_at"`

	// Populated from users, never stored
	Owner *UserSummary `db:"-" bson:"-" json:"owner,omitempty"`
}

// CreatePostRequest carries the text fields of a new post; the media file travels separately.
type CreatePostRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// UpdatePostRequest is the allow-list of mutable post fields.
type UpdatePostRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1"`
	Description *string `json:"description" validate:"omitnil,min=1"`
}

// PostUpdate is what the store applies. Nil fields are left untouched.
type PostUpdate struct {
	Title       *string
	Description *string
	ImageURL    *string
	ImageKey    *string
}

// PostFilter narrows GET /posts.
type PostFilter struct {
	UserID string
	Page   Page
}

// PostEnvelope wraps a single post with a status message.
type PostEnvelope struct {
	Message string `json:"message"`
	Post    *Post  `json:"post"`
}

// PostListResponse is the paginated post list response.
type PostListResponse struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPosts int    `json:"totalPosts"`
	Posts      []Post `json:"posts"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

const (
	PostMediaFolder = "posts"
)

// Post errors
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrNotPostOwner   = errors.New("not the owner of this post")
	ErrNoFileAttached = errors.New("please attach a file")
)

// LikeToggleResponse is returned by POST /posts/{id}/toggleLike.
type LikeToggleResponse struct {
	Message string `json:"message"`
	LikeResult
}

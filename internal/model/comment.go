package model

import (
	"errors"
	"time"
)

// Comment represents a comment on a post.
type Comment struct {
	ID        string    `db:"id" bson:"_id" json:"id"`
	PostID    string    `db:"post_id" bson:"post_id" json:"post_id"`
	UserID    string    `db:"user_id" bson:"user_id" json:"-"`
	Content   string    `db:"content" bson:"comment" json:"comment"`
	Likes     int       `db:"like_count" bson:"likes" json:"likes"`
	LikedBy   []string  `db:"-" bson:"liked_by" json:"likedBy"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"created_at"`

	Author *UserSummary `db:"-" bson:"-" json:"user,omitempty"` // populated
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Comment string `json:"comment"`
}

// CommentEnvelope wraps a created comment.
type CommentEnvelope struct {
	Message string   `json:"message"`
	Comment *Comment `json:"comment"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Page          int       `json:"page"`
	Limit         int       `json:"limit"`
	TotalComments int       `json:"totalComments"`
	Comments      []Comment `json:"comments"`
}

// Comment constraints
const (
	MaxCommentLength = 2200
)

// Comment errors
var (
	ErrCommentRequired = errors.New("comment text is required")
	ErrCommentTooLong  = errors.New("comment text too long")
)

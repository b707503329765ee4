package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"postboard/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// commentRow mirrors the comments table; liked_by is a uuid[] column.
type commentRow struct {
	ID        string         `db:"id"`
	PostID    string         `db:"post_id"`
	UserID    string         `db:"user_id"`
	Content   string         `db:"content"`
	LikeCount int            `db:"like_count"`
	LikedBy   pq.StringArray `db:"liked_by"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row commentRow) toModel() model.Comment {
	likedBy := []string(row.LikedBy)
	if likedBy == nil {
		likedBy = []string{}
	}
	return model.Comment{
		ID:        row.ID,
		PostID:    row.PostID,
		UserID:    row.UserID,
		Content:   row.Content,
		Likes:     row.LikeCount,
		LikedBy:   likedBy,
		CreatedAt: row.CreatedAt,
	}
}

// Create inserts a comment while holding a share lock on its post, so the post
// cannot be deleted between the existence check and the insert.
func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	if !validID(c.PostID) {
		return model.ErrPostNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var postID string
	err = tx.GetContext(ctx, &postID, `SELECT id FROM posts WHERE id = $1 FOR SHARE`, c.PostID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("lock post: %w", err)
	}

	var row commentRow
	err = tx.GetContext(ctx, &row, `
		INSERT INTO comments (id, post_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, post_id, user_id, content, like_count, liked_by, created_at
	`, c.ID, c.PostID, c.UserID, c.Content)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE posts SET updated_at = NOW() WHERE id = $1`, c.PostID)
	if err != nil {
		return fmt.Errorf("touch post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	author := c.Author
	*c = row.toModel()
	c.Author = author
	return nil
}

// ListByPost returns a page of comments for a post, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error) {
	if !validID(postID) {
		return []model.Comment{}, 0, nil
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, post_id, user_id, content, like_count, liked_by, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, postID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.toModel())
	}
	return comments, total, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"postboard/internal/model"
)

const postColumns = `id, user_id, title, description, image_url, image_key, status, like_count, created_at, updated_at`

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a new post.
func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (id, user_id, title, description, image_url, image_key, status, like_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
		RETURNING like_count, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.UserID, p.Title, p.Description, p.ImageURL, p.ImageKey, p.Status,
	).Scan(&p.Likes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.Comments = []string{}
	return nil
}

// GetByID retrieves a single post with its comment ids.
func (r *postRepository) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	if !validID(postID) {
		return nil, model.ErrPostNotFound
	}

	var post model.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post.Comments = []string{}
	err = r.db.SelectContext(ctx, &post.Comments,
		`SELECT id FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, fmt.Errorf("get post comments: %w", err)
	}

	return &post, nil
}

// Update applies the allowed fields in one statement guarded by ownership.
func (r *postRepository) Update(ctx context.Context, postID, ownerID string, upd model.PostUpdate) (*model.Post, error) {
	if !validID(postID) {
		return nil, model.ErrPostNotFound
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}
	if upd.ImageKey != nil {
		add("image_key", *upd.ImageKey)
	}
	args = append(args, postID, ownerID)

	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d AND user_id = $%d RETURNING id`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	var id string
	err := r.db.GetContext(ctx, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrForeign(ctx, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	return r.GetByID(ctx, postID)
}

// Delete removes a post. Likes and comments go with it through ON DELETE CASCADE.
func (r *postRepository) Delete(ctx context.Context, postID, ownerID string) error {
	if !validID(postID) {
		return model.ErrPostNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, postID, ownerID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return r.missingOrForeign(ctx, postID)
	}
	return nil
}

// missingOrForeign tells apart a missing post from one owned by someone else.
func (r *postRepository) missingOrForeign(ctx context.Context, postID string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID); err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if exists {
		return model.ErrNotPostOwner
	}
	return model.ErrPostNotFound
}

// List returns a page of posts, newest first, optionally for one owner.
func (r *postRepository) List(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error) {
	where := ""
	args := []interface{}{}
	if filter.UserID != "" {
		if !validID(filter.UserID) {
			return []model.Post{}, 0, nil
		}
		args = append(args, filter.UserID)
		where = "WHERE user_id = $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	args = append(args, filter.Page.Limit, filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM posts %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		postColumns, where, len(args)-1, len(args))

	posts := []model.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	if err := r.loadCommentIDs(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// loadCommentIDs fills Comments for a page of posts with one query.
func (r *postRepository) loadCommentIDs(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].Comments = []string{}
	}

	var rows []struct {
		ID     string `db:"id"`
		PostID string `db:"post_id"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, post_id FROM comments WHERE post_id = ANY($1::uuid[]) ORDER BY created_at, id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list post comments: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.PostID]; ok {
			posts[i].Comments = append(posts[i].Comments, row.ID)
		}
	}
	return nil
}

// ToggleLike flips the caller's like inside a transaction. The post row is locked
// and like_count is recomputed from post_likes, so the counter always equals the
// size of the likers set.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	if !validID(postID) {
		return model.LikeResult{}, model.ErrPostNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.GetContext(ctx, &id, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LikeResult{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("lock post: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("delete like: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("get rows affected: %w", err)
	}

	liked := false
	if rows == 0 {
		_, err = tx.ExecContext(ctx, `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)`, postID, userID)
		if err != nil {
			return model.LikeResult{}, fmt.Errorf("insert like: %w", err)
		}
		liked = true
	}

	var likes int
	err = tx.GetContext(ctx, &likes, `
		UPDATE posts SET like_count = (SELECT COUNT(*) FROM post_likes WHERE post_id = $1)
		WHERE id = $1
		RETURNING like_count
	`, postID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("update like count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.LikeResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return model.LikeResult{Liked: liked, Likes: likes}, nil
}

func (r *postRepository) CountLikedBy(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM post_likes WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("count likes given: %w", err)
	}
	return count, nil
}

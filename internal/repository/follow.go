package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"postboard/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Toggle removes the edge if present, otherwise inserts it, inside one transaction.
// One row backs both the follower's following set and the followee's followers set,
// so the two sides cannot drift apart.
func (r *followRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, model.ErrCannotFollowSelf
	}
	if !validID(followerID) || !validID(followeeID) {
		return false, model.ErrUserNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock both users in a stable order so concurrent toggles on the pair serialise.
	var locked []string
	err = tx.SelectContext(ctx, &locked, `
		SELECT id FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE
	`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("lock users: %w", err)
	}
	if len(locked) != 2 {
		return false, model.ErrUserNotFound
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	following := false
	if rows == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO follows (follower_id, followee_id, created_at)
			VALUES ($1, $2, NOW())
		`, followerID, followeeID)
		if err != nil {
			return false, fmt.Errorf("failed to create follow: %w", err)
		}
		following = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return following, nil
}

// GetFollowers lists users following userID, latest first.
func (r *followRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(ctx, `
		SELECT u.id, u.username, u.email, u.profile_picture
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC
	`, userID)
}

// GetFollowing lists users that userID follows, latest first.
func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(ctx, `
		SELECT u.id, u.username, u.email, u.profile_picture
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
	`, userID)
}

func (r *followRepository) list(ctx context.Context, query, userID string) ([]model.UserSummary, error) {
	if !validID(userID) {
		return []model.UserSummary{}, nil
	}
	users := []model.UserSummary{}
	err := r.db.SelectContext(ctx, &users, query, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	return users, nil
}

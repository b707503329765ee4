package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"postboard/internal/model"
)

const userColumns = `id, username, email, password_hashed, profile_picture, profile_picture_key,
	profile_views, reset_password_token, reset_password_expiry, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hashed, profile_picture, profile_picture_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING profile_views, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHashed,
		u.ProfilePicture,
		u.ProfilePictureKey,
	).Scan(&u.ProfileViews, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, model.ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by their email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ExistsByUsernameOrEmail checks both unique keys in one round trip.
func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username, email); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Update applies the whitelisted fields as a single statement.
func (r *userRepository) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if !validID(id) {
		return nil, model.ErrUserNotFound
	}
	if upd.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.ProfilePicture != nil {
		add("profile_picture", *upd.ProfilePicture)
	}
	if upd.ProfilePictureKey != nil {
		add("profile_picture_key", *upd.ProfilePictureKey)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var u model.User
	err := r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, model.ErrUserExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &u, nil
}

// Delete removes the user row. Follow edges cascade; posts and comments stay.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) IncrementProfileViews(ctx context.Context, id string) (int, error) {
	if !validID(id) {
		return 0, model.ErrUserNotFound
	}
	var views int
	err := r.db.GetContext(ctx, &views,
		`UPDATE users SET profile_views = profile_views + 1 WHERE id = $1 RETURNING profile_views`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to increment profile views: %w", err)
	}
	return views, nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_password_token = $1, reset_password_expiry = $2, updated_at = NOW()
		WHERE id = $3
	`, tokenHash, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users
		WHERE reset_password_token = $1 AND reset_password_expiry > $2`, tokenHash, now)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHashed string) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hashed = $1, reset_password_token = NULL, reset_password_expiry = NULL, updated_at = NOW()
		WHERE id = $2
	`, passwordHashed, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// GetSummaries batch-loads public fields with ANY($1) to avoid one query per reference.
func (r *userRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	ids = validIDs(ids)
	result := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []model.UserSummary
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, username, email, profile_picture FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

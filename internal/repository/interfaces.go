package repository

import (
	"context"
	"time"

	"postboard/internal/model"
)

type UserRepository interface {
	// Create inserts a user. Returns model.ErrUserExists when username or email is taken.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// Update applies the non-nil fields and returns the stored user.
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id string) error
	// IncrementProfileViews bumps the view counter and returns the new value.
	IncrementProfileViews(ctx context.Context, id string) (int, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// GetByResetToken finds the user holding tokenHash whose expiry is after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	// UpdatePassword stores a new hash and clears the reset token.
	UpdatePassword(ctx context.Context, id, passwordHashed string) error
	// GetSummaries populates user references. Unknown ids are absent from the map.
	GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error)
}

type FollowRepository interface {
	// Toggle flips the follow edge and reports whether followerID now follows followeeID.
	Toggle(ctx context.Context, followerID, followeeID string) (bool, error)
	GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error)
	GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	// GetByID returns the post with its comment ids in creation order.
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// Update applies upd only when ownerID owns the post.
	Update(ctx context.Context, id, ownerID string, upd model.PostUpdate) (*model.Post, error)
	// Delete removes the post and its comments only when ownerID owns it.
	Delete(ctx context.Context, id, ownerID string) error
	// List returns one page of posts, newest first, and the total matching count.
	List(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error)
	// ToggleLike flips userID's membership in the likers set and returns the new state.
	ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error)
	// CountLikedBy counts posts whose likers set contains userID.
	CountLikedBy(ctx context.Context, userID string) (int, error)
}

type CommentRepository interface {
	// Create stores the comment and appends it to its post.
	// Returns model.ErrPostNotFound when the post does not exist.
	Create(ctx context.Context, comment *model.Comment) error
	// ListByPost returns one page of comments, oldest first, and the total count.
	ListByPost(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users    UserRepository
	Follows  FollowRepository
	Posts    PostRepository
	Comments CommentRepository

	close func() error
}

// NewStore assembles a Store. closeFn releases the backend and may be nil.
func NewStore(users UserRepository, follows FollowRepository, posts PostRepository, comments CommentRepository, closeFn func() error) *Store {
	return &Store{
		Users:    users,
		Follows:  follows,
		Posts:    posts,
		Comments: comments,
		close:    closeFn,
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

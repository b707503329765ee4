// Package memstore keeps every repository in process memory behind one mutex.
// It backs STORE_DRIVER=memory for local runs and the HTTP tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"postboard/internal/model"
	"postboard/internal/repository"
)

type db struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	posts    map[string]*model.Post
	comments map[string]*model.Comment
	now      func() time.Time
}

// New returns a Store whose repositories share one in-memory dataset.
func New() *repository.Store {
	d := &db{
		users:    make(map[string]*model.User),
		posts:    make(map[string]*model.Post),
		comments: make(map[string]*model.Comment),
		now:      func() time.Time { return time.Now().UTC() },
	}
	return repository.NewStore(
		&userRepository{d},
		&followRepository{d},
		&postRepository{d},
		&commentRepository{d},
		nil,
	)
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	if u.ResetPasswordToken != nil {
		t := *u.ResetPasswordToken
		c.ResetPasswordToken = &t
	}
	if u.ResetPasswordExpiry != nil {
		t := *u.ResetPasswordExpiry
		c.ResetPasswordExpiry = &t
	}
	return &c
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.LikedBy = slices.Clone(p.LikedBy)
	c.Comments = slices.Clone(p.Comments)
	if c.Comments == nil {
		c.Comments = []string{}
	}
	c.Owner = nil
	return &c
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

// ---------------------------------------------------------------------------
// users

type userRepository struct{ *db }

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return model.ErrUserExists
		}
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepository) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	for otherID, other := range r.users {
		if otherID == id {
			continue
		}
		if (upd.Username != nil && other.Username == *upd.Username) ||
			(upd.Email != nil && other.Email == *upd.Email) {
			return nil, model.ErrUserExists
		}
	}

	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = *upd.ProfilePicture
	}
	if upd.ProfilePictureKey != nil {
		u.ProfilePictureKey = *upd.ProfilePictureKey
	}
	if !upd.IsEmpty() {
		u.UpdatedAt = r.now()
	}
	return cloneUser(u), nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.users, id)
	for _, u := range r.users {
		u.Followers = remove(u.Followers, id)
		u.Following = remove(u.Following, id)
	}
	return nil
}

func (r *userRepository) IncrementProfileViews(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	u.ProfileViews++
	return u.ProfileViews, nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ResetPasswordToken = &tokenHash
	u.ResetPasswordExpiry = &expiresAt
	u.UpdatedAt = r.now()
	return nil
}

func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpiry != nil && u.ResetPasswordExpiry.After(now) {
			return cloneUser(u), nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHashed string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHashed = passwordHashed
	u.ResetPasswordToken = nil
	u.ResetPasswordExpiry = nil
	u.UpdatedAt = r.now()
	return nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summaries(ids), nil
}

// summaries must be called with mu held.
func (d *db) summaries(ids []string) map[string]model.UserSummary {
	out := make(map[string]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// follows

type followRepository struct{ *db }

func (r *followRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, model.ErrCannotFollowSelf
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	follower, ok := r.users[followerID]
	if !ok {
		return false, model.ErrUserNotFound
	}
	followee, ok := r.users[followeeID]
	if !ok {
		return false, model.ErrUserNotFound
	}

	if slices.Contains(follower.Following, followeeID) {
		follower.Following = remove(follower.Following, followeeID)
		followee.Followers = remove(followee.Followers, followerID)
		return false, nil
	}
	follower.Following = append(follower.Following, followeeID)
	followee.Followers = append(followee.Followers, followerID)
	return true, nil
}

func (r *followRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(userID, func(u *model.User) []string { return u.Followers })
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(userID, func(u *model.User) []string { return u.Following })
}

func (r *followRepository) list(userID string, field func(*model.User) []string) ([]model.UserSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.UserSummary{}
	u, ok := r.users[userID]
	if !ok {
		return out, nil
	}
	ids := field(u)
	byID := r.summaries(ids)
	for i := len(ids) - 1; i >= 0; i-- {
		if s, ok := byID[ids[i]]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// posts

type postRepository struct{ *db }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Likes = 0
	p.LikedBy = []string{}
	p.Comments = []string{}
	r.posts[p.ID] = clonePost(p)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *postRepository) Update(ctx context.Context, id, ownerID string, upd model.PostUpdate) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	if p.UserID != ownerID {
		return nil, model.ErrNotPostOwner
	}

	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.ImageURL != nil {
		p.ImageURL = *upd.ImageURL
	}
	if upd.ImageKey != nil {
		p.ImageKey = *upd.ImageKey
	}
	p.UpdatedAt = r.now()
	return clonePost(p), nil
}

func (r *postRepository) Delete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return model.ErrPostNotFound
	}
	if p.UserID != ownerID {
		return model.ErrNotPostOwner
	}
	delete(r.posts, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r *postRepository) List(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if filter.UserID == "" || p.UserID == filter.UserID {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := []model.Post{}
	for i := filter.Page.Offset(); i < len(matched) && len(out) < filter.Page.Limit; i++ {
		out = append(out, *clonePost(matched[i]))
	}
	return out, len(matched), nil
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return model.LikeResult{}, model.ErrPostNotFound
	}

	liked := !slices.Contains(p.LikedBy, userID)
	if liked {
		p.LikedBy = append(p.LikedBy, userID)
	} else {
		p.LikedBy = remove(p.LikedBy, userID)
	}
	p.Likes = len(p.LikedBy)
	return model.LikeResult{Liked: liked, Likes: p.Likes}, nil
}

func (r *postRepository) CountLikedBy(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.posts {
		if slices.Contains(p.LikedBy, userID) {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// comments

type commentRepository struct{ *db }

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[c.PostID]
	if !ok {
		return model.ErrPostNotFound
	}

	c.CreatedAt = r.now()
	c.Likes = 0
	c.LikedBy = []string{}
	stored := *c
	stored.Author = nil
	r.comments[c.ID] = &stored
	p.Comments = append(p.Comments, c.ID)
	p.UpdatedAt = c.CreatedAt
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[postID]
	if !ok {
		return []model.Comment{}, 0, nil
	}

	// The post's comment list is already in creation order.
	out := []model.Comment{}
	for i := page.Offset(); i < len(p.Comments) && len(out) < page.Limit; i++ {
		if c, ok := r.comments[p.Comments[i]]; ok {
			cc := *c
			cc.LikedBy = slices.Clone(c.LikedBy)
			out = append(out, cc)
		}
	}
	return out, len(p.Comments), nil
}

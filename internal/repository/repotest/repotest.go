// Package repotest holds the behaviour every repository.Store backend must share.
// Each backend's tests call Run with a constructor for an empty store.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"postboard/internal/model"
	"postboard/internal/repository"
)

// Run executes the shared store suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) *repository.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *repository.Store)
	}{
		{"users/unique username and email", testUserUniqueness},
		{"users/update", testUserUpdate},
		{"users/profile views", testProfileViews},
		{"users/reset token lifecycle", testResetToken},
		{"users/summaries and delete", testSummariesAndDelete},
		{"follows/symmetric toggle", testFollowToggle},
		{"posts/owner checks", testPostOwnership},
		{"posts/list newest first", testPostList},
		{"posts/like toggle", testLikeToggle},
		{"comments/create and list", testComments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newUser(t *testing.T, s *repository.Store, username string) *model.User {
	t.Helper()
	u := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          username + "@example.com",
		PasswordHashed: "hash",
	}
	if err := s.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func newPost(t *testing.T, s *repository.Store, owner *model.User, title string) *model.Post {
	t.Helper()
	p := &model.Post{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		Title:       title,
		Description: "description of " + title,
		ImageURL:    "https://cdn.test/posts/" + title,
		ImageKey:    "posts/" + title,
		Status:      model.PostStatusInProgress,
	}
	if err := s.Posts.Create(context.Background(), p); err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return p
}

// =============================================================================
// USERS
// =============================================================================

func testUserUniqueness(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")

	dupes := []*model.User{
		{ID: uuid.NewString(), Username: "alice", Email: "other@example.com", PasswordHashed: "x"},
		{ID: uuid.NewString(), Username: "other", Email: "alice@example.com", PasswordHashed: "x"},
	}
	for _, d := range dupes {
		if err := s.Users.Create(ctx, d); !errors.Is(err, model.ErrUserExists) {
			t.Errorf("create %s/%s: error = %v, want ErrUserExists", d.Username, d.Email, err)
		}
	}

	exists, err := s.Users.ExistsByUsernameOrEmail(ctx, "nobody", "alice@example.com")
	if err != nil || !exists {
		t.Errorf("exists = %v, %v; want true", exists, err)
	}
	exists, err = s.Users.ExistsByUsernameOrEmail(ctx, "nobody", "nobody@example.com")
	if err != nil || exists {
		t.Errorf("exists = %v, %v; want false", exists, err)
	}

	got, err := s.Users.GetByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	if got.PasswordHashed != "hash" {
		t.Errorf("password hash = %q", got.PasswordHashed)
	}
}

func testUserUpdate(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	newUser(t, s, "bob")

	name, pic, key := "alice2", "https://cdn.test/users/a.jpg", "users/a.jpg"
	updated, err := s.Users.Update(ctx, alice.ID, model.UserUpdate{
		Username:          &name,
		ProfilePicture:    &pic,
		ProfilePictureKey: &key,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Username != name || updated.ProfilePicture != pic || updated.ProfilePictureKey != key || updated.Email != alice.Email {
		t.Errorf("updated = %+v", updated)
	}

	taken := "bob"
	if _, err := s.Users.Update(ctx, alice.ID, model.UserUpdate{Username: &taken}); !errors.Is(err, model.ErrUserExists) {
		t.Errorf("rename to taken username: error = %v, want ErrUserExists", err)
	}
	if _, err := s.Users.Update(ctx, uuid.NewString(), model.UserUpdate{Username: &name}); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("update missing user: error = %v, want ErrUserNotFound", err)
	}
}

func testProfileViews(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")

	for want := 1; want <= 3; want++ {
		got, err := s.Users.IncrementProfileViews(ctx, alice.ID)
		if err != nil || got != want {
			t.Fatalf("IncrementProfileViews = %d, %v; want %d", got, err, want)
		}
	}
	if _, err := s.Users.IncrementProfileViews(ctx, uuid.NewString()); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("missing user: error = %v, want ErrUserNotFound", err)
	}
}

func testResetToken(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.Users.SetResetToken(ctx, alice.ID, "digest", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken failed: %v", err)
	}

	got, err := s.Users.GetByResetToken(ctx, "digest", now)
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetByResetToken before expiry = %+v, %v", got, err)
	}
	if _, err := s.Users.GetByResetToken(ctx, "digest", now.Add(2*time.Hour)); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("after expiry: error = %v, want ErrUserNotFound", err)
	}
	if _, err := s.Users.GetByResetToken(ctx, "other", now); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("wrong digest: error = %v, want ErrUserNotFound", err)
	}

	if err := s.Users.UpdatePassword(ctx, alice.ID, "newhash"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if _, err := s.Users.GetByResetToken(ctx, "digest", now); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("token should be cleared after password change, error = %v", err)
	}
	got, _ = s.Users.GetByID(ctx, alice.ID)
	if got.PasswordHashed != "newhash" {
		t.Errorf("password hash = %q, want newhash", got.PasswordHashed)
	}
}

func testSummariesAndDelete(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	sums, err := s.Users.GetSummaries(ctx, []string{alice.ID, bob.ID, alice.ID, uuid.NewString(), "not-a-uuid"})
	if err != nil {
		t.Fatalf("GetSummaries failed: %v", err)
	}
	if len(sums) != 2 || sums[bob.ID].Username != "bob" {
		t.Errorf("summaries = %+v", sums)
	}

	if err := s.Users.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Users.GetByID(ctx, alice.ID); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("deleted user: error = %v, want ErrUserNotFound", err)
	}
	if _, err := s.Users.GetByID(ctx, "not-a-uuid"); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("malformed id: error = %v, want ErrUserNotFound", err)
	}
}

// =============================================================================
// FOLLOWS
// =============================================================================

func testFollowToggle(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	following, err := s.Follows.Toggle(ctx, alice.ID, bob.ID)
	if err != nil || !following {
		t.Fatalf("first toggle = %v, %v; want true", following, err)
	}

	followers, _ := s.Follows.GetFollowers(ctx, bob.ID)
	if len(followers) != 1 || followers[0].ID != alice.ID {
		t.Errorf("bob's followers = %+v, want alice", followers)
	}
	followingList, _ := s.Follows.GetFollowing(ctx, alice.ID)
	if len(followingList) != 1 || followingList[0].ID != bob.ID {
		t.Errorf("alice's following = %+v, want bob", followingList)
	}
	if reverse, _ := s.Follows.GetFollowing(ctx, bob.ID); len(reverse) != 0 {
		t.Errorf("bob's following = %+v, want empty", reverse)
	}

	following, err = s.Follows.Toggle(ctx, alice.ID, bob.ID)
	if err != nil || following {
		t.Fatalf("second toggle = %v, %v; want false", following, err)
	}
	followers, _ = s.Follows.GetFollowers(ctx, bob.ID)
	followingList, _ = s.Follows.GetFollowing(ctx, alice.ID)
	if len(followers) != 0 || len(followingList) != 0 {
		t.Errorf("after unfollow: followers=%d following=%d, want 0/0", len(followers), len(followingList))
	}

	if _, err := s.Follows.Toggle(ctx, alice.ID, uuid.NewString()); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("follow missing user: error = %v, want ErrUserNotFound", err)
	}
}

// =============================================================================
// POSTS
// =============================================================================

func testPostOwnership(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")
	post := newPost(t, s, alice, "p1")

	title := "changed"
	if _, err := s.Posts.Update(ctx, post.ID, bob.ID, model.PostUpdate{Title: &title}); !errors.Is(err, model.ErrNotPostOwner) {
		t.Errorf("stranger update: error = %v, want ErrNotPostOwner", err)
	}
	if err := s.Posts.Delete(ctx, post.ID, bob.ID); !errors.Is(err, model.ErrNotPostOwner) {
		t.Errorf("stranger delete: error = %v, want ErrNotPostOwner", err)
	}

	url, key := "https://cdn.test/posts/p1b", "posts/p1b"
	updated, err := s.Posts.Update(ctx, post.ID, alice.ID, model.PostUpdate{Title: &title, ImageURL: &url, ImageKey: &key})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != title || updated.ImageURL != url || updated.ImageKey != key || updated.Description != post.Description || updated.UserID != alice.ID {
		t.Errorf("updated = %+v", updated)
	}

	if err := s.Posts.Delete(ctx, post.ID, alice.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := s.Posts.GetByID(ctx, post.ID); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("deleted post: error = %v, want ErrPostNotFound", err)
	}
	if err := s.Posts.Delete(ctx, post.ID, alice.ID); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("second delete: error = %v, want ErrPostNotFound", err)
	}
}

func testPostList(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	var titles []string
	for i, owner := range []*model.User{alice, bob, alice} {
		title := []string{"first", "second", "third"}[i]
		newPost(t, s, owner, title)
		titles = append(titles, title)
		time.Sleep(5 * time.Millisecond)
	}

	all, total, err := s.Posts.List(ctx, model.PostFilter{Page: model.NewPage(1, 10)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("total = %d len = %d, want 3/3", total, len(all))
	}
	for i, p := range all {
		if want := titles[len(titles)-1-i]; p.Title != want {
			t.Errorf("posts[%d] = %q, want %q", i, p.Title, want)
		}
	}

	mine, total, _ := s.Posts.List(ctx, model.PostFilter{UserID: alice.ID, Page: model.NewPage(2, 1)})
	if total != 2 || len(mine) != 1 || mine[0].Title != "first" {
		t.Errorf("alice page 2 = %+v (total %d), want [first] of 2", mine, total)
	}

	far, total, err := s.Posts.List(ctx, model.PostFilter{Page: model.NewPage(model.MaxPage, model.MaxLimit)})
	if err != nil {
		t.Fatalf("List far page failed: %v", err)
	}
	if total != 3 || len(far) != 0 {
		t.Errorf("far page = %d posts (total %d), want none of 3", len(far), total)
	}
	if _, _, err := s.Comments.ListByPost(ctx, all[0].ID, model.NewPage(model.MaxPage, model.MaxLimit)); err != nil {
		t.Errorf("ListByPost far page failed: %v", err)
	}
}

func testLikeToggle(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")
	post := newPost(t, s, alice, "liked")

	steps := []struct {
		user string
		want model.LikeResult
	}{
		{alice.ID, model.LikeResult{Liked: true, Likes: 1}},
		{bob.ID, model.LikeResult{Liked: true, Likes: 2}},
		{alice.ID, model.LikeResult{Liked: false, Likes: 1}},
	}
	for i, step := range steps {
		got, err := s.Posts.ToggleLike(ctx, post.ID, step.user)
		if err != nil || got != step.want {
			t.Fatalf("step %d: ToggleLike = %+v, %v; want %+v", i+1, got, err, step.want)
		}
	}

	stored, _ := s.Posts.GetByID(ctx, post.ID)
	if stored.Likes != 1 {
		t.Errorf("stored likes = %d, want 1", stored.Likes)
	}
	if n, _ := s.Posts.CountLikedBy(ctx, bob.ID); n != 1 {
		t.Errorf("CountLikedBy(bob) = %d, want 1", n)
	}
	if n, _ := s.Posts.CountLikedBy(ctx, alice.ID); n != 0 {
		t.Errorf("CountLikedBy(alice) = %d, want 0", n)
	}
	if _, err := s.Posts.ToggleLike(ctx, uuid.NewString(), bob.ID); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("missing post: error = %v, want ErrPostNotFound", err)
	}
}

// =============================================================================
// COMMENTS
// =============================================================================

func testComments(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	post := newPost(t, s, alice, "discussed")

	missing := &model.Comment{ID: uuid.NewString(), PostID: uuid.NewString(), UserID: alice.ID, Content: "hi"}
	if err := s.Comments.Create(ctx, missing); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("comment on missing post: error = %v, want ErrPostNotFound", err)
	}

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		c := &model.Comment{ID: uuid.NewString(), PostID: post.ID, UserID: alice.ID, Content: text}
		if err := s.Comments.Create(ctx, c); err != nil {
			t.Fatalf("create comment %s: %v", text, err)
		}
		ids = append(ids, c.ID)
		time.Sleep(5 * time.Millisecond)
	}

	stored, _ := s.Posts.GetByID(ctx, post.ID)
	if len(stored.Comments) != 3 || stored.Comments[0] != ids[0] || stored.Comments[2] != ids[2] {
		t.Errorf("post comments = %v, want %v", stored.Comments, ids)
	}

	quiet := newPost(t, s, alice, "quiet")
	listed, _, err := s.Posts.List(ctx, model.PostFilter{UserID: alice.ID, Page: model.NewPage(1, 10)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, p := range listed {
		switch p.ID {
		case post.ID:
			if len(p.Comments) != 3 || p.Comments[0] != ids[0] || p.Comments[2] != ids[2] {
				t.Errorf("listed comments = %v, want %v", p.Comments, ids)
			}
		case quiet.ID:
			if p.Comments == nil || len(p.Comments) != 0 {
				t.Errorf("listed comments of quiet post = %#v, want empty", p.Comments)
			}
		}
	}

	page, total, err := s.Comments.ListByPost(ctx, post.ID, model.NewPage(1, 2))
	if err != nil {
		t.Fatalf("ListByPost failed: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].Content != "one" || page[1].Content != "two" {
		t.Errorf("page 1 = %+v (total %d)", page, total)
	}

	if err := s.Posts.Delete(ctx, post.ID, alice.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, total, _ := s.Comments.ListByPost(ctx, post.ID, model.NewPage(1, 10)); total != 0 {
		t.Errorf("comments after post delete = %d, want 0", total)
	}
}

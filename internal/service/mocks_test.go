package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"postboard/internal/model"
	"postboard/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock method delegates to an optional function field so a test only
// defines the behaviour it cares about. Calls that matter are recorded.

type mockUserRepository struct {
	createFn          func(ctx context.Context, user *model.User) error
	getByIDFn         func(ctx context.Context, id string) (*model.User, error)
	getByEmailFn      func(ctx context.Context, email string) (*model.User, error)
	existsFn          func(ctx context.Context, username, email string) (bool, error)
	updateFn          func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	deleteFn          func(ctx context.Context, id string) error
	incrementViewsFn  func(ctx context.Context, id string) (int, error)
	setResetTokenFn   func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	getByResetTokenFn func(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	updatePasswordFn  func(ctx context.Context, id, passwordHashed string) error
	getSummariesFn    func(ctx context.Context, ids []string) (map[string]model.UserSummary, error)

	createCalls []*model.User
	updateCalls []model.UserUpdate
	deleteCalls []string
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, username, email)
	}
	return false, nil
}

func (m *mockUserRepository) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	m.updateCalls = append(m.updateCalls, upd)
	if m.updateFn != nil {
		return m.updateFn(ctx, id, upd)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepository) IncrementProfileViews(ctx context.Context, id string) (int, error) {
	if m.incrementViewsFn != nil {
		return m.incrementViewsFn(ctx, id)
	}
	return 1, nil
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if m.setResetTokenFn != nil {
		return m.setResetTokenFn(ctx, id, tokenHash, expiresAt)
	}
	return nil
}

func (m *mockUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	if m.getByResetTokenFn != nil {
		return m.getByResetTokenFn(ctx, tokenHash, now)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHashed string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHashed)
	}
	return nil
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	if m.getSummariesFn != nil {
		return m.getSummariesFn(ctx, ids)
	}
	return map[string]model.UserSummary{}, nil
}

type mockFollowRepository struct {
	toggleFn       func(ctx context.Context, followerID, followeeID string) (bool, error)
	getFollowersFn func(ctx context.Context, userID string) ([]model.UserSummary, error)
	getFollowingFn func(ctx context.Context, userID string) ([]model.UserSummary, error)

	toggleCalls int
}

func (m *mockFollowRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	m.toggleCalls++
	if m.toggleFn != nil {
		return m.toggleFn(ctx, followerID, followeeID)
	}
	return true, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	if m.getFollowersFn != nil {
		return m.getFollowersFn(ctx, userID)
	}
	return []model.UserSummary{}, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, userID)
	}
	return []model.UserSummary{}, nil
}

type mockPostRepository struct {
	createFn       func(ctx context.Context, post *model.Post) error
	getByIDFn      func(ctx context.Context, id string) (*model.Post, error)
	updateFn       func(ctx context.Context, id, ownerID string, upd model.PostUpdate) (*model.Post, error)
	deleteFn       func(ctx context.Context, id, ownerID string) error
	listFn         func(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error)
	toggleLikeFn   func(ctx context.Context, postID, userID string) (model.LikeResult, error)
	countLikedByFn func(ctx context.Context, userID string) (int, error)

	createCalls []*model.Post
	updateCalls []model.PostUpdate
	deleteCalls []string
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	m.createCalls = append(m.createCalls, post)
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) Update(ctx context.Context, id, ownerID string, upd model.PostUpdate) (*model.Post, error) {
	m.updateCalls = append(m.updateCalls, upd)
	if m.updateFn != nil {
		return m.updateFn(ctx, id, ownerID, upd)
	}
	return &model.Post{ID: id, UserID: ownerID}, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, id, ownerID string) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, ownerID)
	}
	return nil
}

func (m *mockPostRepository) List(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []model.Post{}, 0, nil
}

func (m *mockPostRepository) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, postID, userID)
	}
	return model.LikeResult{}, model.ErrPostNotFound
}

func (m *mockPostRepository) CountLikedBy(ctx context.Context, userID string) (int, error) {
	if m.countLikedByFn != nil {
		return m.countLikedByFn(ctx, userID)
	}
	return 0, nil
}

type mockCommentRepository struct {
	createFn     func(ctx context.Context, comment *model.Comment) error
	listByPostFn func(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error)

	createCalls int
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, comment)
	}
	return nil
}

func (m *mockCommentRepository) ListByPost(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error) {
	if m.listByPostFn != nil {
		return m.listByPostFn(ctx, postID, page)
	}
	return []model.Comment{}, 0, nil
}

// =============================================================================
// OTHER FAKES
// =============================================================================

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	err  error
	sent []sentMail
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakePublisher struct {
	err    error
	events []queue.MediaEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event queue.MediaEvent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, event)
	return "1-0", nil
}

// pngUpload returns a small solid PNG as a multipart-style upload.
func pngUpload(t *testing.T, name string, w, h int) *model.FileUpload {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &model.FileUpload{
		File:        bytes.NewReader(buf.Bytes()),
		Filename:    name,
		ContentType: model.ContentTypePNG,
		Size:        int64(buf.Len()),
	}
}

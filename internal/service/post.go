package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"postboard/internal/model"
	"postboard/internal/queue"
	"postboard/internal/repository"
)

type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
	media *MediaService
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, media *MediaService) *PostService {
	return &PostService{
		posts: posts,
		users: users,
		media: media,
	}
}

// Create uploads the attachment, then stores the post pointing at it.
// Without a file nothing is touched. If the store write fails the object is released.
func (s *PostService) Create(ctx context.Context, ownerID string, req *model.CreatePostRequest, file *model.FileUpload) (*model.Post, error) {
	if file == nil {
		return nil, model.ErrNoFileAttached
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	uploaded, err := s.media.UploadPostMedia(ctx, ownerID, file)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    uploaded.URL,
		ImageKey:    uploaded.Key,
		Status:      model.PostStatusInProgress,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.media.Release(ctx, uploaded.Key, queue.ReasonRecordNotStored)
		return nil, fmt.Errorf("create post: %w", err)
	}

	log.Printf("[PostService] Create OK: post=%s owner=%s key=%s", post.ID, ownerID, uploaded.Key)
	s.populateOwners(ctx, post)
	return post, nil
}

// Get returns the post with its owner summary and comment ids.
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.populateOwners(ctx, post)
	return post, nil
}

// Update changes title, description and optionally the attachment. Only the
// owner may update; a new file is uploaded before the single store update.
func (s *PostService) Update(ctx context.Context, actorID, postID string, req *model.UpdatePostRequest, file *model.FileUpload) (*model.Post, error) {
	current, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if current.UserID != actorID {
		return nil, model.ErrNotPostOwner
	}

	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		req.Description = &trimmed
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	upd := model.PostUpdate{
		Title:       req.Title,
		Description: req.Description,
	}

	var uploaded *model.UploadResult
	if file != nil {
		uploaded, err = s.media.UploadPostMedia(ctx, actorID, file)
		if err != nil {
			return nil, err
		}
		upd.ImageURL = &uploaded.URL
		upd.ImageKey = &uploaded.Key
	}

	updated, err := s.posts.Update(ctx, postID, actorID, upd)
	if err != nil {
		if uploaded != nil {
			s.media.Release(ctx, uploaded.Key, queue.ReasonRecordNotStored)
		}
		return nil, err
	}

	if uploaded != nil && current.ImageKey != "" && current.ImageKey != uploaded.Key {
		s.media.Release(ctx, current.ImageKey, queue.ReasonPostReplaced)
	}

	log.Printf("[PostService] Update OK: post=%s", postID)
	s.populateOwners(ctx, updated)
	return updated, nil
}

// Delete removes the post and its comments. Only the owner may delete.
func (s *PostService) Delete(ctx context.Context, actorID, postID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return model.ErrNotPostOwner
	}

	if err := s.posts.Delete(ctx, postID, actorID); err != nil {
		return err
	}

	s.media.Release(ctx, post.ImageKey, queue.ReasonPostDeleted)
	log.Printf("[PostService] Delete OK: post=%s owner=%s", postID, actorID)
	return nil
}

// ToggleLike likes the post for userID, or unlikes it if already liked.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	res, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return model.LikeResult{}, err
	}

	log.Printf("[PostService] ToggleLike OK: post=%s user=%s liked=%t likes=%d", postID, userID, res.Liked, res.Likes)
	return res, nil
}

// List returns one page of posts, newest first, optionally for a single owner.
func (s *PostService) List(ctx context.Context, filter model.PostFilter) (*model.PostListResponse, error) {
	posts, total, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	ptrs := make([]*model.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	s.populateOwners(ctx, ptrs...)

	return &model.PostListResponse{
		Page:       filter.Page.Number,
		Limit:      filter.Page.Limit,
		TotalPosts: total,
		Posts:      posts,
	}, nil
}

// populateOwners attaches owner summaries in one lookup. A failed lookup only
// leaves owners empty; owners of deleted accounts stay empty as well.
func (s *PostService) populateOwners(ctx context.Context, posts ...*model.Post) {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}

	owners, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		log.Printf("[PostService] populate owners FAILED: err=%v", err)
		return
	}
	for _, p := range posts {
		if owner, ok := owners[p.UserID]; ok {
			p.Owner = &owner
		}
	}
}

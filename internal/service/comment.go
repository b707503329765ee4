package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"postboard/internal/model"
	"postboard/internal/repository"
)

// CommentService creates and lists comments on posts.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, users repository.UserRepository) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		users:    users,
	}
}

// Create adds a comment and appends it to the post's comment list.
func (s *CommentService) Create(ctx context.Context, postID, userID string, req *model.CreateCommentRequest) (*model.Comment, error) {
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return nil, model.ErrCommentRequired
	}
	if len([]rune(text)) > model.MaxCommentLength {
		return nil, model.ErrCommentTooLong
	}

	comment := &model.Comment{
		ID:      uuid.NewString(),
		PostID:  postID,
		UserID:  userID,
		Content: text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}

	log.Printf("[CommentService] Create OK: comment=%s post=%s user=%s", comment.ID, postID, userID)
	s.populateAuthors(ctx, comment)
	return comment, nil
}

// List returns one page of the post's comments, oldest first.
func (s *CommentService) List(ctx context.Context, postID string, page model.Page) (*model.CommentListResponse, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	comments, total, err := s.comments.ListByPost(ctx, postID, page)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	ptrs := make([]*model.Comment, len(comments))
	for i := range comments {
		ptrs[i] = &comments[i]
	}
	s.populateAuthors(ctx, ptrs...)

	return &model.CommentListResponse{
		Page:          page.Number,
		Limit:         page.Limit,
		TotalComments: total,
		Comments:      comments,
	}, nil
}

func (s *CommentService) populateAuthors(ctx context.Context, comments ...*model.Comment) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}

	authors, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		log.Printf("[CommentService] populate authors FAILED: err=%v", err)
		return
	}
	for _, c := range comments {
		if a, ok := authors[c.UserID]; ok {
			c.Author = &a
		}
	}
}

package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"postboard/internal/model"
	"postboard/internal/repository"
)

// maxLikeAttempts bounds retries when a concurrent toggle flips membership
// between the two conditional updates.
const maxLikeAttempts = 3

type postRepository struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

func NewPostRepository(posts, comments *mongo.Collection) repository.PostRepository {
	return &postRepository{posts: posts, comments: comments}
}

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Likes = 0
	p.LikedBy = []string{}
	p.Comments = []string{}

	if _, err := r.posts.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
	return &p, nil
}

func (r *postRepository) Update(ctx context.Context, id, ownerID string, upd model.PostUpdate) (*model.Post, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.ImageURL != nil {
		set["image_url"] = *upd.ImageURL
	}
	if upd.ImageKey != nil {
		set["image_key"] = *upd.ImageKey
	}

	var p model.Post
	err := r.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": ownerID},
		bson.M{"$set": set},
		afterUpdate(),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.missingOrForeign(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
	return &p, nil
}

func (r *postRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": id, "user_id": ownerID})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return r.missingOrForeign(ctx, id)
	}

	if _, err := r.comments.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	return nil
}

func (r *postRepository) missingOrForeign(ctx context.Context, id string) error {
	n, err := r.posts.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if n > 0 {
		return model.ErrNotPostOwner
	}
	return model.ErrPostNotFound
}

func (r *postRepository) List(ctx context.Context, filter model.PostFilter) ([]model.Post, int, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}

	total, err := r.posts.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Page.Offset())).
		SetLimit(int64(filter.Page.Limit))

	cursor, err := r.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find posts: %w", err)
	}

	posts := []model.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("decode posts: %w", err)
	}
	for i := range posts {
		if posts[i].Comments == nil {
			posts[i].Comments = []string{}
		}
	}
	return posts, int(total), nil
}

// ToggleLike uses two membership-guarded single-document updates. Each one moves
// liked_by and likes together, so the counter never drifts from the set size.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	projection := afterUpdate().SetProjection(bson.M{"likes": 1})

	for attempt := 0; attempt < maxLikeAttempts; attempt++ {
		var p model.Post
		err := r.posts.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, "liked_by": userID},
			bson.M{"$pull": bson.M{"liked_by": userID}, "$inc": bson.M{"likes": -1}},
			projection,
		).Decode(&p)
		if err == nil {
			return model.LikeResult{Liked: false, Likes: p.Likes}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return model.LikeResult{}, fmt.Errorf("unlike post: %w", err)
		}

		err = r.posts.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, "liked_by": bson.M{"$ne": userID}},
			bson.M{"$addToSet": bson.M{"liked_by": userID}, "$inc": bson.M{"likes": 1}},
			projection,
		).Decode(&p)
		if err == nil {
			return model.LikeResult{Liked: true, Likes: p.Likes}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return model.LikeResult{}, fmt.Errorf("like post: %w", err)
		}

		n, err := r.posts.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return model.LikeResult{}, fmt.Errorf("check post: %w", err)
		}
		if n == 0 {
			return model.LikeResult{}, model.ErrPostNotFound
		}
	}
	return model.LikeResult{}, fmt.Errorf("toggle like: post=%s changed concurrently", postID)
}

func (r *postRepository) CountLikedBy(ctx context.Context, userID string) (int, error) {
	n, err := r.posts.CountDocuments(ctx, bson.M{"liked_by": userID})
	if err != nil {
		return 0, fmt.Errorf("count likes given: %w", err)
	}
	return int(n), nil
}

package docstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"postboard/internal/model"
	"postboard/internal/repository"
)

type commentRepository struct {
	comments *mongo.Collection
	posts    *mongo.Collection
}

func NewCommentRepository(comments, posts *mongo.Collection) repository.CommentRepository {
	return &commentRepository{comments: comments, posts: posts}
}

// Create inserts the comment, then pushes its id onto the post. If the push fails
// or the post vanished meanwhile, the comment is removed again.
func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	n, err := r.posts.CountDocuments(ctx, bson.M{"_id": c.PostID})
	if err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if n == 0 {
		return model.ErrPostNotFound
	}

	c.CreatedAt = time.Now().UTC()
	c.Likes = 0
	c.LikedBy = []string{}

	if _, err := r.comments.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": c.PostID}, bson.M{
		"$push": bson.M{"comments": c.ID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil || res.MatchedCount == 0 {
		if _, undoErr := r.comments.DeleteOne(ctx, bson.M{"_id": c.ID}); undoErr != nil {
			log.Printf("[Docstore] Create comment compensation FAILED: comment=%s err=%v", c.ID, undoErr)
		}
		if err != nil {
			return fmt.Errorf("append comment to post: %w", err)
		}
		return model.ErrPostNotFound
	}
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string, page model.Page) ([]model.Comment, int, error) {
	filter := bson.M{"post_id": postID}

	total, err := r.comments.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	cursor, err := r.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find comments: %w", err)
	}

	comments := []model.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, 0, fmt.Errorf("decode comments: %w", err)
	}
	for i := range comments {
		if comments[i].LikedBy == nil {
			comments[i].LikedBy = []string{}
		}
	}
	return comments, int(total), nil
}

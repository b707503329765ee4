package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"postboard/internal/model"
	"postboard/internal/repository"
)

// followRepository keeps following/followers arrays on the two user documents in step.
type followRepository struct {
	users *mongo.Collection
}

func NewFollowRepository(users *mongo.Collection) repository.FollowRepository {
	return &followRepository{users: users}
}

func (r *followRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, model.ErrCannotFollowSelf
	}

	var follower model.User
	err := r.users.FindOne(ctx, bson.M{"_id": followerID},
		options.FindOne().SetProjection(bson.M{"following": 1})).Decode(&follower)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, model.ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("find follower: %w", err)
	}

	n, err := r.users.CountDocuments(ctx, bson.M{"_id": followeeID})
	if err != nil {
		return false, fmt.Errorf("find followee: %w", err)
	}
	if n == 0 {
		return false, model.ErrUserNotFound
	}

	following := slices.Contains(follower.Following, followeeID)
	op, undo := "$addToSet", "$pull"
	if following {
		op, undo = "$pull", "$addToSet"
	}

	if _, err := r.users.UpdateOne(ctx, bson.M{"_id": followerID},
		bson.M{op: bson.M{"following": followeeID}}); err != nil {
		return false, fmt.Errorf("update following: %w", err)
	}

	if _, err := r.users.UpdateOne(ctx, bson.M{"_id": followeeID},
		bson.M{op: bson.M{"followers": followerID}}); err != nil {
		// Revert the follower side so both sets agree again.
		if _, undoErr := r.users.UpdateOne(ctx, bson.M{"_id": followerID},
			bson.M{undo: bson.M{"following": followeeID}}); undoErr != nil {
			log.Printf("[Docstore] Toggle follow compensation FAILED: follower=%s followee=%s err=%v",
				followerID, followeeID, undoErr)
		}
		return false, fmt.Errorf("update followers: %w", err)
	}

	return !following, nil
}

func (r *followRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(ctx, userID, "followers")
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return r.list(ctx, userID, "following")
}

// list populates the ids stored under field, latest first.
func (r *followRepository) list(ctx context.Context, userID, field string) ([]model.UserSummary, error) {
	var u model.User
	err := r.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{field: 1})).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []model.UserSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", field, err)
	}

	ids := u.Followers
	if field == "following" {
		ids = u.Following
	}

	byID, err := summaries(ctx, r.users, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.UserSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if s, ok := byID[ids[i]]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

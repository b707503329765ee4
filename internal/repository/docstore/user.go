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

type userRepository struct {
	users *mongo.Collection
}

func NewUserRepository(users *mongo.Collection) repository.UserRepository {
	return &userRepository{users: users}
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}

	if _, err := r.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := r.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if upd.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.ProfilePicture != nil {
		set["profile_picture"] = *upd.ProfilePicture
	}
	if upd.ProfilePictureKey != nil {
		set["profile_picture_key"] = *upd.ProfilePictureKey
	}

	var u model.User
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, model.ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

// Delete removes the user and strips their id from other users' follow sets.
// Posts and comments are left in place.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrUserNotFound
	}

	_, err = r.users.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"followers": id}, bson.M{"following": id}}},
		bson.M{"$pull": bson.M{"followers": id, "following": id}},
	)
	if err != nil {
		return fmt.Errorf("detach follows: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementProfileViews(ctx context.Context, id string) (int, error) {
	var u model.User
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"profile_views": 1}},
		afterUpdate().SetProjection(bson.M{"profile_views": 1}),
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment profile views: %w", err)
	}
	return u.ProfileViews, nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"reset_password_token":  tokenHash,
		"reset_password_expiry": expiresAt.UTC(),
		"updated_at":            time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_password_token":  tokenHash,
		"reset_password_expiry": bson.M{"$gt": now.UTC()},
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHashed string) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password_hashed": passwordHashed, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_password_token": "", "reset_password_expiry": ""},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	return summaries(ctx, r.users, ids)
}

// summaries projects the public fields of every user in ids.
func summaries(ctx context.Context, users *mongo.Collection, ids []string) (map[string]model.UserSummary, error) {
	result := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "email": 1, "profile_picture": 1}))
	if err != nil {
		return nil, fmt.Errorf("find user summaries: %w", err)
	}

	var found []model.UserSummary
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode user summaries: %w", err)
	}
	for _, u := range found {
		result[u.ID] = u
	}
	return result, nil
}

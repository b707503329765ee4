package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"postboard/internal/repository"
	"postboard/internal/repository/repotest"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skipf("TEST_MONGO_URI not set, skipping mongo store tests")
	}

	ctx := context.Background()
	client, _, err := Connect(ctx, uri, "postboard_test")
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	repotest.Run(t, func(t *testing.T) *repository.Store {
		db := client.Database("postboard_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(context.Background()) })

		if err := EnsureIndexes(ctx, db); err != nil {
			t.Fatalf("EnsureIndexes failed: %v", err)
		}
		users := db.Collection(usersCollection)
		posts := db.Collection(postsCollection)
		comments := db.Collection(commentsCollection)
		return repository.NewStore(
			NewUserRepository(users),
			NewFollowRepository(users),
			NewPostRepository(posts, comments),
			NewCommentRepository(comments, posts),
			nil,
		)
	})
}

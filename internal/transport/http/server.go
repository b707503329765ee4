package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"postboard/internal/config"
	"postboard/internal/database"
	"postboard/internal/handler"
	"postboard/internal/queue"
	appredis "postboard/internal/redis"
	"postboard/internal/repository"
	"postboard/internal/repository/docstore"
	"postboard/internal/repository/memstore"
	"postboard/internal/service"
	"postboard/internal/storage"
	"postboard/internal/worker"
)

// Dependencies are the backends the API is built on.
type Dependencies struct {
	Store   *repository.Store
	Objects storage.ObjectStorage
	Mailer  service.Mailer
	// Publisher routes orphaned media to the workers. Nil deletes inline.
	Publisher queue.Publisher
}

// NewAPI wires services and handlers over deps and returns the router.
func NewAPI(cfg *config.Config, deps Dependencies) chi.Router {
	tokens := service.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenMaxAge)*time.Second)

	media := service.NewMediaService(deps.Objects, cfg.MaxUploadBytes)
	if deps.Publisher != nil {
		media.SetPublisher(deps.Publisher)
	}

	userService := service.NewUserService(
		deps.Store.Users,
		deps.Store.Follows,
		deps.Store.Posts,
		tokens,
		media,
		deps.Mailer,
		cfg.PasswordResetURL,
	)
	postService := service.NewPostService(deps.Store.Posts, deps.Store.Users, media)
	commentService := service.NewCommentService(deps.Store.Comments, deps.Store.Posts, deps.Store.Users)

	return NewRouter(RouterConfig{
		UserHandler:    handler.NewUserHandler(userService, cfg.MaxUploadBytes),
		PostHandler:    handler.NewPostHandler(postService, cfg.MaxUploadBytes),
		CommentHandler: handler.NewCommentHandler(commentService),
		Auth:           userService,
	})
}

// OpenStore connects the backend selected by cfg.StoreDriver and prepares
// its schema or indexes.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewPostgresStore(db), nil

	case config.StoreDriverMongo:
		client, db, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := docstore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return docstore.NewStore(client, db), nil

	case config.StoreDriverMemory:
		log.Println("[Server] Using in-memory store; data is lost on exit")
		return memstore.New(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Run serves the API until ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Document store
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[Server] store close FAILED: err=%v", err)
		}
	}()

	// 2. Object storage
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		log.Printf("[Server] bucket check FAILED: bucket=%s err=%v", objects.Bucket(), err)
	}

	deps := Dependencies{
		Store:   store,
		Objects: objects,
		Mailer:  service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.MailUser, cfg.MailPassword),
	}

	// 3. Media lifecycle workers (optional)
	if cfg.RedisURL != "" {
		rc, err := appredis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			return err
		}

		manager := worker.NewManager(queue.NewConsumer(rc.Client), worker.NewHandler(objects), worker.DefaultManagerConfig())
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start media workers: %w", err)
		}
		defer manager.Stop()

		deps.Publisher = queue.NewPublisher(rc.Client)
	} else {
		log.Println("[Server] REDIS_URL not set; orphaned media is deleted inline")
	}

	// 4. HTTP
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewAPI(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s (store=%s storage=%s)", srv.Addr, cfg.StoreDriver, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
